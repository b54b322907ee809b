// Package keycloak validates Keycloak access tokens and reads group
// memberships through the Keycloak admin API.
package keycloak

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// JWT validation errors.
var (
	ErrInvalidToken    = errors.New("invalid token")
	ErrMissingSubject  = errors.New("missing subject claim")
	ErrTokenExpired    = errors.New("token expired")
	ErrInvalidIssuer   = errors.New("invalid issuer")
	ErrInvalidAudience = errors.New("invalid audience")
	ErrJWKSFetchFailed = errors.New("failed to fetch JWKS")
)

// TokenClaims is what the task engine needs from a validated access token.
type TokenClaims struct {
	UserID     string // sub
	Username   string // preferred_username, falls back to sub
	Email      string
	RealmRoles []string
	// Groups holds candidate group names with the Keycloak path prefix removed.
	Groups []string
	// HasGroupsClaim is false when the client has no group membership mapper.
	HasGroupsClaim bool
	IssuedAt       time.Time
	ExpiresAt      time.Time
}

// accessTokenClaims mirrors the Keycloak access token payload.
type accessTokenClaims struct {
	jwt.RegisteredClaims

	PreferredUsername string `json:"preferred_username"`
	Email             string `json:"email"`
	RealmAccess       struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`
	// Groups is decoded loosely: mappers configured by hand sometimes emit non-string entries.
	Groups []any `json:"groups"`
}

// JWTValidator validates Keycloak JWT tokens.
type JWTValidator interface {
	Validate(ctx context.Context, tokenString string) (*TokenClaims, error)

	// Close stops background JWKS refresh.
	Close() error
}

// JWTValidatorConfig contains configuration for JWTValidator.
type JWTValidatorConfig struct {
	KeycloakURL     string
	Realm           string
	ClientID        string        // expected audience, skipped when empty
	Leeway          time.Duration // clock skew tolerance
	RefreshInterval time.Duration // JWKS refresh interval
	Logger          *slog.Logger
}

// Default configuration values.
const (
	DefaultLeeway          = 30 * time.Second
	DefaultRefreshInterval = 1 * time.Hour
)

// parseErrors maps jwt parser failures to the package errors, first match wins.
var parseErrors = []struct {
	cause error
	as    error
}{
	{jwt.ErrTokenExpired, ErrTokenExpired},
	{jwt.ErrTokenInvalidIssuer, ErrInvalidIssuer},
	{jwt.ErrTokenInvalidAudience, ErrInvalidAudience},
}

type jwtValidator struct {
	keys   keyfunc.Keyfunc
	parser *jwt.Parser
	logger *slog.Logger
	cancel context.CancelFunc
}

// NewJWTValidator fetches the realm JWKS and keeps it refreshed in the background.
func NewJWTValidator(config JWTValidatorConfig) (JWTValidator, error) {
	if config.KeycloakURL == "" || config.Realm == "" {
		return nil, fmt.Errorf("%w: keycloak url and realm are required", ErrJWKSFetchFailed)
	}
	if config.Leeway == 0 {
		config.Leeway = DefaultLeeway
	}
	if config.RefreshInterval == 0 {
		config.RefreshInterval = DefaultRefreshInterval
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	issuer := strings.TrimSuffix(config.KeycloakURL, "/") + "/realms/" + config.Realm
	certsURL := issuer + "/protocol/openid-connect/certs"

	ctx, cancel := context.WithCancel(context.Background())

	storage, err := jwkset.NewStorageFromHTTP(certsURL, jwkset.HTTPClientStorageOptions{
		Ctx:             ctx,
		RefreshInterval: config.RefreshInterval,
		RefreshErrorHandler: func(_ context.Context, refreshErr error) {
			logger.Error("failed to refresh JWKS", slog.String("error", refreshErr.Error()))
		},
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %w", ErrJWKSFetchFailed, err)
	}

	keys, err := keyfunc.New(keyfunc.Options{Ctx: ctx, Storage: storage})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %w", ErrJWKSFetchFailed, err)
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithLeeway(config.Leeway),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(issuer),
	}
	if config.ClientID != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(config.ClientID))
	}

	logger.Info("JWT validator ready",
		slog.String("issuer", issuer),
		slog.Duration("jwks_refresh", config.RefreshInterval),
	)

	return &jwtValidator{
		keys:   keys,
		parser: jwt.NewParser(parserOpts...),
		logger: logger,
		cancel: cancel,
	}, nil
}

func (v *jwtValidator) Validate(_ context.Context, tokenString string) (*TokenClaims, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	var claims accessTokenClaims
	token, err := v.parser.ParseWithClaims(tokenString, &claims, v.keys.Keyfunc)
	if err != nil {
		for _, m := range parseErrors {
			if errors.Is(err, m.cause) {
				return nil, fmt.Errorf("%w: %w", m.as, err)
			}
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims.toTokenClaims()
}

func (c *accessTokenClaims) toTokenClaims() (*TokenClaims, error) {
	if c.Subject == "" {
		return nil, ErrMissingSubject
	}

	tc := &TokenClaims{
		UserID:         c.Subject,
		Username:       c.PreferredUsername,
		Email:          c.Email,
		RealmRoles:     c.RealmAccess.Roles,
		HasGroupsClaim: c.Groups != nil,
	}
	if tc.Username == "" {
		tc.Username = c.Subject
	}
	if c.IssuedAt != nil {
		tc.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		tc.ExpiresAt = c.ExpiresAt.Time
	}

	if tc.HasGroupsClaim {
		tc.Groups = make([]string, 0, len(c.Groups))
		for _, g := range c.Groups {
			if path, ok := g.(string); ok {
				tc.Groups = append(tc.Groups, GroupName(path))
			}
		}
	}

	return tc, nil
}

// Close stops background JWKS refresh. It is safe to call more than once.
func (v *jwtValidator) Close() error {
	v.cancel()
	return nil
}

// GroupName turns a Keycloak group path such as "/clinic/doctor" into the
// candidate group name "doctor". Plain names are returned unchanged.
func GroupName(path string) string {
	path = strings.TrimSuffix(strings.TrimSpace(path), "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}
