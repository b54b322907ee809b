package middleware

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/lllypuk/taskflow/internal/infrastructure/keycloak"
)

// GroupResolver looks up group memberships by token subject.
type GroupResolver interface {
	UserGroups(ctx context.Context, userID string) ([]string, error)
}

// KeycloakValidatorAdapter adapts keycloak.JWTValidator to the TokenValidator interface
// and maps Keycloak roles and groups to the principal.
type KeycloakValidatorAdapter struct {
	validator     keycloak.JWTValidator
	adminRoles    []string
	adminGroups   []string
	groupResolver GroupResolver
	logger        *slog.Logger
}

// AdapterOption configures KeycloakValidatorAdapter.
type AdapterOption func(*KeycloakValidatorAdapter)

// WithAdminRoles sets the realm roles that grant the administrative capability.
func WithAdminRoles(roles ...string) AdapterOption {
	return func(a *KeycloakValidatorAdapter) {
		a.adminRoles = roles
	}
}

// WithAdminGroups sets the groups whose members hold the administrative capability.
func WithAdminGroups(groups ...string) AdapterOption {
	return func(a *KeycloakValidatorAdapter) {
		a.adminGroups = groups
	}
}

// WithGroupResolver looks up groups for tokens that carry no groups claim.
func WithGroupResolver(resolver GroupResolver) AdapterOption {
	return func(a *KeycloakValidatorAdapter) {
		a.groupResolver = resolver
	}
}

// WithAdapterLogger sets the logger.
func WithAdapterLogger(logger *slog.Logger) AdapterOption {
	return func(a *KeycloakValidatorAdapter) {
		a.logger = logger
	}
}

// NewKeycloakValidatorAdapter creates a new adapter over a Keycloak JWT validator.
func NewKeycloakValidatorAdapter(validator keycloak.JWTValidator, opts ...AdapterOption) *KeycloakValidatorAdapter {
	if validator == nil {
		panic("keycloak validator is required")
	}

	adapter := &KeycloakValidatorAdapter{
		validator:  validator,
		adminRoles: []string{"admin"},
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(adapter)
	}

	return adapter
}

// ValidateToken validates a JWT token and returns TokenClaims.
func (a *KeycloakValidatorAdapter) ValidateToken(ctx context.Context, token string) (*TokenClaims, error) {
	kc, err := a.validator.Validate(ctx, token)
	if err != nil {
		return nil, a.mapError(err)
	}

	groups := kc.Groups
	if !kc.HasGroupsClaim && a.groupResolver != nil {
		resolved, resolveErr := a.groupResolver.UserGroups(ctx, kc.UserID)
		if resolveErr != nil {
			// the user keeps only assignee visibility until the directory answers again
			a.logger.WarnContext(ctx, "failed to resolve user groups",
				slog.String("subject", kc.UserID),
				slog.String("error", resolveErr.Error()),
			)
		} else {
			groups = resolved
		}
	}

	return &TokenClaims{
		Subject:   kc.UserID,
		Username:  kc.Username,
		Email:     kc.Email,
		Groups:    groups,
		IsAdmin:   a.isAdmin(kc.RealmRoles, groups),
		ExpiresAt: kc.ExpiresAt,
	}, nil
}

func (a *KeycloakValidatorAdapter) isAdmin(roles, groups []string) bool {
	for _, role := range a.adminRoles {
		if slices.Contains(roles, role) {
			return true
		}
	}
	for _, group := range a.adminGroups {
		if slices.Contains(groups, group) {
			return true
		}
	}
	return false
}

// mapError maps keycloak errors to middleware errors.
func (a *KeycloakValidatorAdapter) mapError(err error) error {
	switch {
	case errors.Is(err, keycloak.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, keycloak.ErrInvalidToken),
		errors.Is(err, keycloak.ErrMissingSubject),
		errors.Is(err, keycloak.ErrInvalidIssuer),
		errors.Is(err, keycloak.ErrInvalidAudience):
		return ErrInvalidToken
	default:
		return errors.Join(ErrInvalidToken, err)
	}
}

// Close closes the underlying keycloak validator.
func (a *KeycloakValidatorAdapter) Close() error {
	return a.validator.Close()
}
