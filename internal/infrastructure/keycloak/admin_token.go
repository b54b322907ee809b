package keycloak

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	defaultTokenBuffer      = 30 * time.Second
	defaultAdminHTTPTimeout = 10 * time.Second
	maxErrorBodyBytes       = 512
)

// AdminTokenConfig configures access to the Keycloak admin API.
type AdminTokenConfig struct {
	// KeycloakURL is the base URL of the Keycloak server, e.g. http://localhost:8090.
	KeycloakURL string

	// Realm is the realm the service account lives in.
	Realm string

	// ClientID is the service account client.
	ClientID string

	// ClientSecret selects the client_credentials grant. When empty the
	// password grant with Username and Password is used instead.
	ClientSecret string
	Username     string
	Password     string

	// TokenBuffer is how long before expiry a cached token is considered stale.
	TokenBuffer time.Duration

	HTTPClient *http.Client
}

// AdminTokenSource issues admin API tokens and caches them until shortly before expiry.
type AdminTokenSource struct {
	config     AdminTokenConfig
	httpClient *http.Client
	now        func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewAdminTokenSource creates a new AdminTokenSource.
func NewAdminTokenSource(config AdminTokenConfig) *AdminTokenSource {
	config.KeycloakURL = strings.TrimSuffix(config.KeycloakURL, "/")
	if config.TokenBuffer == 0 {
		config.TokenBuffer = defaultTokenBuffer
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultAdminHTTPTimeout}
	}

	return &AdminTokenSource{
		config:     config,
		httpClient: httpClient,
		now:        time.Now,
	}
}

// Token returns a cached token or fetches a new one.
// Concurrent callers share a single refresh.
func (s *AdminTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && s.now().Add(s.config.TokenBuffer).Before(s.expiresAt) {
		return s.token, nil
	}

	token, expiresIn, err := s.fetch(ctx)
	if err != nil {
		return "", err
	}

	s.token = token
	s.expiresAt = s.now().Add(expiresIn)
	return s.token, nil
}

// Invalidate drops the cached token, e.g. after the admin API answered 401.
func (s *AdminTokenSource) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.expiresAt = time.Time{}
}

func (s *AdminTokenSource) fetch(ctx context.Context) (string, time.Duration, error) {
	tokenURL := fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", s.config.KeycloakURL, s.config.Realm)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(s.form().Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("admin token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return "", 0, fmt.Errorf("admin token request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err = json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", 0, fmt.Errorf("failed to decode token response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", 0, fmt.Errorf("%w: empty access token", ErrInvalidToken)
	}

	return payload.AccessToken, time.Duration(payload.ExpiresIn) * time.Second, nil
}

func (s *AdminTokenSource) form() url.Values {
	form := url.Values{}
	form.Set("client_id", s.config.ClientID)

	if s.config.ClientSecret != "" {
		form.Set("grant_type", "client_credentials")
		form.Set("client_secret", s.config.ClientSecret)
		return form
	}

	form.Set("grant_type", "password")
	form.Set("username", s.config.Username)
	form.Set("password", s.config.Password)
	return form
}
