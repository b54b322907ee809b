package keycloak

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// ErrUserNotFound is returned when Keycloak does not know the user.
var ErrUserNotFound = errors.New("user not found")

const (
	defaultGroupCacheTTL    = time.Minute
	defaultGroupHTTPTimeout = 10 * time.Second
	userGroupsPageSize      = 100
)

// TokenSource supplies admin API bearer tokens.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

// GroupDirectoryConfig configures GroupDirectory.
type GroupDirectoryConfig struct {
	KeycloakURL string
	Realm       string

	// CacheTTL is how long a user's groups are reused. Zero uses the default, negative disables caching.
	CacheTTL time.Duration

	HTTPClient *http.Client
}

// Group is the brief Keycloak group representation.
type Group struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Path string `json:"path"`
}

type cachedGroups struct {
	names     []string
	expiresAt time.Time
}

// GroupDirectory resolves a user's candidate groups through the Keycloak admin API.
// It is used when access tokens carry no groups claim.
type GroupDirectory struct {
	config     GroupDirectoryConfig
	tokens     TokenSource
	httpClient *http.Client
	now        func() time.Time

	mu    sync.Mutex
	cache map[string]cachedGroups
}

// NewGroupDirectory creates a new GroupDirectory.
func NewGroupDirectory(config GroupDirectoryConfig, tokens TokenSource) *GroupDirectory {
	config.KeycloakURL = strings.TrimSuffix(config.KeycloakURL, "/")
	if config.CacheTTL == 0 {
		config.CacheTTL = defaultGroupCacheTTL
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultGroupHTTPTimeout}
	}

	return &GroupDirectory{
		config:     config,
		tokens:     tokens,
		httpClient: httpClient,
		now:        time.Now,
		cache:      make(map[string]cachedGroups),
	}
}

// UserGroups returns the group names of the user with the given Keycloak id.
func (d *GroupDirectory) UserGroups(ctx context.Context, userID string) ([]string, error) {
	if userID == "" {
		return nil, ErrUserNotFound
	}

	if names, ok := d.cached(userID); ok {
		return names, nil
	}

	groups, err := d.fetchUserGroups(ctx, userID)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(groups))
	for _, g := range groups {
		if g.Path != "" {
			names = append(names, GroupName(g.Path))
			continue
		}
		names = append(names, g.Name)
	}

	d.store(userID, names)
	return append([]string(nil), names...), nil
}

func (d *GroupDirectory) cached(userID string) ([]string, bool) {
	if d.config.CacheTTL < 0 {
		return nil, false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	entry, ok := d.cache[userID]
	if !ok || d.now().After(entry.expiresAt) {
		delete(d.cache, userID)
		return nil, false
	}
	return append([]string(nil), entry.names...), true
}

func (d *GroupDirectory) store(userID string, names []string) {
	if d.config.CacheTTL < 0 {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.cache[userID] = cachedGroups{names: names, expiresAt: d.now().Add(d.config.CacheTTL)}
}

func (d *GroupDirectory) fetchUserGroups(ctx context.Context, userID string) ([]Group, error) {
	token, err := d.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get admin token: %w", err)
	}

	endpoint := fmt.Sprintf("%s/admin/realms/%s/users/%s/groups?briefRepresentation=true&max=%d",
		d.config.KeycloakURL, d.config.Realm, url.PathEscape(userID), userGroupsPageSize)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get user groups request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var groups []Group
		if decodeErr := json.NewDecoder(resp.Body).Decode(&groups); decodeErr != nil {
			return nil, fmt.Errorf("failed to decode groups response: %w", decodeErr)
		}
		return groups, nil
	case http.StatusNotFound:
		return nil, ErrUserNotFound
	case http.StatusUnauthorized:
		d.tokens.Invalidate()
		return nil, errors.New("admin token rejected by keycloak")
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, fmt.Errorf("get user groups failed with status %d: %s", resp.StatusCode, string(body))
	}
}
