package keycloak_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lllypuk/taskflow/internal/infrastructure/keycloak"
)

const (
	testRealm  = "test-realm"
	testClient = "test-client"
	testKeyID  = "realm-key"
)

// realm is a fake Keycloak realm publishing one RSA signing key.
type realm struct {
	key    *rsa.PrivateKey
	server *httptest.Server
}

func newRealm(t *testing.T) *realm {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	jwk, err := jwkset.NewJWKFromKey(&key.PublicKey, jwkset.JWKOptions{
		Metadata: jwkset.JWKMetadataOptions{
			ALG: jwkset.AlgRS256,
			KID: testKeyID,
			USE: jwkset.UseSig,
		},
	})
	require.NoError(t, err)

	store := jwkset.NewMemoryStorage()
	require.NoError(t, store.KeyWrite(context.Background(), jwk))
	certs, err := store.JSONPublic(context.Background())
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("/realms/"+testRealm+"/protocol/openid-connect/certs", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(certs)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &realm{key: key, server: server}
}

func (r *realm) issuer() string { return r.server.URL + "/realms/" + testRealm }

func (r *realm) validator(t *testing.T, clientID string) keycloak.JWTValidator {
	t.Helper()
	v, err := keycloak.NewJWTValidator(keycloak.JWTValidatorConfig{
		KeycloakURL: r.server.URL,
		Realm:       testRealm,
		ClientID:    clientID,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = v.Close() })
	return v
}

// garthClaims is an access token for a doctor in the activiti team.
func (r *realm) garthClaims() jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"iss":                r.issuer(),
		"sub":                "kc-garth",
		"aud":                testClient,
		"exp":                now.Add(time.Hour).Unix(),
		"iat":                now.Unix(),
		"email":              "garth@example.com",
		"preferred_username": "garth",
		"realm_access":       map[string]any{"roles": []any{"user", "admin"}},
		"groups":             []any{"/clinic/doctor", "/activitiTeam"},
	}
}

func sign(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKeyID
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func TestNewJWTValidator_RequiresRealm(t *testing.T) {
	r := newRealm(t)

	tests := map[string]keycloak.JWTValidatorConfig{
		"missing url":   {Realm: testRealm},
		"missing realm": {KeycloakURL: r.server.URL},
		"unreachable":   {KeycloakURL: "http://127.0.0.1:1", Realm: testRealm},
	}

	for name, cfg := range tests {
		t.Run(name, func(t *testing.T) {
			v, err := keycloak.NewJWTValidator(cfg)

			require.ErrorIs(t, err, keycloak.ErrJWKSFetchFailed)
			assert.Nil(t, v)
		})
	}
}

func TestJWTValidator_ValidToken(t *testing.T) {
	r := newRealm(t)
	v := r.validator(t, testClient)

	claims, err := v.Validate(context.Background(), sign(t, r.key, r.garthClaims()))

	require.NoError(t, err)
	assert.Equal(t, "kc-garth", claims.UserID)
	assert.Equal(t, "garth", claims.Username)
	assert.Equal(t, "garth@example.com", claims.Email)
	assert.ElementsMatch(t, []string{"user", "admin"}, claims.RealmRoles)
	assert.Equal(t, []string{"doctor", "activitiTeam"}, claims.Groups)
	assert.True(t, claims.HasGroupsClaim)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt, 2*time.Second)
	assert.False(t, claims.IssuedAt.IsZero())
}

func TestJWTValidator_Rejects(t *testing.T) {
	r := newRealm(t)
	v := r.validator(t, testClient)
	stranger := newRealm(t)

	tests := []struct {
		name    string
		token   func() string
		wantErr error
	}{
		{
			name:    "empty",
			token:   func() string { return "" },
			wantErr: keycloak.ErrInvalidToken,
		},
		{
			name:    "malformed",
			token:   func() string { return "not-a-jwt" },
			wantErr: keycloak.ErrInvalidToken,
		},
		{
			name:    "signed by another key",
			token:   func() string { return sign(t, stranger.key, r.garthClaims()) },
			wantErr: keycloak.ErrInvalidToken,
		},
		{
			name: "expired",
			token: func() string {
				c := r.garthClaims()
				c["exp"] = time.Now().Add(-time.Hour).Unix()
				return sign(t, r.key, c)
			},
			wantErr: keycloak.ErrTokenExpired,
		},
		{
			name: "no expiry",
			token: func() string {
				c := r.garthClaims()
				delete(c, "exp")
				return sign(t, r.key, c)
			},
			wantErr: keycloak.ErrInvalidToken,
		},
		{
			name: "other realm",
			token: func() string {
				c := r.garthClaims()
				c["iss"] = "https://sso.example.com/realms/other"
				return sign(t, r.key, c)
			},
			wantErr: keycloak.ErrInvalidIssuer,
		},
		{
			name: "other client",
			token: func() string {
				c := r.garthClaims()
				c["aud"] = "billing"
				return sign(t, r.key, c)
			},
			wantErr: keycloak.ErrInvalidAudience,
		},
		{
			name: "no subject",
			token: func() string {
				c := r.garthClaims()
				delete(c, "sub")
				return sign(t, r.key, c)
			},
			wantErr: keycloak.ErrMissingSubject,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := v.Validate(context.Background(), tt.token())

			require.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, claims)
		})
	}
}

func TestJWTValidator_AudienceOptional(t *testing.T) {
	r := newRealm(t)
	v := r.validator(t, "")

	c := r.garthClaims()
	c["aud"] = "any-client"

	_, err := v.Validate(context.Background(), sign(t, r.key, c))

	assert.NoError(t, err)
}

func TestJWTValidator_LeewayAllowsClockSkew(t *testing.T) {
	r := newRealm(t)
	v := r.validator(t, testClient)

	c := r.garthClaims()
	c["exp"] = time.Now().Add(-10 * time.Second).Unix()

	_, err := v.Validate(context.Background(), sign(t, r.key, c))

	assert.NoError(t, err, "default leeway is 30s")
}

func TestJWTValidator_GroupsClaim(t *testing.T) {
	r := newRealm(t)
	v := r.validator(t, testClient)
	ctx := context.Background()

	t.Run("absent", func(t *testing.T) {
		c := r.garthClaims()
		delete(c, "groups")
		delete(c, "preferred_username")
		delete(c, "realm_access")

		claims, err := v.Validate(ctx, sign(t, r.key, c))

		require.NoError(t, err)
		assert.False(t, claims.HasGroupsClaim)
		assert.Nil(t, claims.Groups)
		assert.Nil(t, claims.RealmRoles)
		assert.Equal(t, "kc-garth", claims.Username, "username falls back to subject")
	})

	t.Run("empty", func(t *testing.T) {
		c := r.garthClaims()
		c["groups"] = []any{}

		claims, err := v.Validate(ctx, sign(t, r.key, c))

		require.NoError(t, err)
		assert.True(t, claims.HasGroupsClaim)
		assert.Empty(t, claims.Groups)
	})

	t.Run("non-string entries skipped", func(t *testing.T) {
		c := r.garthClaims()
		c["groups"] = []any{"/group-a", 456, "group-b"}

		claims, err := v.Validate(ctx, sign(t, r.key, c))

		require.NoError(t, err)
		assert.Equal(t, []string{"group-a", "group-b"}, claims.Groups)
	})
}

func TestJWTValidator_CloseTwice(t *testing.T) {
	r := newRealm(t)
	v, err := keycloak.NewJWTValidator(keycloak.JWTValidatorConfig{KeycloakURL: r.server.URL, Realm: testRealm})
	require.NoError(t, err)

	require.NoError(t, v.Close())
	assert.NoError(t, v.Close())
}

func TestGroupName(t *testing.T) {
	testCases := map[string]string{
		"doctor":            "doctor",
		"/doctor":           "doctor",
		"/clinic/doctor":    "doctor",
		"/clinic/doctor/":   "doctor",
		"  /activitiTeam  ": "activitiTeam",
		"":                  "",
	}

	for path, want := range testCases {
		assert.Equal(t, want, keycloak.GroupName(path), path)
	}
}
