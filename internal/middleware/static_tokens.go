package middleware

import (
	"context"
	"crypto/subtle"
	"slices"
)

// StaticUser binds a fixed bearer token to a principal.
type StaticUser struct {
	Token    string
	Username string
	Groups   []string
	Admin    bool
}

// StaticTokenValidator resolves fixed tokens to configured users. It backs
// mock mode only.
type StaticTokenValidator struct {
	users []StaticUser
}

// NewStaticTokenValidator copies users.
func NewStaticTokenValidator(users []StaticUser) *StaticTokenValidator {
	return &StaticTokenValidator{users: slices.Clone(users)}
}

// ValidateToken compares token against every configured token in constant time.
func (v *StaticTokenValidator) ValidateToken(_ context.Context, token string) (*TokenClaims, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	for _, u := range v.users {
		if u.Token != "" && ConstantTimeCompare(u.Token, token) {
			return &TokenClaims{
				Subject:  u.Username,
				Username: u.Username,
				Groups:   slices.Clone(u.Groups),
				IsAdmin:  u.Admin,
			}, nil
		}
	}
	return nil, ErrInvalidToken
}

// ConstantTimeCompare reports whether a equals b without leaking timing.
func ConstantTimeCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
