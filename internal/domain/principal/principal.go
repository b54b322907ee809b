// Package principal describes the authenticated actor on whose behalf a task
// operation runs. A Principal is always passed explicitly; it is never stored
// in package state or resolved implicitly.
package principal

import (
	"slices"
	"strings"
)

// Principal is an authenticated user with group memberships.
type Principal struct {
	username string
	groups   []string
	admin    bool
}

// New creates a principal. Group names are trimmed, deduplicated and sorted.
func New(username string, groups []string, admin bool) Principal {
	normalized := make([]string, 0, len(groups))
	for _, g := range groups {
		g = strings.TrimSpace(g)
		if g == "" {
			continue
		}
		normalized = append(normalized, g)
	}
	slices.Sort(normalized)

	return Principal{
		username: strings.TrimSpace(username),
		groups:   slices.Compact(normalized),
		admin:    admin,
	}
}

// Username returns the principal identifier.
func (p Principal) Username() string {
	return p.username
}

// Groups returns a copy of the group memberships.
func (p Principal) Groups() []string {
	return slices.Clone(p.groups)
}

// IsAdmin reports whether the principal holds the administrative capability.
func (p Principal) IsAdmin() bool {
	return p.admin
}

// InGroup reports whether the principal is a member of group.
func (p Principal) InGroup(group string) bool {
	if group == "" {
		return false
	}
	_, found := slices.BinarySearch(p.groups, group)
	return found
}

// Is reports whether the principal is the user with the given username.
func (p Principal) Is(username string) bool {
	return username != "" && p.username == username
}

// IsZero reports whether no principal is bound.
func (p Principal) IsZero() bool {
	return p.username == ""
}

// String returns the username.
func (p Principal) String() string {
	return p.username
}
