package auth

// Package auth contains domain-level types for authentication and sessions.
// It is pure and free of framework/adapter concerns.

import (
	"slices"
	"time"
)

// Role represents an authorization role issued by the identity provider.
// The set is open; the constants below are the roles the storefront checks.
type Role string

const (
	RoleClient Role = "CLIENT"
	RoleAdmin  Role = "ADMIN"
)

// RoleSet is an unordered set of roles.
type RoleSet map[Role]struct{}

// NewRoleSet builds a RoleSet from role names, skipping empty values.
func NewRoleSet(roles ...string) RoleSet {
	rs := make(RoleSet, len(roles))
	for _, r := range roles {
		if r == "" {
			continue
		}
		rs[Role(r)] = struct{}{}
	}
	return rs
}

// Has reports whether r is a member of the set. A nil set has no members.
func (rs RoleSet) Has(r Role) bool {
	if r == "" {
		return false
	}
	_, ok := rs[r]
	return ok
}

// Clone returns an independent copy of the set.
func (rs RoleSet) Clone() RoleSet {
	out := make(RoleSet, len(rs))
	for r := range rs {
		out[r] = struct{}{}
	}
	return out
}

// Strings returns the members sorted for stable output.
func (rs RoleSet) Strings() []string {
	out := make([]string, 0, len(rs))
	for r := range rs {
		out = append(out, string(r))
	}
	slices.Sort(out)
	return out
}

// Session is an immutable snapshot of one browser client's authentication state.
// Build it with Anonymous or NewAuthenticated so the anonymous invariants hold.
type Session struct {
	Initialized   bool      `json:"initialized"`
	Authenticated bool      `json:"authenticated"`
	Token         string    `json:"-"`
	Roles         RoleSet   `json:"-"`
	Username      string    `json:"username,omitempty"`
	ExpiresAt     time.Time `json:"expires_at,omitzero"`
}

// Anonymous returns a session with no credentials.
func Anonymous(initialized bool) Session {
	return Session{Initialized: initialized, Roles: RoleSet{}}
}

// NewAuthenticated returns an initialized, authenticated session.
// An empty token or username yields an initialized anonymous session instead.
func NewAuthenticated(token, username string, roles RoleSet, expiresAt time.Time) Session {
	if token == "" || username == "" {
		return Anonymous(true)
	}
	return Session{
		Initialized:   true,
		Authenticated: true,
		Token:         token,
		Roles:         roles.Clone(),
		Username:      username,
		ExpiresAt:     expiresAt,
	}
}

// Clone returns a deep copy so callers can never alias the role set.
func (s Session) Clone() Session {
	s.Roles = s.Roles.Clone()
	return s
}

// TokenSet is the raw token material kept server-side for a client.
type TokenSet struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	IDToken      string    `json:"id_token,omitempty"`
	Expiry       time.Time `json:"expiry"`
}

// Expired reports whether the access token is past its expiry, with skew.
// A zero expiry never expires.
func (t TokenSet) Expired(now time.Time, skew time.Duration) bool {
	if t.Expiry.IsZero() {
		return false
	}
	return !now.Add(skew).Before(t.Expiry)
}

// Identity represents the authenticated principal mapped from provider claims.
type Identity struct {
	Subject  string
	Username string
	Email    string
	Roles    RoleSet
}
