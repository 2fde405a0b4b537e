// Package authroles maps identity provider claims into application identities.
package authroles

import (
	"errors"
	"fmt"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"
	domainauth "github.com/target/microshop-ui/internal/domain/auth"
)

const (
	// DefaultRolesExpr reads Keycloak realm roles.
	DefaultRolesExpr = "realm_access.roles"
	// DefaultUsernameExpr reads the Keycloak login name.
	DefaultUsernameExpr = "preferred_username"
)

// ClaimsMapper evaluates JMESPath expressions over decoded claims.
// Roles are taken verbatim; the role set is open.
type ClaimsMapper struct {
	roles    jmespath.JMESPath
	username jmespath.JMESPath
}

// Config names the claim expressions. Empty fields use the Keycloak defaults.
type Config struct {
	RolesExpr    string
	UsernameExpr string
}

// NewClaimsMapper compiles the configured expressions.
func NewClaimsMapper(cfg Config) (*ClaimsMapper, error) {
	rolesExpr := strings.TrimSpace(cfg.RolesExpr)
	if rolesExpr == "" {
		rolesExpr = DefaultRolesExpr
	}
	usernameExpr := strings.TrimSpace(cfg.UsernameExpr)
	if usernameExpr == "" {
		usernameExpr = DefaultUsernameExpr
	}

	roles, err := jmespath.Compile(rolesExpr)
	if err != nil {
		return nil, fmt.Errorf("compile roles expression %q: %w", rolesExpr, err)
	}
	username, err := jmespath.Compile(usernameExpr)
	if err != nil {
		return nil, fmt.Errorf("compile username expression %q: %w", usernameExpr, err)
	}
	return &ClaimsMapper{roles: roles, username: username}, nil
}

// Map builds an identity. The username falls back to the subject; a claim set with
// neither is rejected.
func (m *ClaimsMapper) Map(claims map[string]any) (domainauth.Identity, error) {
	if len(claims) == 0 {
		return domainauth.Identity{}, errors.New("no claims")
	}

	subject, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)

	username, err := m.searchString(m.username, claims)
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("evaluate username: %w", err)
	}
	if username == "" {
		username = subject
	}
	if username == "" {
		return domainauth.Identity{}, errors.New("claims carry no username or subject")
	}

	rawRoles, err := m.roles.Search(claims)
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("evaluate roles: %w", err)
	}

	return domainauth.Identity{
		Subject:  subject,
		Username: username,
		Email:    email,
		Roles:    domainauth.NewRoleSet(toStrings(rawRoles)...),
	}, nil
}

func (m *ClaimsMapper) searchString(expr jmespath.JMESPath, claims map[string]any) (string, error) {
	v, err := expr.Search(claims)
	if err != nil {
		return "", err
	}
	s, _ := v.(string)
	return strings.TrimSpace(s), nil
}

// toStrings accepts a list of strings or a single string; anything else yields nothing.
func toStrings(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
