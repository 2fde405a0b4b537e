package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// AuthMode represents the authentication mode for the application.
type AuthMode string

const (
	// AuthModeOAuth uses OAuth/OIDC for authentication.
	AuthModeOAuth AuthMode = "oauth"
	// AuthModeMock uses locally signed tokens (for development only).
	AuthModeMock AuthMode = "mock"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "oauth", "mock":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: oauth, mock)", v)
	}
}

// OAuthConfig contains OAuth/OIDC configuration.
type OAuthConfig struct {
	ClientID     string `env:"CLIENT_ID"     envDefault:"microshop-ui"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURL  string `env:"REDIRECT_URL"  envDefault:"http://localhost:8080/auth/callback"`
	Scope        string `env:"SCOPE"         envDefault:"openid profile email"`
	DiscoveryURL string `env:"DISCOVERY_URL" envDefault:"http://localhost:8180/realms/microshop/.well-known/openid-configuration"`
	LogoutURL    string `env:"LOGOUT_URL"`
}

// DevAuthConfig controls the locally issued identity.
// Used when AUTH_MODE=mock for development and testing.
type DevAuthConfig struct {
	Username string   `env:"USERNAME" envDefault:"dev-user"`
	Roles    []string `env:"ROLES"    envDefault:"CLIENT;ADMIN"                envSeparator:";"`
	Secret   string   `env:"SECRET"   envDefault:"microshop-dev-signing-secret"`
}

// AuthConfig groups the session lifecycle and identity provider configuration.
type AuthConfig struct {
	// Mode determines which identity provider to use.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"oauth"`

	// LoginRequired follows the pending page's login challenge automatically
	// instead of offering a sign-in button.
	LoginRequired bool `env:"AUTH_LOGIN_REQUIRED" envDefault:"false"`

	// InitTimeout bounds one identity provider round trip. A timed out cycle
	// resolves to an anonymous session.
	InitTimeout time.Duration `env:"AUTH_INIT_TIMEOUT" envDefault:"10s"`

	// InitWait is how long a request waits for its client's session to become ready
	// before the pending page is rendered.
	InitWait time.Duration `env:"AUTH_INIT_WAIT" envDefault:"2s"`

	// ClientIdleTTL evicts session machines of clients not seen for this long.
	ClientIdleTTL time.Duration `env:"AUTH_CLIENT_IDLE_TTL" envDefault:"30m"`

	// TokenTTL is how long a client's token set is kept without a refresh.
	TokenTTL time.Duration `env:"AUTH_TOKEN_TTL" envDefault:"12h"`

	// RolesClaim and UsernameClaim are JMESPath expressions evaluated over token claims.
	RolesClaim    string `env:"AUTH_ROLES_CLAIM"    envDefault:"realm_access.roles"`
	UsernameClaim string `env:"AUTH_USERNAME_CLAIM" envDefault:"preferred_username"`

	OAuth   OAuthConfig   `envPrefix:"OAUTH_"`
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`
}

// Sanitize clamps durations to usable values.
func (a *AuthConfig) Sanitize() {
	if a.InitTimeout <= 0 {
		a.InitTimeout = 10 * time.Second
	}
	if a.InitWait < 0 {
		a.InitWait = 0
	}
	if a.InitWait > a.InitTimeout {
		a.InitWait = a.InitTimeout
	}
	if a.ClientIdleTTL < time.Minute {
		a.ClientIdleTTL = time.Minute
	}
	if a.TokenTTL <= 0 {
		a.TokenTTL = 12 * time.Hour
	}
	a.RolesClaim = strings.TrimSpace(a.RolesClaim)
	a.UsernameClaim = strings.TrimSpace(a.UsernameClaim)
}

// Validate checks that the selected mode has what it needs.
// Mock mode is refused outside development.
func (a *AuthConfig) Validate(isDev bool) error {
	switch a.Mode {
	case AuthModeMock:
		if !isDev {
			return errors.New("AUTH_MODE=mock requires DEV=true")
		}
		return nil
	case AuthModeOAuth, "":
		var errs []error
		if a.OAuth.ClientID == "" {
			errs = append(errs, errors.New("OAUTH_CLIENT_ID is required"))
		}
		if a.OAuth.ClientSecret == "" {
			errs = append(errs, errors.New("OAUTH_CLIENT_SECRET is required"))
		}
		if a.OAuth.DiscoveryURL == "" {
			errs = append(errs, errors.New("OAUTH_DISCOVERY_URL is required"))
		}
		return errors.Join(errs...)
	default:
		return fmt.Errorf("unsupported AUTH_MODE %q", a.Mode)
	}
}
