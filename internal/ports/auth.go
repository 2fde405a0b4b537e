package ports

// Package ports defines interfaces (hexagonal ports) for auth, gateway and audit behavior.
// Implementations live in internal/adapters and internal/data; orchestration in internal/service.

import (
	"context"
	"errors"

	domainauth "github.com/target/microshop-ui/internal/domain/auth"
)

// ErrNoTokens is returned by a TokenRepository when a client has no stored tokens.
var ErrNoTokens = errors.New("no tokens stored for client")

// BeginInput carries inputs for initiating an auth flow.
type BeginInput struct {
	RedirectURL string
}

// BeginOutput is the provider redirect plus the anti-forgery values the caller must keep.
type BeginOutput struct {
	AuthURL string
	State   string
	Nonce   string
	// Verifier is the PKCE code verifier; empty when the provider does not use PKCE.
	Verifier string
}

// ExchangeInput groups parameters for the code/token exchange.
type ExchangeInput struct {
	Code     string
	State    string
	Nonce    string
	Verifier string
}

// IdentityProvider wraps an OpenID Connect provider.
type IdentityProvider interface {
	// Begin starts the login flow and returns the provider auth URL, an opaque state, and a nonce.
	Begin(ctx context.Context, in BeginInput) (BeginOutput, error)

	// Exchange completes the login flow, verifying the nonce, and returns the raw token set.
	Exchange(ctx context.Context, in ExchangeInput) (domainauth.TokenSet, error)

	// Refresh trades a refresh token for a new token set.
	Refresh(ctx context.Context, tokens domainauth.TokenSet) (domainauth.TokenSet, error)

	// Verify validates the token set and returns the decoded claims.
	Verify(ctx context.Context, tokens domainauth.TokenSet) (map[string]any, error)

	// EndSessionURL returns the provider logout URL, or "" when the provider has none.
	EndSessionURL(idTokenHint, postLogoutRedirect string) string
}

// TokenRepository persists token sets per browser client.
type TokenRepository interface {
	Save(ctx context.Context, clientID string, tokens domainauth.TokenSet) error
	// Get returns ErrNoTokens when nothing is stored for clientID.
	Get(ctx context.Context, clientID string) (domainauth.TokenSet, error)
	Delete(ctx context.Context, clientID string) error
}

// ClaimsMapper maps provider claims into an application identity.
type ClaimsMapper interface {
	Map(claims map[string]any) (domainauth.Identity, error)
}
