package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	domainauth "github.com/target/microshop-ui/internal/domain/auth"
	"github.com/target/microshop-ui/internal/ports"
)

// tokenExpirySkew refreshes access tokens slightly before they expire.
const tokenExpirySkew = 30 * time.Second

// IdentityDeps groups the ports an IdentityAdapter talks to.
type IdentityDeps struct {
	Provider ports.IdentityProvider
	Tokens   ports.TokenRepository
	Claims   ports.ClaimsMapper
}

// IdentityAdapterOptions groups dependencies for IdentityAdapter.
type IdentityAdapterOptions struct {
	ClientID string
	Deps     IdentityDeps
	Logger   *slog.Logger
}

// IdentityAdapter resolves one browser client's identity from its stored tokens.
type IdentityAdapter struct {
	clientID string
	deps     IdentityDeps
	logger   *slog.Logger
	now      func() time.Time
}

// NewIdentityAdapter constructs an IdentityAdapter.
func NewIdentityAdapter(opts IdentityAdapterOptions) *IdentityAdapter {
	if opts.Deps.Provider == nil || opts.Deps.Tokens == nil || opts.Deps.Claims == nil {
		panic("identity adapter requires provider, token repository and claims mapper")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &IdentityAdapter{
		clientID: opts.ClientID,
		deps:     opts.Deps,
		logger:   logger.With("component", "identity_adapter", "client_id", opts.ClientID),
		now:      time.Now,
	}
}

// Resolve resolves the client's session. Failures are logged and yield an
// initialized anonymous session alongside the error that caused the fallback.
// A client without stored tokens is anonymous without error.
func (a *IdentityAdapter) Resolve(ctx context.Context) (domainauth.Session, error) {
	sess, err := a.resolve(ctx)
	if err != nil {
		a.logger.WarnContext(ctx, "identity initialization failed", "error", err)
		return domainauth.Anonymous(true), err
	}
	return sess, nil
}

func (a *IdentityAdapter) resolve(ctx context.Context) (domainauth.Session, error) {
	tokens, err := a.deps.Tokens.Get(ctx, a.clientID)
	if errors.Is(err, ports.ErrNoTokens) {
		return domainauth.Anonymous(true), nil
	}
	if err != nil {
		return domainauth.Session{}, fmt.Errorf("load tokens: %w", err)
	}

	if tokens.Expired(a.now(), tokenExpirySkew) {
		tokens, err = a.refresh(ctx, tokens)
		if err != nil {
			return domainauth.Session{}, err
		}
	}

	claims, err := a.deps.Provider.Verify(ctx, tokens)
	if err != nil {
		a.discardTokens(ctx)
		return domainauth.Session{}, fmt.Errorf("verify tokens: %w", err)
	}
	identity, err := a.deps.Claims.Map(claims)
	if err != nil {
		return domainauth.Session{}, fmt.Errorf("map claims: %w", err)
	}

	sess := domainauth.NewAuthenticated(tokens.AccessToken, identity.Username, identity.Roles, tokens.Expiry)
	if !sess.Authenticated {
		return domainauth.Session{}, errors.New("claims carry no username")
	}
	return sess, nil
}

func (a *IdentityAdapter) refresh(ctx context.Context, tokens domainauth.TokenSet) (domainauth.TokenSet, error) {
	if tokens.RefreshToken == "" {
		a.discardTokens(ctx)
		return domainauth.TokenSet{}, errors.New("access token expired and no refresh token")
	}
	fresh, err := a.deps.Provider.Refresh(ctx, tokens)
	if err != nil {
		a.discardTokens(ctx)
		return domainauth.TokenSet{}, fmt.Errorf("refresh tokens: %w", err)
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = tokens.RefreshToken
	}
	if fresh.IDToken == "" {
		fresh.IDToken = tokens.IDToken
	}
	if saveErr := a.deps.Tokens.Save(ctx, a.clientID, fresh); saveErr != nil {
		a.logger.WarnContext(ctx, "failed to persist refreshed tokens", "error", saveErr)
	}
	return fresh, nil
}

// discardTokens drops stored tokens the provider rejected. Context errors
// leave them alone so a slow provider does not sign the user out.
func (a *IdentityAdapter) discardTokens(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := a.deps.Tokens.Delete(ctx, a.clientID); err != nil {
		a.logger.WarnContext(ctx, "failed to delete rejected tokens", "error", err)
	}
}

// Logout deletes the client's stored tokens and returns the ID token to pass
// to the provider's end-session endpoint.
func (a *IdentityAdapter) Logout(ctx context.Context) string {
	var hint string
	tokens, err := a.deps.Tokens.Get(ctx, a.clientID)
	switch {
	case err == nil:
		hint = tokens.IDToken
	case !errors.Is(err, ports.ErrNoTokens):
		a.logger.WarnContext(ctx, "failed to load tokens for logout", "error", err)
	}
	if delErr := a.deps.Tokens.Delete(ctx, a.clientID); delErr != nil {
		a.logger.WarnContext(ctx, "failed to delete tokens on logout", "error", delErr)
	}
	return hint
}
