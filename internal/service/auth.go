package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	domainauth "github.com/target/microshop-ui/internal/domain/auth"
	"github.com/target/microshop-ui/internal/ports"
)

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Provider ports.IdentityProvider
	Tokens   ports.TokenRepository
	Sessions *SessionRegistry
	// NewClientID mints the client id bound at login; defaults to a random UUID.
	NewClientID func() string
}

// AuthService orchestrates the two halves of the login redirect and logout,
// handing the resulting tokens to the client's session machine.
type AuthService struct {
	provider    ports.IdentityProvider
	tokens      ports.TokenRepository
	sessions    *SessionRegistry
	newClientID func() string
}

// ErrLoginNotAuthenticated is returned when stored tokens did not yield an authenticated session.
var ErrLoginNotAuthenticated = errors.New("login did not produce an authenticated session")

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) *AuthService {
	if opts.Provider == nil || opts.Tokens == nil || opts.Sessions == nil {
		panic("auth service requires provider, token repository and session registry")
	}
	newClientID := opts.NewClientID
	if newClientID == nil {
		newClientID = uuid.NewString
	}
	return &AuthService{
		provider:    opts.Provider,
		tokens:      opts.Tokens,
		sessions:    opts.Sessions,
		newClientID: newClientID,
	}
}

// BeginLoginResult contains the result of beginning a login flow.
type BeginLoginResult struct {
	AuthURL  string
	State    string
	Nonce    string
	Verifier string
}

// BeginLogin initiates an authentication flow and returns the provider auth URL with state and nonce.
func (s *AuthService) BeginLogin(ctx context.Context, redirectURL string) (*BeginLoginResult, error) {
	if redirectURL == "" {
		return nil, errors.New("redirect URL is required")
	}

	out, err := s.provider.Begin(ctx, ports.BeginInput{RedirectURL: redirectURL})
	if err != nil {
		return nil, fmt.Errorf("begin auth flow: %w", err)
	}

	return &BeginLoginResult{
		AuthURL:  out.AuthURL,
		State:    out.State,
		Nonce:    out.Nonce,
		Verifier: out.Verifier,
	}, nil
}

// CompleteLoginInput groups parameters for completing a login flow.
type CompleteLoginInput struct {
	ClientID string
	Code     string
	State    string
	Nonce    string
	Verifier string
}

// CompleteLoginResult contains the result of completing a login flow.
// ClientID is the id the browser must present from now on.
type CompleteLoginResult struct {
	ClientID string
	Session  domainauth.Session
}

// CompleteLogin exchanges the authorization code and binds the tokens to a
// freshly minted client id. The pre-login id is signed out and forgotten so a
// planted cookie never inherits the session.
func (s *AuthService) CompleteLogin(ctx context.Context, input CompleteLoginInput) (*CompleteLoginResult, error) {
	if input.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if input.Code == "" {
		return nil, errors.New("authorization code is required")
	}
	if input.State == "" {
		return nil, errors.New("state parameter is required")
	}
	if input.Nonce == "" {
		return nil, errors.New("nonce parameter is required")
	}

	tokens, err := s.provider.Exchange(ctx, ports.ExchangeInput{
		Code:     input.Code,
		State:    input.State,
		Nonce:    input.Nonce,
		Verifier: input.Verifier,
	})
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}

	if retireErr := s.retire(ctx, input.ClientID); retireErr != nil {
		return nil, retireErr
	}

	clientID := s.newClientID()
	if saveErr := s.tokens.Save(ctx, clientID, tokens); saveErr != nil {
		return nil, fmt.Errorf("save tokens: %w", saveErr)
	}

	sess := s.sessions.Client(clientID).Machine.Reinitialize(ctx)
	if !sess.Authenticated {
		_ = s.retire(ctx, clientID)
		return nil, ErrLoginNotAuthenticated
	}

	return &CompleteLoginResult{ClientID: clientID, Session: sess}, nil
}

// retire signs clientID out and drops it from the registry.
func (s *AuthService) retire(ctx context.Context, clientID string) error {
	if c, ok := s.sessions.Lookup(clientID); ok {
		c.Machine.Logout(ctx)
	}
	s.sessions.Forget(clientID)
	if err := s.tokens.Delete(ctx, clientID); err != nil {
		return fmt.Errorf("delete tokens for previous client: %w", err)
	}
	return nil
}

// Logout signs the client out locally and returns the provider end-session
// URL, or "" when the provider has none.
func (s *AuthService) Logout(ctx context.Context, clientID, postLogoutRedirect string) string {
	if clientID == "" {
		return s.provider.EndSessionURL("", postLogoutRedirect)
	}
	hint := s.sessions.Client(clientID).Machine.Logout(ctx)
	return s.provider.EndSessionURL(hint, postLogoutRedirect)
}
