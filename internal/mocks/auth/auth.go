package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	domainauth "github.com/target/microshop-ui/internal/domain/auth"
	"github.com/target/microshop-ui/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.IdentityProvider = (*FakeProvider)(nil)
	_ ports.TokenRepository  = (*MemoryTokenStore)(nil)
	_ ports.ClaimsMapper     = StaticClaimsMapper{}
)

// FakeProvider simulates an IdP for tests with deterministic state/nonce handling.
// Verify can be slowed down or blocked to exercise concurrent initialization.
type FakeProvider struct {
	BeginFunc    func(ctx context.Context, in ports.BeginInput) (ports.BeginOutput, error)
	ExchangeFunc func(ctx context.Context, in ports.ExchangeInput) (domainauth.TokenSet, error)
	RefreshFunc  func(ctx context.Context, tokens domainauth.TokenSet) (domainauth.TokenSet, error)
	VerifyFunc   func(ctx context.Context, tokens domainauth.TokenSet) (map[string]any, error)

	AuthURL   string
	LogoutURL string
	Claims    map[string]any
	// Gate, when non-nil, blocks Verify until it is closed or ctx is done.
	Gate chan struct{}

	beginCalls    atomic.Int64
	exchangeCalls atomic.Int64
	refreshCalls  atomic.Int64
	verifyCalls   atomic.Int64
}

// NewFakeProvider creates a FakeProvider whose tokens carry the given roles.
func NewFakeProvider(username string, roles ...string) *FakeProvider {
	rs := make([]any, 0, len(roles))
	for _, r := range roles {
		rs = append(rs, r)
	}
	return &FakeProvider{
		AuthURL:   "https://mock-idp/auth",
		LogoutURL: "https://mock-idp/logout",
		Claims: map[string]any{
			"sub":                "sub-" + username,
			"preferred_username": username,
			"realm_access":       map[string]any{"roles": rs},
		},
	}
}

// BeginCalls reports how many times Begin ran.
func (p *FakeProvider) BeginCalls() int { return int(p.beginCalls.Load()) }

// ExchangeCalls reports how many times Exchange ran.
func (p *FakeProvider) ExchangeCalls() int { return int(p.exchangeCalls.Load()) }

// RefreshCalls reports how many times Refresh ran.
func (p *FakeProvider) RefreshCalls() int { return int(p.refreshCalls.Load()) }

// VerifyCalls reports how many identity round trips were made.
func (p *FakeProvider) VerifyCalls() int { return int(p.verifyCalls.Load()) }

func (p *FakeProvider) Begin(ctx context.Context, in ports.BeginInput) (ports.BeginOutput, error) {
	n := p.beginCalls.Add(1)
	if p.BeginFunc != nil {
		return p.BeginFunc(ctx, in)
	}
	authURL := p.AuthURL
	if authURL == "" {
		authURL = "https://mock-idp/auth"
	}
	return ports.BeginOutput{
		AuthURL:  authURL,
		State:    fmt.Sprintf("state-%d", n),
		Nonce:    fmt.Sprintf("nonce-%d", n),
		Verifier: fmt.Sprintf("verifier-%d", n),
	}, nil
}

func (p *FakeProvider) Exchange(ctx context.Context, in ports.ExchangeInput) (domainauth.TokenSet, error) {
	p.exchangeCalls.Add(1)
	if p.ExchangeFunc != nil {
		return p.ExchangeFunc(ctx, in)
	}
	if in.Code == "" {
		return domainauth.TokenSet{}, errors.New("authorization code is required")
	}
	return FreshTokens("access-" + in.Code), nil
}

func (p *FakeProvider) Refresh(ctx context.Context, tokens domainauth.TokenSet) (domainauth.TokenSet, error) {
	p.refreshCalls.Add(1)
	if p.RefreshFunc != nil {
		return p.RefreshFunc(ctx, tokens)
	}
	if tokens.RefreshToken == "" {
		return domainauth.TokenSet{}, errors.New("no refresh token")
	}
	return FreshTokens(tokens.AccessToken + "-refreshed"), nil
}

func (p *FakeProvider) Verify(ctx context.Context, tokens domainauth.TokenSet) (map[string]any, error) {
	p.verifyCalls.Add(1)
	if p.Gate != nil {
		select {
		case <-p.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.VerifyFunc != nil {
		return p.VerifyFunc(ctx, tokens)
	}
	if tokens.AccessToken == "" {
		return nil, errors.New("no access token")
	}
	out := make(map[string]any, len(p.Claims))
	for k, v := range p.Claims {
		out[k] = v
	}
	return out, nil
}

func (p *FakeProvider) EndSessionURL(idTokenHint, postLogoutRedirect string) string {
	if p.LogoutURL == "" {
		return ""
	}
	q := url.Values{}
	if idTokenHint != "" {
		q.Set("id_token_hint", idTokenHint)
	}
	if postLogoutRedirect != "" {
		q.Set("post_logout_redirect_uri", postLogoutRedirect)
	}
	if len(q) == 0 {
		return p.LogoutURL
	}
	return p.LogoutURL + "?" + q.Encode()
}

// FreshTokens builds a token set valid for one hour.
func FreshTokens(access string) domainauth.TokenSet {
	return domainauth.TokenSet{
		AccessToken:  access,
		RefreshToken: "refresh-" + access,
		IDToken:      "id-" + access,
		Expiry:       time.Now().Add(time.Hour),
	}
}

// MemoryTokenStore is an in-memory implementation of ports.TokenRepository.
type MemoryTokenStore struct {
	mu     sync.RWMutex
	tokens map[string]domainauth.TokenSet
	// Err, when set, is returned by every operation.
	Err error
}

// NewMemoryTokenStore creates a new in-memory token store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{tokens: make(map[string]domainauth.TokenSet)}
}

func (s *MemoryTokenStore) Save(_ context.Context, clientID string, tokens domainauth.TokenSet) error {
	if s.Err != nil {
		return s.Err
	}
	if clientID == "" {
		return errors.New("client ID cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[clientID] = tokens
	return nil
}

func (s *MemoryTokenStore) Get(_ context.Context, clientID string) (domainauth.TokenSet, error) {
	if s.Err != nil {
		return domainauth.TokenSet{}, s.Err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tokens[clientID]
	if !ok {
		return domainauth.TokenSet{}, ports.ErrNoTokens
	}
	return t, nil
}

func (s *MemoryTokenStore) Delete(_ context.Context, clientID string) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, clientID)
	return nil
}

// Len reports how many clients have stored tokens.
func (s *MemoryTokenStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}

// StaticClaimsMapper reads preferred_username (falling back to sub) and a flat
// "roles" or realm_access.roles claim without expression evaluation.
type StaticClaimsMapper struct {
	Err error
}

func (m StaticClaimsMapper) Map(claims map[string]any) (domainauth.Identity, error) {
	if m.Err != nil {
		return domainauth.Identity{}, m.Err
	}
	sub, _ := claims["sub"].(string)
	username, _ := claims["preferred_username"].(string)
	if username == "" {
		username = sub
	}
	var raw []any
	if v, ok := claims["roles"].([]any); ok {
		raw = v
	} else if ra, ok := claims["realm_access"].(map[string]any); ok {
		raw, _ = ra["roles"].([]any)
	}
	roles := make([]string, 0, len(raw))
	for _, r := range raw {
		if s, ok := r.(string); ok {
			roles = append(roles, s)
		}
	}
	return domainauth.Identity{
		Subject:  sub,
		Username: username,
		Roles:    domainauth.NewRoleSet(roles...),
	}, nil
}
