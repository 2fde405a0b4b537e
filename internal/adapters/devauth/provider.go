// Package devauth provides a config-driven IdentityProvider for local development.
package devauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	domainauth "github.com/target/microshop-ui/internal/domain/auth"
	"github.com/target/microshop-ui/internal/ports"
)

const (
	issuer       = "microshop-devauth"
	tokenUseKey  = "token_use"
	tokenAccess  = "access"
	tokenID      = "id"
	tokenRefresh = "refresh"
)

// Config controls the dev auth provider behavior.
// Username and Secret are required; Roles may be empty.
type Config struct {
	Username string
	Roles    []string
	Secret   string
	TokenTTL time.Duration // default 1h when zero
}

// Provider implements ports.IdentityProvider for local development.
// It short-circuits the OAuth flow by redirecting straight to our own callback and
// issues HS256 tokens that carry the configured user in Keycloak's claim layout.
type Provider struct {
	username string
	roles    []string
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
}

// NewProvider constructs a dev auth provider from Config.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.Username == "" {
		return nil, errors.New("dev auth: Username is required")
	}
	if len(cfg.Secret) < 16 {
		return nil, errors.New("dev auth: Secret must be at least 16 characters")
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Provider{
		username: cfg.Username,
		roles:    append([]string(nil), cfg.Roles...),
		secret:   []byte(cfg.Secret),
		ttl:      ttl,
		now:      time.Now,
	}, nil
}

// Begin returns a local callback URL and cryptographically secure state and nonce.
func (p *Provider) Begin(_ context.Context, _ ports.BeginInput) (ports.BeginOutput, error) {
	state, err := randomString(24)
	if err != nil {
		return ports.BeginOutput{}, fmt.Errorf("generate state: %w", err)
	}
	nonce, err := randomString(24)
	if err != nil {
		return ports.BeginOutput{}, fmt.Errorf("generate nonce: %w", err)
	}
	// The callback handler expects GET /auth/callback?code=...&state=...
	authURL := "/auth/callback?code=dev&state=" + url.QueryEscape(state)
	return ports.BeginOutput{AuthURL: authURL, State: state, Nonce: nonce}, nil
}

// Exchange ignores the code (state is checked by the handler) and issues tokens for the dev user.
func (p *Provider) Exchange(_ context.Context, in ports.ExchangeInput) (domainauth.TokenSet, error) {
	if in.Code == "" {
		return domainauth.TokenSet{}, errors.New("authorization code is required")
	}
	return p.issue(in.Nonce)
}

func (p *Provider) Refresh(_ context.Context, tokens domainauth.TokenSet) (domainauth.TokenSet, error) {
	if tokens.RefreshToken == "" {
		return domainauth.TokenSet{}, errors.New("refresh token is required")
	}
	claims, err := p.parse(tokens.RefreshToken)
	if err != nil {
		return domainauth.TokenSet{}, fmt.Errorf("refresh token: %w", err)
	}
	if claims[tokenUseKey] != tokenRefresh {
		return domainauth.TokenSet{}, errors.New("refresh token: wrong token type")
	}
	return p.issue("")
}

// Verify checks the access token signature and expiry and returns its claims.
func (p *Provider) Verify(_ context.Context, tokens domainauth.TokenSet) (map[string]any, error) {
	if tokens.AccessToken == "" {
		return nil, errors.New("access token is required")
	}
	claims, err := p.parse(tokens.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("verify access token: %w", err)
	}
	if claims[tokenUseKey] != tokenAccess {
		return nil, errors.New("verify access token: wrong token type")
	}
	return claims, nil
}

// EndSessionURL sends the browser straight back; there is no provider session to end.
func (p *Provider) EndSessionURL(_, postLogoutRedirect string) string {
	return postLogoutRedirect
}

func (p *Provider) issue(nonce string) (domainauth.TokenSet, error) {
	now := p.now()
	exp := now.Add(p.ttl)
	roles := make([]any, 0, len(p.roles))
	for _, r := range p.roles {
		roles = append(roles, r)
	}

	base := func(use string, until time.Time) jwt.MapClaims {
		return jwt.MapClaims{
			"iss":                issuer,
			"sub":                p.username,
			"iat":                now.Unix(),
			"exp":                until.Unix(),
			"preferred_username": p.username,
			tokenUseKey:          use,
		}
	}

	access := base(tokenAccess, exp)
	access["realm_access"] = map[string]any{"roles": roles}
	id := base(tokenID, exp)
	if nonce != "" {
		id["nonce"] = nonce
	}
	refresh := base(tokenRefresh, now.Add(24*time.Hour))

	var ts domainauth.TokenSet
	var err error
	if ts.AccessToken, err = p.sign(access); err != nil {
		return domainauth.TokenSet{}, err
	}
	if ts.IDToken, err = p.sign(id); err != nil {
		return domainauth.TokenSet{}, err
	}
	if ts.RefreshToken, err = p.sign(refresh); err != nil {
		return domainauth.TokenSet{}, err
	}
	ts.Expiry = exp
	return ts, nil
}

func (p *Provider) sign(claims jwt.MapClaims) (string, error) {
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return s, nil
}

func (p *Provider) parse(raw string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func randomString(n int) (string, error) {
	if n <= 0 {
		return "", nil
	}
	b := make([]byte, (n*3+3)/4+1)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b)[:n], nil
}
