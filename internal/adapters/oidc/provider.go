// Package oidc provides the OpenID Connect identity provider adapter.
package oidc

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	domainauth "github.com/target/microshop-ui/internal/domain/auth"
	"github.com/target/microshop-ui/internal/ports"
	"golang.org/x/oauth2"
)

// Provider implements ports.IdentityProvider on top of go-oidc and x/oauth2.
type Provider struct {
	config     *oauth2.Config
	logoutURL  string
	httpClient *http.Client

	oidcProvider   *gooidc.Provider
	verifier       *gooidc.IDTokenVerifier
	accessVerifier *gooidc.IDTokenVerifier
}

// ProviderConfig holds configuration for the OIDC provider.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scope        string
	DiscoveryURL string
	// LogoutURL overrides the end_session_endpoint advertised by discovery.
	LogoutURL  string
	HTTPClient *http.Client // Optional, defaults to a 30s client
}

// DiscoveryDocument represents the subset of the OIDC discovery document the provider reads.
type DiscoveryDocument struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserinfoEndpoint      string `json:"userinfo_endpoint"`
	JwksURI               string `json:"jwks_uri"`
	EndSessionEndpoint    string `json:"end_session_endpoint,omitempty"`
}

// NewProvider creates a new OIDC provider. It performs discovery once.
func NewProvider(ctx context.Context, config ProviderConfig) (*Provider, error) {
	if config.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if config.ClientSecret == "" {
		return nil, errors.New("client secret is required")
	}
	if config.RedirectURL == "" {
		return nil, errors.New("redirect URL is required")
	}
	if config.DiscoveryURL == "" {
		return nil, errors.New("discovery URL is required")
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	p := &Provider{
		logoutURL:  config.LogoutURL,
		httpClient: httpClient,
	}

	// Keys are fetched lazily by the verifier with this client, so it must outlive ctx.
	clientCtx := gooidc.ClientContext(context.WithoutCancel(ctx), httpClient)
	op, err := gooidc.NewProvider(clientCtx, issuerFromDiscoveryURL(config.DiscoveryURL))
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}
	p.oidcProvider = op
	p.verifier = op.Verifier(&gooidc.Config{ClientID: config.ClientID})
	// Keycloak access tokens carry aud=account rather than the client id.
	p.accessVerifier = op.Verifier(&gooidc.Config{SkipClientIDCheck: true})

	if p.logoutURL == "" {
		var doc DiscoveryDocument
		if claimsErr := op.Claims(&doc); claimsErr == nil {
			p.logoutURL = doc.EndSessionEndpoint
		}
	}

	scopes := strings.Fields(config.Scope)
	if len(scopes) == 0 {
		scopes = []string{gooidc.ScopeOpenID, "profile", "email"}
	}
	p.config = &oauth2.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		RedirectURL:  config.RedirectURL,
		Scopes:       scopes,
		Endpoint:     op.Endpoint(),
	}

	return p, nil
}

func issuerFromDiscoveryURL(raw string) string {
	issuer := strings.TrimSuffix(raw, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	return issuer
}

func (p *Provider) Begin(_ context.Context, in ports.BeginInput) (ports.BeginOutput, error) {
	if in.RedirectURL == "" {
		return ports.BeginOutput{}, errors.New("redirect URL is required")
	}

	state, err := generateRandomString(32)
	if err != nil {
		return ports.BeginOutput{}, fmt.Errorf("generate state: %w", err)
	}
	nonce, err := generateRandomString(32)
	if err != nil {
		return ports.BeginOutput{}, fmt.Errorf("generate nonce: %w", err)
	}

	verifier := oauth2.GenerateVerifier()

	// redirect_uri stays the configured one; in.RedirectURL is where the app returns after the callback.
	authURL := p.config.AuthCodeURL(state, gooidc.Nonce(nonce), oauth2.S256ChallengeOption(verifier))

	return ports.BeginOutput{AuthURL: authURL, State: state, Nonce: nonce, Verifier: verifier}, nil
}

func (p *Provider) Exchange(ctx context.Context, in ports.ExchangeInput) (domainauth.TokenSet, error) {
	if in.Code == "" {
		return domainauth.TokenSet{}, errors.New("authorization code is required")
	}
	if in.State == "" {
		return domainauth.TokenSet{}, errors.New("state is required")
	}
	if in.Nonce == "" {
		return domainauth.TokenSet{}, errors.New("nonce is required")
	}

	var opts []oauth2.AuthCodeOption
	if in.Verifier != "" {
		opts = append(opts, oauth2.VerifierOption(in.Verifier))
	}
	token, err := p.config.Exchange(p.clientContext(ctx), in.Code, opts...)
	if err != nil {
		return domainauth.TokenSet{}, fmt.Errorf("exchange code for token: %w", err)
	}

	tokens := tokenSetFrom(token)
	if p.hasOpenIDScope() {
		if tokens.IDToken == "" {
			return domainauth.TokenSet{}, errors.New("missing id_token in token response")
		}
		idTok, verifyErr := p.verifier.Verify(p.clientContext(ctx), tokens.IDToken)
		if verifyErr != nil {
			return domainauth.TokenSet{}, fmt.Errorf("verify id_token: %w", verifyErr)
		}
		if idTok.Nonce != in.Nonce {
			return domainauth.TokenSet{}, errors.New("invalid nonce")
		}
	}

	return tokens, nil
}

func (p *Provider) Refresh(ctx context.Context, tokens domainauth.TokenSet) (domainauth.TokenSet, error) {
	if tokens.RefreshToken == "" {
		return domainauth.TokenSet{}, errors.New("refresh token is required")
	}

	// An empty access token forces the token source to hit the token endpoint.
	src := p.config.TokenSource(p.clientContext(ctx), &oauth2.Token{RefreshToken: tokens.RefreshToken})
	token, err := src.Token()
	if err != nil {
		return domainauth.TokenSet{}, fmt.Errorf("refresh token: %w", err)
	}

	refreshed := tokenSetFrom(token)
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = tokens.RefreshToken
	}
	if refreshed.IDToken == "" {
		refreshed.IDToken = tokens.IDToken
	}
	return refreshed, nil
}

// Verify validates the ID token (or the access token when no ID token is held) and returns
// its claims. Claims carried by a JWT access token are merged on top, since Keycloak puts
// realm roles there.
func (p *Provider) Verify(ctx context.Context, tokens domainauth.TokenSet) (map[string]any, error) {
	if tokens.AccessToken == "" {
		return nil, errors.New("access token is required")
	}

	claims := map[string]any{}
	if tokens.IDToken != "" {
		idTok, err := p.verifier.Verify(p.clientContext(ctx), tokens.IDToken)
		if err != nil {
			return nil, fmt.Errorf("verify id_token: %w", err)
		}
		if err := idTok.Claims(&claims); err != nil {
			return nil, fmt.Errorf("parse id_token claims: %w", err)
		}
		if access, ok := accessTokenClaims(tokens.AccessToken); ok {
			maps.Copy(claims, access)
		}
		return claims, nil
	}

	accessTok, err := p.accessVerifier.Verify(p.clientContext(ctx), tokens.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("verify access token: %w", err)
	}
	if err := accessTok.Claims(&claims); err != nil {
		return nil, fmt.Errorf("parse access token claims: %w", err)
	}
	return claims, nil
}

func (p *Provider) EndSessionURL(idTokenHint, postLogoutRedirect string) string {
	if p.logoutURL == "" {
		return ""
	}
	u, err := url.Parse(p.logoutURL)
	if err != nil {
		return ""
	}
	q := u.Query()
	if idTokenHint != "" {
		q.Set("id_token_hint", idTokenHint)
	}
	if postLogoutRedirect != "" {
		q.Set("post_logout_redirect_uri", postLogoutRedirect)
		q.Set("client_id", p.config.ClientID)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (p *Provider) clientContext(ctx context.Context) context.Context {
	return gooidc.ClientContext(ctx, p.httpClient)
}

// hasOpenIDScope reports whether the configured scopes include "openid".
func (p *Provider) hasOpenIDScope() bool {
	return slices.Contains(p.config.Scopes, gooidc.ScopeOpenID)
}

// accessTokenClaims decodes a JWT access token without verifying it. The signature was
// already checked through the ID token issued in the same response.
func accessTokenClaims(raw string) (map[string]any, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, false
	}
	return claims, true
}

func tokenSetFrom(tok *oauth2.Token) domainauth.TokenSet {
	if tok == nil {
		return domainauth.TokenSet{}
	}
	ts := domainauth.TokenSet{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}
	if raw, ok := tok.Extra("id_token").(string); ok {
		ts.IDToken = raw
	}
	return ts
}

// generateRandomString generates a cryptographically secure URL-safe random string of exact length.
func generateRandomString(length int) (string, error) {
	if length <= 0 {
		return "", nil
	}
	b := make([]byte, (length*3+3)/4+1)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b)[:length], nil
}
