package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainauth "github.com/target/microshop-ui/internal/domain/auth"
	"github.com/target/microshop-ui/internal/ports"
)

func TestFakeProvider_BeginIsDeterministic(t *testing.T) {
	p := NewFakeProvider("alice", "CLIENT")
	ctx := context.Background()

	out, err := p.Begin(ctx, ports.BeginInput{RedirectURL: "http://localhost/auth/callback"})
	require.NoError(t, err)
	assert.Equal(t, "https://mock-idp/auth", out.AuthURL)
	assert.Equal(t, "state-1", out.State)
	assert.Equal(t, "nonce-1", out.Nonce)

	out, err = p.Begin(ctx, ports.BeginInput{})
	require.NoError(t, err)
	assert.Equal(t, "state-2", out.State)
	assert.Equal(t, 2, p.BeginCalls())
}

func TestFakeProvider_ExchangeVerifyRefresh(t *testing.T) {
	p := NewFakeProvider("alice", "CLIENT")
	ctx := context.Background()

	tokens, err := p.Exchange(ctx, ports.ExchangeInput{Code: "abc"})
	require.NoError(t, err)
	assert.Equal(t, "access-abc", tokens.AccessToken)

	claims, err := p.Verify(ctx, tokens)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims["preferred_username"])
	assert.Equal(t, 1, p.VerifyCalls())

	refreshed, err := p.Refresh(ctx, tokens)
	require.NoError(t, err)
	assert.Equal(t, "access-abc-refreshed", refreshed.AccessToken)

	_, err = p.Refresh(ctx, domainauth.TokenSet{AccessToken: "x"})
	require.Error(t, err)
}

func TestFakeProvider_GateHonorsContext(t *testing.T) {
	p := NewFakeProvider("alice")
	p.Gate = make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Verify(ctx, FreshTokens("t"))
	require.ErrorIs(t, err, context.Canceled)
}

func TestFakeProvider_EndSessionURL(t *testing.T) {
	p := NewFakeProvider("alice")
	got := p.EndSessionURL("idt", "http://localhost/auth/signed-out")
	assert.Contains(t, got, "id_token_hint=idt")
	assert.Contains(t, got, "post_logout_redirect_uri=")

	p.LogoutURL = ""
	assert.Empty(t, p.EndSessionURL("idt", ""))
}

func TestMemoryTokenStore(t *testing.T) {
	s := NewMemoryTokenStore()
	ctx := context.Background()

	_, err := s.Get(ctx, "c1")
	require.ErrorIs(t, err, ports.ErrNoTokens)

	require.NoError(t, s.Save(ctx, "c1", FreshTokens("t")))
	got, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "t", got.AccessToken)
	assert.Equal(t, 1, s.Len())

	require.NoError(t, s.Delete(ctx, "c1"))
	assert.Equal(t, 0, s.Len())
	require.Error(t, s.Save(ctx, "", FreshTokens("t")))
}

func TestStaticClaimsMapper(t *testing.T) {
	id, err := StaticClaimsMapper{}.Map(map[string]any{
		"sub":          "s-1",
		"realm_access": map[string]any{"roles": []any{"ADMIN", 3}},
	})
	require.NoError(t, err)
	assert.Equal(t, "s-1", id.Username)
	assert.True(t, id.Roles.Has(domainauth.RoleAdmin))
	assert.Len(t, id.Roles, 1)
}
