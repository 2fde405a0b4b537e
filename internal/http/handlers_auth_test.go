package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	domainauth "github.com/target/microshop-ui/internal/domain/auth"
	"github.com/target/microshop-ui/internal/service"
)

// mockAuthService is a test double for service.AuthService.
type mockAuthService struct {
	beginLoginFunc    func(ctx context.Context, redirectURL string) (*service.BeginLoginResult, error)
	completeLoginFunc func(ctx context.Context, input service.CompleteLoginInput) (*service.CompleteLoginResult, error)
	logoutFunc        func(ctx context.Context, clientID, postLogoutRedirect string) string

	completed []service.CompleteLoginInput
}

func (m *mockAuthService) BeginLogin(ctx context.Context, redirectURL string) (*service.BeginLoginResult, error) {
	if m.beginLoginFunc != nil {
		return m.beginLoginFunc(ctx, redirectURL)
	}
	return &service.BeginLoginResult{
		AuthURL: "https://example.com/auth?state=test-state&nonce=test-nonce",
		State:   "test-state",
		Nonce:   "test-nonce",
	}, nil
}

func (m *mockAuthService) CompleteLogin(ctx context.Context, input service.CompleteLoginInput) (*service.CompleteLoginResult, error) {
	m.completed = append(m.completed, input)
	if m.completeLoginFunc != nil {
		return m.completeLoginFunc(ctx, input)
	}
	return &service.CompleteLoginResult{
		ClientID: clientRotated,
		Session:  domainauth.NewAuthenticated("tok", "alice", domainauth.NewRoleSet(string(domainauth.RoleClient)), time.Now().Add(time.Hour)),
	}, nil
}

func (m *mockAuthService) Logout(ctx context.Context, clientID, postLogoutRedirect string) string {
	if m.logoutFunc != nil {
		return m.logoutFunc(ctx, clientID, postLogoutRedirect)
	}
	return ""
}

// staticSessions resolves every client to the same snapshot.
type staticSessions struct {
	session domainauth.Session
	state   service.State
}

func (s staticSessions) Resolve(context.Context, string, time.Duration) domainauth.Session {
	return s.session
}

func (s staticSessions) StateOf(string) service.State { return s.state }

func withClient(r *http.Request, id string) *http.Request {
	return r.WithContext(SetClientIDInContext(r.Context(), id))
}

// clientRotated is the id the mock auth service binds at login.
const clientRotated = "00000000-0000-4000-8000-0000000000ff"

func callbackRequest(query string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/auth/callback?"+query, nil)
	req.AddCookie(&http.Cookie{Name: cookieOAuthState, Value: "test-state"})
	req.AddCookie(&http.Cookie{Name: cookieOAuthNonce, Value: "test-nonce"})
	req.AddCookie(&http.Cookie{Name: cookiePostLoginRedirect, Value: "/my-orders"})
	return withClient(req, clientBuyer)
}

func TestAuthHandlers_Login_Success(t *testing.T) {
	handlers := &AuthHandlers{Svc: &mockAuthService{}}

	req := httptest.NewRequest(http.MethodGet, "/auth/login", nil)
	w := httptest.NewRecorder()
	handlers.Login(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	resp := w.Result()
	defer resp.Body.Close()
	assert.Len(t, resp.Cookies(), 3) // oauth_state, oauth_nonce, post_login_redirect
	assert.Contains(t, w.Header().Get("Location"), "https://example.com/auth")
}

func TestAuthHandlers_Login_StoresCodeVerifier(t *testing.T) {
	handlers := &AuthHandlers{Svc: &mockAuthService{
		beginLoginFunc: func(context.Context, string) (*service.BeginLoginResult, error) {
			return &service.BeginLoginResult{AuthURL: "https://example.com/auth", State: "s", Nonce: "n", Verifier: "pkce-v"}, nil
		},
	}}

	w := httptest.NewRecorder()
	handlers.Login(w, httptest.NewRequest(http.MethodGet, "/auth/login", nil))

	resp := w.Result()
	defer resp.Body.Close()
	verifier := findCookie(resp.Cookies(), cookieOAuthVerifier)
	require.NotNil(t, verifier)
	assert.Equal(t, "pkce-v", verifier.Value)
	assert.True(t, verifier.HttpOnly)
	assert.Equal(t, oauthCookieMaxAge, verifier.MaxAge)
}

func TestAuthHandlers_Login_WithRedirectURI(t *testing.T) {
	handlers := &AuthHandlers{Svc: &mockAuthService{}}

	req := httptest.NewRequest(http.MethodGet, "/auth/login?redirect_uri=/admin/orders", nil)
	w := httptest.NewRecorder()
	handlers.Login(w, req)

	resp := w.Result()
	defer resp.Body.Close()
	redirectCookie := findCookie(resp.Cookies(), cookiePostLoginRedirect)
	require.NotNil(t, redirectCookie)
	assert.Equal(t, "/admin/orders", redirectCookie.Value)
	assert.True(t, redirectCookie.HttpOnly)
}

func TestAuthHandlers_Login_OffsiteRedirectFallsBackToRoot(t *testing.T) {
	var got string
	handlers := &AuthHandlers{Svc: &mockAuthService{
		beginLoginFunc: func(_ context.Context, redirectURL string) (*service.BeginLoginResult, error) {
			got = redirectURL
			return &service.BeginLoginResult{AuthURL: "https://example.com/auth", State: "s", Nonce: "n"}, nil
		},
	}}

	for _, target := range []string{"https://evil.example/", "//evil.example/x", "://invalid", "relative"} {
		req := httptest.NewRequest(http.MethodGet, "/auth/login?redirect_uri="+url.QueryEscape(target), nil)
		w := httptest.NewRecorder()
		handlers.Login(w, req)

		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/", got, "target %q", target)
	}
}

func TestAuthHandlers_Login_ProviderFailure(t *testing.T) {
	handlers := &AuthHandlers{Svc: &mockAuthService{
		beginLoginFunc: func(context.Context, string) (*service.BeginLoginResult, error) {
			return nil, errors.New("discovery failed")
		},
	}}

	w := httptest.NewRecorder()
	handlers.Login(w, httptest.NewRequest(http.MethodGet, "/auth/login", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "login_failed")
}

func TestAuthHandlers_Callback_Success(t *testing.T) {
	svc := &mockAuthService{}
	handlers := &AuthHandlers{Svc: svc}

	w := httptest.NewRecorder()
	handlers.Callback(w, callbackRequest("code=abc&state=test-state"))

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/my-orders", w.Header().Get("Location"))
	require.Len(t, svc.completed, 1)
	assert.Equal(t, service.CompleteLoginInput{
		ClientID: clientBuyer,
		Code:     "abc",
		State:    "test-state",
		Nonce:    "test-nonce",
	}, svc.completed[0])

	resp := w.Result()
	defer resp.Body.Close()
	state := findCookie(resp.Cookies(), cookieOAuthState)
	require.NotNil(t, state)
	assert.Equal(t, -1, state.MaxAge)

	client := findCookie(resp.Cookies(), ClientCookieName)
	require.NotNil(t, client, "login must issue a new client cookie")
	assert.Equal(t, clientRotated, client.Value)
	assert.True(t, client.HttpOnly)
	assert.Equal(t, clientCookieMaxAge, client.MaxAge)
}

func TestAuthHandlers_Callback_ForwardsCodeVerifier(t *testing.T) {
	svc := &mockAuthService{}
	handlers := &AuthHandlers{Svc: svc}

	req := callbackRequest("code=abc&state=test-state")
	req.AddCookie(&http.Cookie{Name: cookieOAuthVerifier, Value: "pkce-v"})
	w := httptest.NewRecorder()
	handlers.Callback(w, req)

	require.Equal(t, http.StatusFound, w.Code)
	require.Len(t, svc.completed, 1)
	assert.Equal(t, "pkce-v", svc.completed[0].Verifier)

	resp := w.Result()
	defer resp.Body.Close()
	cleared := findCookie(resp.Cookies(), cookieOAuthVerifier)
	require.NotNil(t, cleared)
	assert.Equal(t, -1, cleared.MaxAge)
}

func TestAuthHandlers_Callback_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		errCode string
	}{
		{name: "provider error", query: "error=access_denied&error_description=user+cancelled", errCode: "provider_error"},
		{name: "missing code", query: "state=test-state", errCode: "missing_code"},
		{name: "missing state", query: "code=abc", errCode: "missing_state"},
		{name: "state mismatch", query: "code=abc&state=forged", errCode: "invalid_state"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAuthService{}
			handlers := &AuthHandlers{Svc: svc}

			w := httptest.NewRecorder()
			handlers.Callback(w, callbackRequest(tt.query))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tt.errCode)
			assert.Empty(t, svc.completed)
		})
	}
}

func TestAuthHandlers_Callback_NotAuthenticated(t *testing.T) {
	handlers := &AuthHandlers{Svc: &mockAuthService{
		completeLoginFunc: func(context.Context, service.CompleteLoginInput) (*service.CompleteLoginResult, error) {
			return nil, service.ErrLoginNotAuthenticated
		},
	}}

	w := httptest.NewRecorder()
	handlers.Callback(w, callbackRequest("code=abc&state=test-state"))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	resp := w.Result()
	defer resp.Body.Close()
	assert.Nil(t, findCookie(resp.Cookies(), ClientCookieName))
}

func TestAuthHandlers_Logout_Redirect(t *testing.T) {
	var gotClient, gotRedirect string
	handlers := &AuthHandlers{
		BaseURL: "https://shop.example/",
		Svc: &mockAuthService{
			logoutFunc: func(_ context.Context, clientID, postLogoutRedirect string) string {
				gotClient, gotRedirect = clientID, postLogoutRedirect
				return "https://idp.example/logout"
			},
		},
	}

	req := withClient(httptest.NewRequest(http.MethodPost, "/auth/logout", nil), clientBuyer)
	w := httptest.NewRecorder()
	handlers.Logout(w, req)

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "https://idp.example/logout", w.Header().Get("Location"))
	assert.Equal(t, clientBuyer, gotClient)
	assert.Equal(t, "https://shop.example/auth/signed-out?redirect_uri=%2F", gotRedirect)
}

func TestAuthHandlers_Logout_WithoutProviderEndpoint(t *testing.T) {
	handlers := &AuthHandlers{Svc: &mockAuthService{}}

	req := withClient(httptest.NewRequest(http.MethodPost, "/auth/logout?redirect_uri=/my-orders", nil), clientBuyer)
	w := httptest.NewRecorder()
	handlers.Logout(w, req)

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/auth/signed-out?redirect_uri=%2Fmy-orders", w.Header().Get("Location"))
}

func TestAuthHandlers_Logout_AJAX(t *testing.T) {
	handlers := &AuthHandlers{Svc: &mockAuthService{}}

	req := withClient(httptest.NewRequest(http.MethodPost, "/auth/logout", nil), clientBuyer)
	req.Header.Set("HX-Request", "true")
	w := httptest.NewRecorder()
	handlers.Logout(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "/auth/signed-out?redirect_uri=%2F", body["redirect_to"])
}

func TestAuthHandlers_Status(t *testing.T) {
	tests := []struct {
		name     string
		sessions SessionResolver
		clientID string
		want     map[string]any
	}{
		{
			name:     "no client",
			sessions: staticSessions{},
			want:     map[string]any{"state": "uninitialized", "initialized": false, "authenticated": false},
		},
		{
			name:     "initializing",
			sessions: staticSessions{state: service.StateInitializing},
			clientID: clientAnon,
			want:     map[string]any{"state": "initializing", "initialized": false, "authenticated": false},
		},
		{
			name:     "anonymous",
			sessions: staticSessions{session: domainauth.Anonymous(true), state: service.StateReady},
			clientID: clientAnon,
			want:     map[string]any{"state": "ready", "initialized": true, "authenticated": false},
		},
		{
			name: "authenticated",
			sessions: staticSessions{
				session: domainauth.NewAuthenticated("tok", "alice", domainauth.NewRoleSet(string(domainauth.RoleClient)), time.Time{}),
				state:   service.StateReady,
			},
			clientID: clientBuyer,
			want: map[string]any{
				"state": "ready", "initialized": true, "authenticated": true,
				"username": "alice", "roles": []any{"CLIENT"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handlers := &AuthHandlers{Svc: &mockAuthService{}, Sessions: tt.sessions}
			req := httptest.NewRequest(http.MethodGet, "/auth/status", nil)
			if tt.clientID != "" {
				req = withClient(req, tt.clientID)
			}
			w := httptest.NewRecorder()
			handlers.Status(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.want, body)
		})
	}
}

func TestSafeRedirectPath(t *testing.T) {
	cases := map[string]string{
		"":                      "/",
		"/":                     "/",
		"/admin/products?x=1":   "/admin/products?x=1",
		"https://evil.example/": "/",
		"//evil.example":        "/",
		"javascript:alert(1)":   "/",
		"my-orders":             "/",
	}
	for in, want := range cases {
		assert.Equal(t, want, safeRedirectPath(in), "input %q", in)
	}
}

// The full redirect round trip through the router: login, callback, then the
// guarded page renders for the client id issued at the callback while the
// pre-login id stays anonymous.
func TestAuthFlow_LoginCallbackThenGuardedPage(t *testing.T) {
	env := newTestEnv(t)
	env.mu.Lock()
	env.claims["access-good-code"] = map[string]any{
		"sub":                "sub-carol",
		"preferred_username": "carol",
		"roles":              []any{"CLIENT"},
	}
	env.mu.Unlock()

	// clientOther stands in for an id planted in the browser before sign-in.
	login := env.do(t, testRequest{Path: "/auth/login?redirect_uri=%2Fmy-orders", ClientID: clientOther})
	require.Equal(t, http.StatusFound, login.Code)
	assert.Contains(t, login.Header().Get("Location"), "https://mock-idp/auth")
	loginResp := login.Result()
	defer loginResp.Body.Close()
	state := findCookie(loginResp.Cookies(), cookieOAuthState)
	nonce := findCookie(loginResp.Cookies(), cookieOAuthNonce)
	verifier := findCookie(loginResp.Cookies(), cookieOAuthVerifier)
	redirect := findCookie(loginResp.Cookies(), cookiePostLoginRedirect)
	require.NotNil(t, state)
	require.NotNil(t, nonce)
	require.NotNil(t, verifier)
	require.NotNil(t, redirect)

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=good-code&state="+url.QueryEscape(state.Value), nil)
	req.Header.Set("Accept", "text/html")
	for _, c := range []*http.Cookie{
		{Name: ClientCookieName, Value: clientOther}, state, nonce, verifier, redirect,
	} {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	cb := httptest.NewRecorder()
	env.handler.ServeHTTP(cb, req)
	require.Equal(t, http.StatusFound, cb.Code, cb.Body.String())
	assert.Equal(t, "/my-orders", cb.Header().Get("Location"))

	cbResp := cb.Result()
	defer cbResp.Body.Close()
	issued := findCookie(cbResp.Cookies(), ClientCookieName)
	require.NotNil(t, issued, "callback must issue a new client cookie")
	require.NotEqual(t, clientOther, issued.Value)

	env.gateway.EXPECT().ListMyOrders(gomock.Any(), "access-good-code").Return(nil, nil)
	page := env.do(t, testRequest{Path: "/my-orders", ClientID: issued.Value})
	assert.Equal(t, http.StatusOK, page.Code)
	assert.Contains(t, page.Body.String(), "Welcome, carol")

	replay := env.do(t, testRequest{Path: "/my-orders", ClientID: clientOther})
	assert.Equal(t, http.StatusOK, replay.Code)
	assert.Contains(t, replay.Body.String(), "Please sign in to view My Orders.")
	assert.NotContains(t, replay.Body.String(), "carol")
}
