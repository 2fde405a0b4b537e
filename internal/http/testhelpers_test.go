package httpx

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	domainauth "github.com/target/microshop-ui/internal/domain/auth"
	"github.com/target/microshop-ui/internal/mocks"
	mockauth "github.com/target/microshop-ui/internal/mocks/auth"
	"github.com/target/microshop-ui/internal/observability/metrics"
	"github.com/target/microshop-ui/internal/service"
)

var testTime = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

const (
	testCSRFToken      = "csrf-test-token"
	staticPathFromTest = "../../frontend/static"
)

var errUnknownToken = errors.New("unknown access token")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// RequireTemplateRenderer creates a TemplateRenderer for tests, skipping the test if templates are not available.
func RequireTemplateRenderer(t *testing.T) *TemplateRenderer {
	t.Helper()
	tr, err := NewTemplateRenderer(TemplateRendererConfig{
		TemplateFS: os.DirFS(TemplatePathFromTest),
	})
	if err != nil {
		t.Skipf("Templates not available, skipping: %v", err)
		return nil
	}
	return tr
}

// ContainsAll checks if a string contains all the given substrings.
func ContainsAll(s string, subs []string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}

// guardRecorder captures guard decisions; everything else is discarded.
type guardRecorder struct {
	metrics.Nop
	mu        sync.Mutex
	decisions []string
}

func (g *guardRecorder) GuardDecision(section, decision string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.decisions = append(g.decisions, section+":"+decision)
}

func (g *guardRecorder) Decisions() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.decisions...)
}

// testEnv is a full router over real services with a mocked gateway and a fake identity provider.
type testEnv struct {
	handler  http.Handler
	gateway  *mocks.MockGatewayClient
	provider *mockauth.FakeProvider
	tokens   *mockauth.MemoryTokenStore
	registry *service.SessionRegistry
	metrics  *guardRecorder

	mu     sync.Mutex
	claims map[string]map[string]any
}

type testEnvOption func(*RouterServices)

func withInitWait(d time.Duration) testEnvOption {
	return func(s *RouterServices) { s.InitWait = d }
}

func withLoginRequired() testEnvOption {
	return func(s *RouterServices) { s.LoginRequired = true }
}

func newTestEnv(t *testing.T, opts ...testEnvOption) *testEnv {
	t.Helper()
	ctrl := gomock.NewController(t)

	env := &testEnv{
		gateway:  mocks.NewMockGatewayClient(ctrl),
		provider: mockauth.NewFakeProvider("unused"),
		tokens:   mockauth.NewMemoryTokenStore(),
		metrics:  &guardRecorder{},
		claims:   make(map[string]map[string]any),
	}
	env.provider.VerifyFunc = env.verify

	env.registry = service.NewSessionRegistry(service.SessionRegistryOptions{
		Identity: service.IdentityDeps{
			Provider: env.provider,
			Tokens:   env.tokens,
			Claims:   mockauth.StaticClaimsMapper{},
		},
		Config: service.SessionRegistryConfig{InitTimeout: 5 * time.Second, IdleTTL: time.Minute},
	})
	catalog := service.NewCatalogService(service.CatalogServiceOptions{Gateway: env.gateway})
	orders := service.NewOrderService(service.OrderServiceOptions{Gateway: env.gateway, Catalog: catalog})
	auth := service.NewAuthService(service.AuthServiceOptions{
		Provider: env.provider,
		Tokens:   env.tokens,
		Sessions: env.registry,
	})

	services := RouterServices{
		Auth:       auth,
		Sessions:   env.registry,
		Catalog:    catalog,
		Orders:     orders,
		Metrics:    env.metrics,
		BaseURL:    "http://shop.test",
		InitWait:   2 * time.Second,
		TemplateFS: os.DirFS(TemplatePathFromTest),
		StaticFS:   os.DirFS(staticPathFromTest),
	}
	for _, opt := range opts {
		opt(&services)
	}

	h, err := NewRouter(services)
	if err != nil {
		t.Skipf("router unavailable, skipping: %v", err)
	}
	env.handler = h
	return env
}

func (e *testEnv) verify(_ context.Context, tokens domainauth.TokenSet) (map[string]any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	claims, ok := e.claims[tokens.AccessToken]
	if !ok {
		return nil, errUnknownToken
	}
	return claims, nil
}

// signIn stores tokens for clientID whose claims carry username and roles.
func (e *testEnv) signIn(t *testing.T, clientID, username string, roles ...string) string {
	t.Helper()
	access := "tok-" + username
	rs := make([]any, 0, len(roles))
	for _, r := range roles {
		rs = append(rs, r)
	}
	e.mu.Lock()
	e.claims[access] = map[string]any{
		"sub":                "sub-" + username,
		"preferred_username": username,
		"roles":              rs,
	}
	e.mu.Unlock()
	if err := e.tokens.Save(context.Background(), clientID, mockauth.FreshTokens(access)); err != nil {
		t.Fatalf("save tokens: %v", err)
	}
	return access
}

// testRequest describes one request through the router.
type testRequest struct {
	Method   string
	Path     string
	ClientID string
	Form     url.Values
	Headers  map[string]string
	// JSON asks for application/json instead of text/html.
	JSON bool
}

func (e *testEnv) do(t *testing.T, req testRequest) *httptest.ResponseRecorder {
	t.Helper()
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var r *http.Request
	if req.Form != nil {
		r = httptest.NewRequest(method, req.Path, strings.NewReader(req.Form.Encode()))
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		r = httptest.NewRequest(method, req.Path, nil)
	}
	if req.JSON {
		r.Header.Set("Accept", "application/json")
	} else {
		r.Header.Set("Accept", "text/html,application/xhtml+xml")
	}
	if req.ClientID != "" {
		r.AddCookie(&http.Cookie{Name: ClientCookieName, Value: req.ClientID})
	}
	r.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: testCSRFToken})
	if method != http.MethodGet && method != http.MethodHead {
		r.Header.Set(CSRFHeaderName, testCSRFToken)
	}
	for k, v := range req.Headers {
		r.Header.Set(k, v)
	}

	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, r)
	return rr
}

// Stable client ids; the client cookie must parse as a UUID.
const (
	clientAnon  = "00000000-0000-4000-8000-000000000001"
	clientBuyer = "00000000-0000-4000-8000-000000000002"
	clientAdmin = "00000000-0000-4000-8000-000000000003"
	clientOther = "00000000-0000-4000-8000-000000000004"
)
