package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/microshop-ui/config"
	"github.com/target/microshop-ui/internal/observability/metrics"
)

func testAppConfig() *config.AppConfig {
	// IsDev stays false so the router serves the embedded templates.
	return &config.AppConfig{
		Auth: devAuthConfig(),
		Gateway: config.GatewayConfig{
			BaseURL:         "http://gateway.test/api",
			Timeout:         time.Second,
			CatalogCacheTTL: 30 * time.Second,
		},
		Audit: config.AuditConfig{Enabled: true, Retention: time.Hour},
		HTTP:  config.HTTPConfig{Addr: "127.0.0.1:0", BaseURL: "http://shop.test"},
	}
}

func TestNewServicesRequiresConfig(t *testing.T) {
	_, err := NewServices(context.Background(), nil)
	require.Error(t, err)
	_, err = NewServices(context.Background(), &ServiceDeps{})
	require.Error(t, err)
}

func TestNewServicesWiresStorefront(t *testing.T) {
	services, err := NewServices(context.Background(), &ServiceDeps{
		Config:      testAppConfig(),
		RedisClient: unconnectedRedis(t),
		Metrics:     MetricsBundle{Recorder: metrics.Nop{}},
		Logger:      discardLogger(),
	})
	require.NoError(t, err)

	assert.NotNil(t, services.Auth)
	assert.NotNil(t, services.Sessions)
	assert.NotNil(t, services.Catalog)
	assert.NotNil(t, services.Orders)
	assert.NotNil(t, services.Cache)
	assert.Nil(t, services.Audit, "audit needs a database")
}

func TestNewServicesWithoutCacheTTL(t *testing.T) {
	cfg := testAppConfig()
	cfg.Gateway.CatalogCacheTTL = 0

	services, err := NewServices(context.Background(), &ServiceDeps{
		Config:      cfg,
		RedisClient: unconnectedRedis(t),
		Logger:      discardLogger(),
	})
	require.NoError(t, err)
	assert.Nil(t, services.Cache)
}

func TestBuildHTTPHandlerServesProbes(t *testing.T) {
	cfg := testAppConfig()
	cfg.HTTP.CompressionEnabled = true
	cfg.HTTP.CompressionLevel = 5

	services, err := NewServices(context.Background(), &ServiceDeps{
		Config:      cfg,
		RedisClient: unconnectedRedis(t),
		Logger:      discardLogger(),
	})
	require.NoError(t, err)

	hsc := &HTTPServerConfig{Config: cfg, Services: services}
	h, err := buildHTTPHandler(httpHandlerConfig{
		Logger:   discardLogger(),
		Services: routerServices(cfg, hsc, discardLogger()),
		HTTP:     cfg.HTTP,
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "no dependencies to probe")
}

func TestBuildHTTPHandlerRequiresServices(t *testing.T) {
	_, err := buildHTTPHandler(httpHandlerConfig{Logger: discardLogger()})
	require.ErrorContains(t, err, "build router")
}

func TestStartAndShutdownHTTPServer(t *testing.T) {
	cfg := testAppConfig()
	services, err := NewServices(context.Background(), &ServiceDeps{
		Config:      cfg,
		RedisClient: unconnectedRedis(t),
		Logger:      discardLogger(),
	})
	require.NoError(t, err)

	server, err := StartHTTPServer(&HTTPServerConfig{Config: cfg, Services: services, Logger: discardLogger()})
	require.NoError(t, err)
	require.NotNil(t, server)

	require.NoError(t, ShutdownHTTPServer(ShutdownConfig{Context: context.Background(), Server: server, Logger: discardLogger()}))
	assert.NoError(t, ShutdownHTTPServer(ShutdownConfig{}))
}

func TestStartHTTPServerRequiresConfig(t *testing.T) {
	_, err := StartHTTPServer(nil)
	require.Error(t, err)
}

func TestReadinessChecks(t *testing.T) {
	assert.Empty(t, readinessChecks(nil, nil))

	checks := readinessChecks(unconnectedRedis(t), nil)
	require.Len(t, checks, 1)
	assert.Equal(t, "redis", checks[0].Name)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.Error(t, checks[0].Check(ctx), "nothing listens on the test address")
}

type fakePruner struct {
	mu      sync.Mutex
	cutoffs []time.Time
	err     error
	removed int64
}

func (f *fakePruner) Prune(_ context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, before)
	return f.removed, f.err
}

func (f *fakePruner) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cutoffs)
}

func TestRunAuditPrunerPrunesUntilCanceled(t *testing.T) {
	pruner := &fakePruner{removed: 3}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	start := time.Now()
	go func() { done <- runAuditPruner(ctx, pruner, time.Hour, 10*time.Millisecond, discardLogger()) }()

	require.Eventually(t, func() bool { return pruner.calls() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	pruner.mu.Lock()
	defer pruner.mu.Unlock()
	assert.WithinDuration(t, start.Add(-time.Hour), pruner.cutoffs[0], time.Second)
}

func TestRunAuditPrunerSurvivesErrors(t *testing.T) {
	pruner := &fakePruner{err: errors.New("db down")}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- runAuditPruner(ctx, pruner, time.Hour, 5*time.Millisecond, discardLogger()) }()

	require.Eventually(t, func() bool { return pruner.calls() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}

func TestBuildBackgroundServices(t *testing.T) {
	cfg := &ServiceOrchestrationConfig{Config: testAppConfig()}
	services := buildBackgroundServices(cfg, discardLogger())

	require.Len(t, services, 2)
	for _, svc := range services {
		assert.False(t, svc.enabled, "%s has nothing to run", svc.name)
	}

	assert.True(t, newAuditPrunerBackgroundService(&fakePruner{}, time.Hour, discardLogger()).enabled)
	assert.False(t, newAuditPrunerBackgroundService(&fakePruner{}, 0, discardLogger()).enabled, "zero retention keeps everything")
}

func TestLaunchBackgroundReportsFailures(t *testing.T) {
	errCh := make(chan error, 1)
	handles := startBackgroundServices(context.Background(), discardLogger(), errCh, []backgroundService{
		{name: "disabled", start: func(context.Context) error { return errors.New("never runs") }},
		{name: "broken", enabled: true, start: func(context.Context) error { return errors.New("boom") }},
		{name: "canceled", enabled: true, start: func(context.Context) error { return context.Canceled }},
	})

	require.Len(t, handles, 2)
	for _, h := range handles {
		assert.True(t, waitForService(h.done, h.name, discardLogger(), time.Second))
	}

	select {
	case err := <-errCh:
		assert.EqualError(t, err, "broken failed: boom")
	default:
		t.Fatal("expected the failure to be reported")
	}
	assert.Empty(t, errCh)
}

func TestWaitForServiceTimesOut(t *testing.T) {
	assert.True(t, waitForService(nil, "none", discardLogger(), time.Millisecond))
	assert.False(t, waitForService(make(chan struct{}), "stuck", discardLogger(), 10*time.Millisecond))
}

func TestRunServicesWithShutdownRequiresConfig(t *testing.T) {
	require.Error(t, RunServicesWithShutdown(nil))
	require.Error(t, RunServicesWithShutdown(&ServiceOrchestrationConfig{}))
}
