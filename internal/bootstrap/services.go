package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/target/microshop-ui/config"
	"github.com/target/microshop-ui/internal/adapters/gateway"
	"github.com/target/microshop-ui/internal/data"
	"github.com/target/microshop-ui/internal/ports"
	"github.com/target/microshop-ui/internal/service"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Auth     *service.AuthService
	Sessions *service.SessionRegistry
	Catalog  *service.CatalogService
	Orders   *service.OrderService
	Audit    *data.AuthEventRepo // nil when the audit log is disabled
	Cache    *data.RedisCacheRepo
	Metrics  MetricsBundle
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB // Optional: only required for the audit log
	RedisClient redis.UniversalClient
	Metrics     MetricsBundle
	Logger      *slog.Logger
}

// NewServices builds the storefront's services from connected infrastructure.
func NewServices(ctx context.Context, deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service deps require config")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config
	recorder := deps.Metrics.Recorder

	var (
		auditRepo *data.AuthEventRepo
		audit     ports.AuthEventRepository
	)
	if cfg.Audit.Enabled && deps.DB != nil {
		auditRepo = data.NewAuthEventRepo(deps.DB)
		audit = auditRepo
	}

	authBundle, err := BuildAuth(ctx, AuthConfig{
		Auth:        cfg.Auth,
		RedisClient: deps.RedisClient,
		Metrics:     recorder,
		Audit:       audit,
		Logger:      logger,
	})
	if err != nil {
		return ServiceContainer{}, err
	}

	gw, err := gateway.NewClient(gateway.ClientOptions{
		BaseURL:    cfg.Gateway.BaseURL,
		HTTPClient: &http.Client{Timeout: cfg.Gateway.Timeout},
		Observers:  gateway.Observers{Logger: logger, Metrics: recorder},
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("gateway client: %w", err)
	}

	var cacheRepo *data.RedisCacheRepo
	cacheCfg := service.CatalogCacheConfig{}
	if deps.RedisClient != nil && cfg.Gateway.CatalogCacheTTL > 0 {
		cacheRepo = data.NewRedisCacheRepo(deps.RedisClient)
		cacheCfg = service.CatalogCacheConfig{Repo: cacheRepo, TTL: cfg.Gateway.CatalogCacheTTL}
	}

	catalog := service.NewCatalogService(service.CatalogServiceOptions{
		Gateway: gw,
		Cache:   cacheCfg,
		Logger:  logger,
	})
	orders := service.NewOrderService(service.OrderServiceOptions{
		Gateway: gw,
		Catalog: catalog,
		Logger:  logger,
	})

	return ServiceContainer{
		Auth:     authBundle.Auth,
		Sessions: authBundle.Sessions,
		Catalog:  catalog,
		Orders:   orders,
		Audit:    auditRepo,
		Cache:    cacheRepo,
		Metrics:  deps.Metrics,
	}, nil
}

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config      *config.AppConfig
	Services    ServiceContainer
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

const (
	// shutdownWaitTimeout is the maximum time to wait for services to stop gracefully.
	shutdownWaitTimeout = 15 * time.Second

	auditPruneInterval = time.Hour
)

// backgroundService describes a startable background component.
type backgroundService struct {
	name    string
	enabled bool
	start   func(context.Context) error
}

// backgroundServiceHandle tracks a running background service.
type backgroundServiceHandle struct {
	name string
	done <-chan struct{}
}

func launchBackground(ctx context.Context, logger *slog.Logger, errCh chan<- error, svc backgroundService) <-chan struct{} {
	if !svc.enabled {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := svc.start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errMsg := fmt.Errorf("%s failed: %w", svc.name, err)
			select {
			case errCh <- errMsg:
			case <-ctx.Done():
			default:
				logger.WarnContext(ctx, "dropping background service error", "service", svc.name, "error", errMsg)
			}
		}
	}()

	logger.InfoContext(ctx, "background service started", "service", svc.name)
	return done
}

func startBackgroundServices(
	ctx context.Context,
	logger *slog.Logger,
	errCh chan<- error,
	services []backgroundService,
) []backgroundServiceHandle {
	handles := make([]backgroundServiceHandle, 0, len(services))
	for _, svc := range services {
		done := launchBackground(ctx, logger, errCh, svc)
		if done == nil {
			continue
		}
		handles = append(handles, backgroundServiceHandle{name: svc.name, done: done})
	}
	return handles
}

func newSessionSweeperBackgroundService(sessions *service.SessionRegistry) backgroundService {
	return backgroundService{
		name:    "session sweeper",
		enabled: sessions != nil,
		start: func(ctx context.Context) error {
			sessions.Run(ctx)
			return nil
		},
	}
}

// auditPruner is the subset of the audit repository the prune loop needs.
type auditPruner interface {
	Prune(ctx context.Context, before time.Time) (int64, error)
}

func newAuditPrunerBackgroundService(repo auditPruner, retention time.Duration, logger *slog.Logger) backgroundService {
	return backgroundService{
		name:    "audit pruner",
		enabled: repo != nil && retention > 0,
		start: func(ctx context.Context) error {
			return runAuditPruner(ctx, repo, retention, auditPruneInterval, logger)
		},
	}
}

// runAuditPruner deletes audit events older than retention once per interval until ctx ends.
// Prune failures are logged and retried on the next tick.
func runAuditPruner(
	ctx context.Context,
	repo auditPruner,
	retention, interval time.Duration,
	logger *slog.Logger,
) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		removed, err := repo.Prune(ctx, time.Now().Add(-retention))
		switch {
		case err != nil && ctx.Err() == nil:
			logger.WarnContext(ctx, "audit prune failed", "error", err)
		case removed > 0:
			logger.InfoContext(ctx, "audit events pruned", "removed", removed)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func buildBackgroundServices(cfg *ServiceOrchestrationConfig, logger *slog.Logger) []backgroundService {
	var pruner auditPruner
	if cfg.Services.Audit != nil {
		pruner = cfg.Services.Audit
	}
	var retention time.Duration
	if cfg.Config != nil {
		retention = cfg.Config.Audit.Retention
	}
	return []backgroundService{
		newSessionSweeperBackgroundService(cfg.Services.Sessions),
		newAuditPrunerBackgroundService(pruner, retention, logger),
	}
}

// RunServicesWithShutdown starts the HTTP server and background services and manages their lifecycle.
// This function blocks until a shutdown signal is received or a service fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	serviceCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	background := buildBackgroundServices(cfg, logger)
	errCh := make(chan error, len(background)+2)

	server, err := StartHTTPServer(&HTTPServerConfig{
		Config:      cfg.Config,
		Services:    cfg.Services,
		DB:          cfg.DB,
		RedisClient: cfg.RedisClient,
		Logger:      logger,
		ErrCh:       errCh,
	})
	if err != nil {
		return err
	}

	handles := startBackgroundServices(serviceCtx, logger, errCh, background)

	return waitForShutdown(shutdownConfig{
		ctx:         serviceCtx,
		cancel:      cancel,
		errCh:       errCh,
		httpServer:  server,
		logger:      logger,
		backgrounds: handles,
	})
}

// shutdownConfig contains dependencies for graceful shutdown.
type shutdownConfig struct {
	ctx         context.Context
	cancel      context.CancelFunc
	errCh       <-chan error
	httpServer  *http.Server
	logger      *slog.Logger
	backgrounds []backgroundServiceHandle
}

// waitForShutdown waits for shutdown signal or service error.
func waitForShutdown(cfg shutdownConfig) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		cfg.logger.Info("shutting down services...")
		cfg.cancel()
		return gracefulStop(cfg)
	case err := <-cfg.errCh:
		cfg.logger.Error("service error", "error", err)
		cfg.cancel()
		if stopErr := gracefulStop(cfg); stopErr != nil {
			cfg.logger.Error("graceful stop failed", "error", stopErr)
		}
		return err
	}
}

// gracefulStop attempts to gracefully stop all services.
func gracefulStop(cfg shutdownConfig) error {
	if cfg.httpServer != nil {
		if err := ShutdownHTTPServer(ShutdownConfig{
			Context: context.Background(),
			Server:  cfg.httpServer,
			Logger:  cfg.logger,
		}); err != nil {
			return err
		}
	}

	for _, svc := range cfg.backgrounds {
		waitForService(svc.done, svc.name, cfg.logger, shutdownWaitTimeout)
	}

	return nil
}

// waitForService waits for a service to finish with timeout.
func waitForService(done <-chan struct{}, name string, logger *slog.Logger, timeout time.Duration) bool {
	if done == nil {
		return true
	}
	select {
	case <-done:
		logger.Info(name + " stopped")
		return true
	case <-time.After(timeout):
		logger.Warn("timeout waiting for " + name + " to stop")
		return false
	}
}
