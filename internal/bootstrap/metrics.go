package bootstrap

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/target/microshop-ui/config"
	"github.com/target/microshop-ui/internal/observability/metrics"
	"github.com/target/microshop-ui/internal/observability/prom"
	"github.com/target/microshop-ui/internal/observability/statsd"
)

// MetricsBundle is the recorder handed to services plus whatever the backend needs at runtime.
type MetricsBundle struct {
	Recorder metrics.Recorder
	// Handler serves /metrics; nil unless the backend is Prometheus.
	Handler http.Handler
	close   func() error
}

// Close releases the backend's resources.
func (m MetricsBundle) Close() error {
	if m.close == nil {
		return nil
	}
	return m.close()
}

// BuildMetrics selects the metrics backend. A StatsD client that cannot be created
// degrades to no metrics rather than failing startup.
func BuildMetrics(ctx context.Context, cfg config.ObservabilityMetricsConfig, logger *slog.Logger) MetricsBundle {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Backend {
	case config.MetricsBackendStatsd:
		client, err := statsd.NewClient(ctx, statsd.Config{
			Address: cfg.StatsdAddress,
			Prefix:  cfg.Prefix,
		}, logger)
		if err != nil {
			logger.Error("failed to initialise statsd client", "error", err)
			return MetricsBundle{Recorder: metrics.Nop{}}
		}
		logger.Info("metrics enabled", "backend", cfg.Backend, "address", cfg.StatsdAddress)
		return MetricsBundle{Recorder: metrics.StatsD{Sink: client}, close: client.Close}

	case config.MetricsBackendPrometheus:
		_, rec := prom.NewRegistry(cfg.PrometheusNamespace())
		logger.Info("metrics enabled", "backend", cfg.Backend, "namespace", cfg.PrometheusNamespace())
		return MetricsBundle{Recorder: rec, Handler: rec.Handler()}

	default:
		return MetricsBundle{Recorder: metrics.Nop{}}
	}
}
