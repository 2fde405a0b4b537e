package config

import (
	"fmt"
	"strings"
)

// MetricsBackend selects where storefront metrics go.
type MetricsBackend string

const (
	MetricsBackendNone       MetricsBackend = "none"
	MetricsBackendStatsd     MetricsBackend = "statsd"
	MetricsBackendPrometheus MetricsBackend = "prometheus"
)

// UnmarshalText implements encoding.TextUnmarshaler for MetricsBackend.
func (m *MetricsBackend) UnmarshalText(text []byte) error {
	v := MetricsBackend(strings.ToLower(strings.TrimSpace(string(text))))
	switch v {
	case "":
		*m = MetricsBackendNone
		return nil
	case MetricsBackendNone, MetricsBackendStatsd, MetricsBackendPrometheus:
		*m = v
		return nil
	default:
		return fmt.Errorf("invalid MetricsBackend: %q (valid options: none, statsd, prometheus)", v)
	}
}

// ObservabilityConfig groups configuration that controls metrics emission.
type ObservabilityConfig struct {
	Metrics ObservabilityMetricsConfig
}

// Sanitize applies guardrails to observability sub-configs.
func (c *ObservabilityConfig) Sanitize() {
	c.Metrics.Sanitize()
}

// ObservabilityMetricsConfig controls the metrics backend.
type ObservabilityMetricsConfig struct {
	Backend       MetricsBackend `env:"OBSERVABILITY_METRICS_BACKEND"        envDefault:"none"`
	StatsdAddress string         `env:"OBSERVABILITY_METRICS_STATSD_ADDRESS" envDefault:"127.0.0.1:8125"`
	Prefix        string         `env:"OBSERVABILITY_METRICS_PREFIX"         envDefault:"microshop"`
}

// Sanitize normalises fields and falls back to no metrics when StatsD has no address.
func (c *ObservabilityMetricsConfig) Sanitize() {
	c.StatsdAddress = strings.TrimSpace(c.StatsdAddress)
	c.Prefix = strings.Trim(strings.TrimSpace(c.Prefix), "._")
	if c.Prefix == "" {
		c.Prefix = "microshop"
	}
	if c.Backend == "" {
		c.Backend = MetricsBackendNone
	}
	if c.Backend == MetricsBackendStatsd && c.StatsdAddress == "" {
		c.Backend = MetricsBackendNone
	}
}

// PrometheusNamespace converts the prefix to a valid metric namespace.
func (c *ObservabilityMetricsConfig) PrometheusNamespace() string {
	return strings.NewReplacer(".", "_", "-", "_").Replace(c.Prefix)
}
