package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// GatewayConfig configures the REST gateway client.
type GatewayConfig struct {
	BaseURL string        `env:"BASE_URL" envDefault:"http://localhost:9090/api"`
	Timeout time.Duration `env:"TIMEOUT"  envDefault:"10s"`

	// CatalogCacheTTL caches product listings for authenticated users; 0 disables caching.
	CatalogCacheTTL time.Duration `env:"CATALOG_CACHE_TTL" envDefault:"30s"`
}

// Sanitize trims the base URL and clamps durations.
func (g *GatewayConfig) Sanitize() {
	g.BaseURL = strings.TrimRight(strings.TrimSpace(g.BaseURL), "/")
	if g.Timeout <= 0 {
		g.Timeout = 10 * time.Second
	}
	if g.CatalogCacheTTL < 0 {
		g.CatalogCacheTTL = 0
	}
}

// Validate requires an absolute http(s) base URL.
func (g *GatewayConfig) Validate() error {
	u, err := url.Parse(g.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("GATEWAY_BASE_URL must be an absolute http(s) URL: %q", g.BaseURL)
	}
	return nil
}
