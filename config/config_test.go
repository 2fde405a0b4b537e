package config

import (
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppConfig_Defaults(t *testing.T) {
	t.Setenv("NODE_ENV", "")

	var cfg AppConfig
	require.NoError(t, env.Parse(&cfg))
	cfg.Sanitize()

	assert.False(t, cfg.IsDev)
	assert.Equal(t, AuthModeOAuth, cfg.Auth.Mode)
	assert.Equal(t, 10*time.Second, cfg.Auth.InitTimeout)
	assert.Equal(t, 2*time.Second, cfg.Auth.InitWait)
	assert.Equal(t, 30*time.Minute, cfg.Auth.ClientIdleTTL)
	assert.Equal(t, "realm_access.roles", cfg.Auth.RolesClaim)
	assert.Equal(t, "openid profile email", cfg.Auth.OAuth.Scope)
	assert.Equal(t, []string{"CLIENT", "ADMIN"}, cfg.Auth.DevAuth.Roles)
	assert.Equal(t, "http://localhost:9090/api", cfg.Gateway.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Gateway.CatalogCacheTTL)
	assert.Equal(t, "microshop", cfg.Postgres.Name)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, MetricsBackendNone, cfg.Observability.Metrics.Backend)
}

func TestAppConfig_EnvOverrides(t *testing.T) {
	t.Setenv("DEV", "true")
	t.Setenv("AUTH_MODE", "MOCK")
	t.Setenv("AUTH_INIT_TIMEOUT", "3s")
	t.Setenv("DEV_AUTH_ROLES", "CLIENT")
	t.Setenv("GATEWAY_BASE_URL", "https://gw.internal/api/")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("REDIS_USE_CLUSTER", "true")
	t.Setenv("REDIS_CLUSTER_NODES", "a:1,b:2")
	t.Setenv("AUDIT_ENABLED", "true")
	t.Setenv("OBSERVABILITY_METRICS_BACKEND", "prometheus")

	var cfg AppConfig
	require.NoError(t, env.Parse(&cfg))
	cfg.Sanitize()

	assert.True(t, cfg.IsDev)
	assert.Equal(t, AuthModeMock, cfg.Auth.Mode)
	assert.Equal(t, 3*time.Second, cfg.Auth.InitTimeout)
	assert.Equal(t, 2*time.Second, cfg.Auth.InitWait)
	assert.Equal(t, []string{"CLIENT"}, cfg.Auth.DevAuth.Roles)
	assert.Equal(t, "https://gw.internal/api", cfg.Gateway.BaseURL)
	assert.Equal(t, "db.internal", cfg.Postgres.Host)
	assert.True(t, cfg.Redis.UseCluster)
	assert.Equal(t, []string{"a:1", "b:2"}, cfg.Redis.ClusterNodes)
	assert.True(t, cfg.Audit.Enabled)
	assert.Equal(t, MetricsBackendPrometheus, cfg.Observability.Metrics.Backend)
	assert.NoError(t, cfg.Validate())
}

func TestAppConfig_InvalidAuthMode(t *testing.T) {
	t.Setenv("AUTH_MODE", "saml")

	var cfg AppConfig
	assert.Error(t, env.Parse(&cfg))
}

func TestDetectDevMode(t *testing.T) {
	tests := []struct {
		name    string
		nodeEnv string
		want    bool
	}{
		{name: "development", nodeEnv: "development", want: true},
		{name: "short form", nodeEnv: "DEV", want: true},
		{name: "production", nodeEnv: "production", want: false},
		{name: "unset", nodeEnv: "", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("NODE_ENV", tt.nodeEnv)
			cfg := AppConfig{}
			cfg.detectDevMode()
			assert.Equal(t, tt.want, cfg.IsDev)
		})
	}
}

func TestAuthConfig_Sanitize(t *testing.T) {
	a := AuthConfig{
		InitTimeout:   -1,
		InitWait:      time.Minute,
		ClientIdleTTL: time.Second,
		RolesClaim:    "  groups ",
	}
	a.Sanitize()

	assert.Equal(t, 10*time.Second, a.InitTimeout)
	assert.Equal(t, 10*time.Second, a.InitWait, "wait never exceeds the init timeout")
	assert.Equal(t, time.Minute, a.ClientIdleTTL)
	assert.Equal(t, 12*time.Hour, a.TokenTTL)
	assert.Equal(t, "groups", a.RolesClaim)
}

func TestAuthConfig_Validate(t *testing.T) {
	t.Run("mock outside dev", func(t *testing.T) {
		a := AuthConfig{Mode: AuthModeMock}
		assert.Error(t, a.Validate(false))
		assert.NoError(t, a.Validate(true))
	})

	t.Run("oauth missing secret", func(t *testing.T) {
		a := AuthConfig{Mode: AuthModeOAuth, OAuth: OAuthConfig{ClientID: "ui", DiscoveryURL: "http://idp"}}
		err := a.Validate(false)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "OAUTH_CLIENT_SECRET")
	})

	t.Run("oauth complete", func(t *testing.T) {
		a := AuthConfig{Mode: AuthModeOAuth, OAuth: OAuthConfig{ClientID: "ui", ClientSecret: "s", DiscoveryURL: "http://idp"}}
		assert.NoError(t, a.Validate(false))
	})
}

func TestHTTPConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     HTTPConfig
		wantErr bool
	}{
		{name: "no cookie domain", cfg: HTTPConfig{BaseURL: "http://localhost:8080"}},
		{name: "registrable domain", cfg: HTTPConfig{BaseURL: "https://shop.example.com", CookieDomain: ".Example.com"}},
		{name: "public suffix", cfg: HTTPConfig{BaseURL: "https://shop.example.co.uk", CookieDomain: "co.uk"}, wantErr: true},
		{name: "relative base url", cfg: HTTPConfig{BaseURL: "/shop"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.Sanitize()
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestHTTPConfig_SanitizeCompression(t *testing.T) {
	h := HTTPConfig{CompressionLevel: 12}
	h.Sanitize()
	assert.Equal(t, 9, h.CompressionLevel)

	h.CompressionLevel = 0
	h.Sanitize()
	assert.Equal(t, 1, h.CompressionLevel)
}

func TestHTTPConfig_SecureCookies(t *testing.T) {
	assert.True(t, (&HTTPConfig{BaseURL: "HTTPS://shop.example.com"}).SecureCookies())
	assert.False(t, (&HTTPConfig{BaseURL: "http://localhost:8080"}).SecureCookies())
}

func TestGatewayConfig_Validate(t *testing.T) {
	g := GatewayConfig{BaseURL: "ftp://files", Timeout: 0, CatalogCacheTTL: -time.Second}
	g.Sanitize()
	assert.Equal(t, 10*time.Second, g.Timeout)
	assert.Equal(t, time.Duration(0), g.CatalogCacheTTL)
	assert.Error(t, g.Validate())

	g.BaseURL = "http://localhost:9090/api"
	assert.NoError(t, g.Validate())
}

func TestDBConfig_DSN(t *testing.T) {
	c := DBConfig{Host: "db", Port: 5432, User: "u", Password: "p@ss", Name: "shop", SSLMode: "require"}
	assert.Equal(t, "postgres://u:p%40ss@db:5432/shop?sslmode=require", c.DSN())
}

func TestObservabilityMetricsConfig_Sanitize(t *testing.T) {
	c := ObservabilityMetricsConfig{Backend: MetricsBackendStatsd, StatsdAddress: "  ", Prefix: ".micro-shop."}
	c.Sanitize()
	assert.Equal(t, MetricsBackendNone, c.Backend)
	assert.Equal(t, "micro-shop", c.Prefix)
	assert.Equal(t, "micro_shop", c.PrometheusNamespace())
}

func TestMetricsBackend_UnmarshalText(t *testing.T) {
	var m MetricsBackend
	require.NoError(t, m.UnmarshalText([]byte(" StatsD ")))
	assert.Equal(t, MetricsBackendStatsd, m)
	assert.Error(t, m.UnmarshalText([]byte("datadog")))
}
