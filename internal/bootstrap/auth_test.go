package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/microshop-ui/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// unconnectedRedis never dials until a command runs.
func unconnectedRedis(t *testing.T) redis.UniversalClient {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func devAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		Mode:          config.AuthModeMock,
		RolesClaim:    "realm_access.roles",
		UsernameClaim: "preferred_username",
		DevAuth: config.DevAuthConfig{
			Username: "dev-user",
			Roles:    []string{"CLIENT"},
			Secret:   "0123456789abcdef-dev",
		},
	}
}

func TestBuildAuthRequiresRedis(t *testing.T) {
	_, err := BuildAuth(context.Background(), AuthConfig{Auth: devAuthConfig(), Logger: discardLogger()})
	require.ErrorContains(t, err, "redis client is required")
}

func TestBuildAuthDevMode(t *testing.T) {
	bundle, err := BuildAuth(context.Background(), AuthConfig{
		Auth:        devAuthConfig(),
		RedisClient: unconnectedRedis(t),
		Logger:      discardLogger(),
	})
	require.NoError(t, err)

	require.NotNil(t, bundle.Auth)
	require.NotNil(t, bundle.Sessions)
	assert.Equal(t, 0, bundle.Sessions.Len())

	begin, err := bundle.Auth.BeginLogin(context.Background(), "/my-orders")
	require.NoError(t, err)
	assert.Contains(t, begin.AuthURL, "/auth/callback?code=dev")
}

func TestBuildAuthErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.AuthConfig)
		want   string
	}{
		{
			name:   "unsupported mode",
			mutate: func(c *config.AuthConfig) { c.Mode = "saml" },
			want:   "unsupported mode",
		},
		{
			name:   "short dev secret",
			mutate: func(c *config.AuthConfig) { c.DevAuth.Secret = "short" },
			want:   "dev provider",
		},
		{
			name:   "bad roles expression",
			mutate: func(c *config.AuthConfig) { c.RolesClaim = "realm_access.[[" },
			want:   "claims mapper",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := devAuthConfig()
			tt.mutate(&cfg)

			_, err := BuildAuth(context.Background(), AuthConfig{
				Auth:        cfg,
				RedisClient: unconnectedRedis(t),
				Logger:      discardLogger(),
			})
			require.ErrorContains(t, err, tt.want)
		})
	}
}
