package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/target/microshop-ui/config"
	"github.com/target/microshop-ui/internal/adapters/authroles"
	"github.com/target/microshop-ui/internal/adapters/devauth"
	"github.com/target/microshop-ui/internal/adapters/oidc"
	redisadapter "github.com/target/microshop-ui/internal/adapters/redis"
	"github.com/target/microshop-ui/internal/observability/metrics"
	"github.com/target/microshop-ui/internal/ports"
	"github.com/target/microshop-ui/internal/service"
)

// AuthConfig contains configuration for the session lifecycle.
type AuthConfig struct {
	Auth        config.AuthConfig
	RedisClient redis.UniversalClient
	Metrics     metrics.Recorder
	Audit       ports.AuthEventRepository // Optional
	Logger      *slog.Logger
}

// AuthBundle holds the session registry and the login/logout orchestration built on it.
type AuthBundle struct {
	Auth     *service.AuthService
	Sessions *service.SessionRegistry
}

// BuildAuth wires the identity provider selected by the auth mode, the claims mapper,
// and the Redis token store into a session registry and auth service.
func BuildAuth(ctx context.Context, cfg AuthConfig) (AuthBundle, error) {
	if cfg.RedisClient == nil {
		return AuthBundle{}, errors.New("auth: redis client is required for the token store")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	provider, err := buildIdentityProvider(ctx, cfg.Auth)
	if err != nil {
		return AuthBundle{}, err
	}

	claims, err := authroles.NewClaimsMapper(authroles.Config{
		RolesExpr:    cfg.Auth.RolesClaim,
		UsernameExpr: cfg.Auth.UsernameClaim,
	})
	if err != nil {
		return AuthBundle{}, fmt.Errorf("auth: claims mapper: %w", err)
	}

	tokens := redisadapter.NewTokenStore(cfg.RedisClient, cfg.Auth.TokenTTL)

	registry := service.NewSessionRegistry(service.SessionRegistryOptions{
		Identity: service.IdentityDeps{
			Provider: provider,
			Tokens:   tokens,
			Claims:   claims,
		},
		Config: service.SessionRegistryConfig{
			InitTimeout: cfg.Auth.InitTimeout,
			IdleTTL:     cfg.Auth.ClientIdleTTL,
		},
		Observers: service.RegistryObservers{
			Logger:  logger,
			Metrics: cfg.Metrics,
			Audit:   cfg.Audit,
		},
	})

	logger.Info("auth configured", "mode", cfg.Auth.Mode, "login_required", cfg.Auth.LoginRequired)

	return AuthBundle{
		Auth: service.NewAuthService(service.AuthServiceOptions{
			Provider: provider,
			Tokens:   tokens,
			Sessions: registry,
		}),
		Sessions: registry,
	}, nil
}

//nolint:ireturn // the provider is chosen at runtime from the auth mode.
func buildIdentityProvider(ctx context.Context, cfg config.AuthConfig) (ports.IdentityProvider, error) {
	switch cfg.Mode {
	case config.AuthModeMock:
		prov, err := devauth.NewProvider(devauth.Config{
			Username: cfg.DevAuth.Username,
			Roles:    cfg.DevAuth.Roles,
			Secret:   cfg.DevAuth.Secret,
		})
		if err != nil {
			return nil, fmt.Errorf("auth: dev provider: %w", err)
		}
		return prov, nil

	case config.AuthModeOAuth, "":
		oauth := cfg.OAuth
		prov, err := oidc.NewProvider(ctx, oidc.ProviderConfig{
			ClientID:     oauth.ClientID,
			ClientSecret: oauth.ClientSecret,
			RedirectURL:  oauth.RedirectURL,
			Scope:        oauth.Scope,
			DiscoveryURL: oauth.DiscoveryURL,
			LogoutURL:    oauth.LogoutURL,
		})
		if err != nil {
			return nil, fmt.Errorf("auth: oidc provider: %w", err)
		}
		return prov, nil

	default:
		return nil, fmt.Errorf("auth: unsupported mode %q", cfg.Mode)
	}
}
