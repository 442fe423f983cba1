package bootstrap

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/LeHak0/Neuro-Triage/config"
	"github.com/LeHak0/Neuro-Triage/internal/adapters/authroles"
	"github.com/LeHak0/Neuro-Triage/internal/adapters/devauth"
	"github.com/LeHak0/Neuro-Triage/internal/adapters/oidc"
	redisadapter "github.com/LeHak0/Neuro-Triage/internal/adapters/redis"
	"github.com/LeHak0/Neuro-Triage/internal/service"
)

// AuthConfig contains configuration for auth service.
type AuthConfig struct {
	Auth        config.AuthConfig
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// BuildAuthService creates an auth service based on the configured auth mode.
// Returns nil if auth is not configured or configuration is invalid.
func BuildAuthService(cfg AuthConfig) *service.AuthService {
	if cfg.RedisClient == nil {
		if cfg.Logger != nil {
			cfg.Logger.Warn("auth service disabled: redis client not configured", "mode", cfg.Auth.Mode)
		}
		return nil
	}

	sessions := redisadapter.NewSessionStore(cfg.RedisClient)
	roles := authroles.StaticRoleMapper{
		AdminGroup:     cfg.Auth.AdminGroup,
		ClinicianGroup: cfg.Auth.ClinicianGroup,
	}

	switch cfg.Auth.Mode {
	case config.AuthModeMock:
		return buildDevAuthService(cfg, sessions, roles)

	case config.AuthModeOAuth:
		return buildOAuthService(cfg, sessions, roles)

	default:
		return nil
	}
}

func buildDevAuthService(
	cfg AuthConfig,
	sessions *redisadapter.SessionStore,
	roles authroles.StaticRoleMapper,
) *service.AuthService {
	prov, err := devauth.NewProvider(devauth.Config{
		UserID: cfg.Auth.DevAuth.UserID,
		Email:  cfg.Auth.DevAuth.Email,
		Groups: cfg.Auth.DevAuth.Groups,
	})
	if err != nil {
		if cfg.Logger != nil {
			cfg.Logger.Warn("failed to create dev auth provider, auth disabled", "error", err)
		}
		return nil
	}

	return service.NewAuthService(service.AuthServiceOptions{
		Provider: prov,
		Sessions: sessions,
		Roles:    roles,
	})
}

func buildOAuthService(
	cfg AuthConfig,
	sessions *redisadapter.SessionStore,
	roles authroles.StaticRoleMapper,
) *service.AuthService {
	oauth := cfg.Auth.OAuth
	if oauth.IssuerURL == "" || oauth.ClientID == "" || oauth.ClientSecret == "" {
		if cfg.Logger != nil {
			cfg.Logger.Warn("AuthModeOAuth selected but required config missing; auth disabled",
				"issuer_url_empty", oauth.IssuerURL == "",
				"client_id_empty", oauth.ClientID == "",
				"client_secret_empty", oauth.ClientSecret == "",
			)
		}
		return nil
	}

	// Discovery happens once at startup, before the server accepts traffic.
	prov, err := oidc.NewProvider(context.Background(), oidc.ProviderConfig{
		ClientID:     oauth.ClientID,
		ClientSecret: oauth.ClientSecret,
		RedirectURL:  oauth.RedirectURL,
		Scopes:       oauth.Scopes,
		IssuerURL:    oauth.IssuerURL,
	})
	if err != nil {
		if cfg.Logger != nil {
			cfg.Logger.Warn("failed to create OIDC provider, auth disabled", "error", err)
		}
		return nil
	}

	return service.NewAuthService(service.AuthServiceOptions{
		Provider: prov,
		Sessions: sessions,
		Roles:    roles,
	})
}
