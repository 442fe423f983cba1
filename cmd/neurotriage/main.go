package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/LeHak0/Neuro-Triage/config"
	"github.com/LeHak0/Neuro-Triage/internal/bootstrap"
)

func main() {
	ctx := context.Background()
	logger := bootstrap.InitLogger()
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}

	logStartupInfo(ctx, logger, &cfg)

	redisClient, err := bootstrap.ConnectRedis(cfg.Redis, logger)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer func() {
			if cerr := redisClient.Close(); cerr != nil {
				logger.ErrorContext(ctx, "close redis failed", "error", cerr)
			}
		}()
	}

	services := bootstrap.NewServices(&bootstrap.ServiceDeps{
		Config:      &cfg,
		RedisClient: redisClient,
		Logger:      logger,
	})

	return bootstrap.RunWithShutdown(ctx, &bootstrap.RunConfig{
		Config:      &cfg,
		Services:    services,
		RedisClient: redisClient,
		Logger:      logger,
	})
}

func logStartupInfo(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig) {
	logger.InfoContext(ctx, "starting neurotriage service",
		"addr", cfg.HTTP.Addr,
		"backend", cfg.Backend.BaseURL,
		"redis_enabled", cfg.Redis.Enabled,
		"auth_mode", cfg.Auth.Mode,
		"dev", cfg.IsDev)
}
