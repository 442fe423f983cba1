package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/LeHak0/Neuro-Triage/config"
	"github.com/LeHak0/Neuro-Triage/internal/adapters/reaper"
	"github.com/LeHak0/Neuro-Triage/internal/backend"
	"github.com/LeHak0/Neuro-Triage/internal/core"
	"github.com/LeHak0/Neuro-Triage/internal/data"
	"github.com/LeHak0/Neuro-Triage/internal/observability/notify"
	"github.com/LeHak0/Neuro-Triage/internal/observability/statsd"
	"github.com/LeHak0/Neuro-Triage/internal/service"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Backend *backend.Client
	Cases   *service.CaseService
	Trials  *service.TrialService
	Poller  *service.Poller
	Auth    *service.AuthService

	// CaseRepo is the session store behind CaseService, exposed so the
	// session reaper can prune it.
	CaseRepo core.CaseRepository

	Observability ObservabilityContainer
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	MetricsSink     *statsd.Client
	FailureNotifier *notify.Fanout
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// NewServices wires the full service graph: backend client, case store,
// poll loop manager, and the case/trial/auth services on top.
func NewServices(deps *ServiceDeps) ServiceContainer {
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	metricsSink := BuildMetricsSink(cfg.Observability.Metrics, logger)
	notifier := BuildFailureNotifier(cfg.Observability.Notifications, logger)

	// A nil *statsd.Client must not become a non-nil Sink interface.
	var sink statsd.Sink
	if metricsSink != nil {
		sink = metricsSink
	}
	var notifierSink notify.Sink
	if notifier != nil {
		notifierSink = notifier
	}

	backendClient := backend.NewClient(cfg.Backend, logger)
	cases := buildCaseRepository(cfg, deps.RedisClient, logger)

	poller := service.NewPoller(service.PollerOptions{
		Backend:     backendClient,
		Cases:       cases,
		Interval:    cfg.Poll.Interval,
		MaxDuration: cfg.Poll.MaxDuration,
		Logger:      logger,
		Metrics:     sink,
		Notifier:    notifierSink,
	})

	caseService := service.NewCaseService(service.CaseServiceOptions{
		Backend: backendClient,
		Cases:   cases,
		Poller:  poller,
		Logger:  logger,
		Metrics: sink,
	})

	trialService := service.NewTrialService(service.TrialServiceOptions{
		Backend: backendClient,
		Cases:   cases,
		Logger:  logger,
	})

	authService := BuildAuthService(AuthConfig{
		Auth:        cfg.Auth,
		RedisClient: deps.RedisClient,
		Logger:      logger,
	})

	return ServiceContainer{
		Backend:  backendClient,
		Cases:    caseService,
		Trials:   trialService,
		Poller:   poller,
		Auth:     authService,
		CaseRepo: cases,
		Observability: ObservabilityContainer{
			MetricsSink:     metricsSink,
			FailureNotifier: notifier,
		},
	}
}

// buildCaseRepository selects the session store: Redis when configured,
// otherwise in-process memory.
//
//nolint:ireturn // the repository port is what callers program against.
func buildCaseRepository(cfg *config.AppConfig, client redis.UniversalClient, logger *slog.Logger) core.CaseRepository {
	if client != nil {
		logger.Info("case sessions stored in redis", "ttl", cfg.Redis.SessionTTL)
		return data.NewRedisCaseRepo(client, cfg.Redis.SessionTTL)
	}
	logger.Info("case sessions stored in memory")
	return data.NewMemoryCaseRepo()
}

// RunConfig groups dependencies for running the application until shutdown.
type RunConfig struct {
	Config      *config.AppConfig
	Services    ServiceContainer
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// RunWithShutdown starts the HTTP server and blocks until SIGINT/SIGTERM
// or a fatal server error, then tears everything down in order: stop
// accepting requests, drain poll loops, flush metrics.
func RunWithShutdown(ctx context.Context, cfg *RunConfig) error {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := BuildHTTPServer(&HTTPServerConfig{
		Config:   cfg.Config,
		Services: cfg.Services,
		Logger:   logger,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if sessionReaper := buildSessionReaper(cfg, logger); sessionReaper != nil {
		g.Go(func() error {
			if err := sessionReaper.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		return shutdown(cfg, server, logger)
	})

	return g.Wait()
}

// buildSessionReaper creates the stale-session pruner. Redis expires
// sessions via TTL on its own, so the loop only matters for the
// recency index there; for the memory store it is the sole cleanup.
func buildSessionReaper(cfg *RunConfig, logger *slog.Logger) *reaper.Runner {
	var sink statsd.Sink
	if ms := cfg.Services.Observability.MetricsSink; ms != nil {
		sink = ms
	}

	runner, err := reaper.NewRunner(reaper.RunnerOptions{
		Cases:   cfg.Services.CaseRepo,
		MaxAge:  cfg.Config.Redis.SessionTTL,
		Logger:  logger,
		Metrics: sink,
	})
	if err != nil {
		logger.Warn("session reaper disabled", "error", err)
		return nil
	}
	return runner
}

func shutdown(cfg *RunConfig, server *http.Server, logger *slog.Logger) error {
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := server.Shutdown(shutdownCtx)

	// Poll loops keep their own contexts; drain them after the server
	// stops so in-flight requests still see consistent sessions.
	cfg.Services.Poller.Shutdown()

	if sink := cfg.Services.Observability.MetricsSink; sink != nil {
		if closeErr := sink.Close(); closeErr != nil {
			logger.Warn("close metrics sink", "error", closeErr)
		}
	}

	if err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}
