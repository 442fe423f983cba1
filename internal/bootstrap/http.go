package bootstrap

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/LeHak0/Neuro-Triage/config"
	httpx "github.com/LeHak0/Neuro-Triage/internal/http"
)

// HTTPServerConfig contains configuration for the HTTP server.
type HTTPServerConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

// BuildHTTPServer assembles the router, middleware chain, and server.
// The caller is responsible for ListenAndServe and Shutdown.
func BuildHTTPServer(cfg *HTTPServerConfig) *http.Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	services := httpx.RouterServices{
		Cases:        cfg.Services.Cases,
		Trials:       cfg.Services.Trials,
		Probe:        cfg.Services.Backend,
		Auth:         cfg.Services.Auth,
		CookieDomain: appCfg.HTTP.CookieDomain,
		IsDev:        appCfg.IsDev,
		Logger:       logger,
	}

	handler := buildHTTPHandler(httpHandlerConfig{
		Logger:   logger,
		Services: services,
		HTTP:     appCfg.HTTP,
	})

	addr := appCfg.HTTP.Addr
	if addr == "" {
		addr = ":8080"
	}

	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

type httpHandlerConfig struct {
	Logger   *slog.Logger
	Services httpx.RouterServices
	HTTP     config.HTTPConfig
}

func buildHTTPHandler(cfg httpHandlerConfig) http.Handler {
	router := httpx.NewRouter(cfg.Services)

	// Apply compression middleware first (innermost) so logging captures compressed sizes
	// Order: Recover -> Logging -> Compression -> Router
	h := router
	if cfg.HTTP.CompressionEnabled {
		cfg.Logger.Info("HTTP compression enabled", "level", cfg.HTTP.CompressionLevel)
		h = httpx.Compression(httpx.CompressionConfig{Level: cfg.HTTP.CompressionLevel})(h)
	}

	h = httpx.Logging(cfg.Logger)(h)
	h = httpx.Recover(cfg.Logger)(h)

	return h
}
