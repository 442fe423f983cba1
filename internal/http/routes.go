package httpx

import (
	"bytes"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"

	neurotriage "github.com/LeHak0/Neuro-Triage"
	domainauth "github.com/LeHak0/Neuro-Triage/internal/domain/auth"
	"github.com/LeHak0/Neuro-Triage/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Cases  CasesService
	Trials TrialsService
	Probe  BackendProbe
	Auth   *service.AuthService

	CookieDomain string
	IsDev        bool         // Development mode flag for hot reloading, etc.
	Logger       *slog.Logger // Logger for template and HTTP errors (optional)
}

// NewRouter creates and configures a new HTTP router with browser middleware.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	if services.Auth != nil {
		authHandlers := &AuthHandlers{Svc: services.Auth, CookieDomain: services.CookieDomain, Logger: services.Logger}
		registerAuthRoutes(mux, authHandlers)
	}

	// Static assets at /static
	// Dev mode: serve from disk for hot reloading
	// Prod mode: serve from embedded FS
	mux.Handle("GET /static/", staticWithFallback(services.IsDev))

	// UI routes with template renderer
	uiHandlers := setupUIHandlers(services)
	if uiHandlers != nil {
		cfg := uiRouteConfig{Auth: services.Auth, CookieDomain: services.CookieDomain}
		registerUIRoutes(mux, uiHandlers, cfg)
	}

	// Wrap with NotFound handler and browser detection middleware
	handler := &notFoundHandler{
		mux:        mux,
		uiHandlers: uiHandlers,
	}

	// Apply browser detection middleware
	return BrowserDetection()(handler)
}

// setupUIHandlers creates UI handlers with a template renderer.
// In dev mode (services.IsDev=true), templates are loaded from disk for hot reloading.
// In production mode (services.IsDev=false), templates are loaded from embedded FS.
func setupUIHandlers(services RouterServices) *UIHandlers {
	var templateFS fs.FS
	if services.IsDev {
		templateFS = os.DirFS(TemplatePathFromRoot)
	} else {
		sub, err := fs.Sub(neurotriage.TemplateFS, "frontend/templates")
		if err != nil {
			log.Printf("failed to create sub-filesystem for templates: %v; falling back to disk", err)
			sub = os.DirFS(TemplatePathFromRoot)
		}
		templateFS = sub
	}

	tr, err := NewTemplateRenderer(TemplateRendererConfig{
		TemplateFS: templateFS,
		Logger:     services.Logger,
	})
	if err != nil {
		if services.Logger != nil {
			services.Logger.Error("failed to create template renderer", slog.Any("error", err))
		} else {
			log.Printf("ERROR: failed to create template renderer: %v", err)
		}
		return nil
	}

	return &UIHandlers{
		T:      tr,
		Cases:  services.Cases,
		Trials: services.Trials,
		Probe:  services.Probe,
		IsDev:  services.IsDev,
		Logger: services.Logger,
	}
}

// staticWithFallback serves /static/* assets.
// In dev mode (isDev=true), serves from disk for hot reloading.
// In production mode (isDev=false), serves from embedded FS.
func staticWithFallback(isDev bool) http.Handler {
	if isDev {
		return staticWithCacheHeaders(http.StripPrefix("/static/", http.FileServer(http.Dir("frontend/static"))))
	}

	staticSub, err := fs.Sub(neurotriage.StaticFS, "frontend/static")
	if err != nil {
		log.Printf("failed to create sub-filesystem for static assets: %v", err)
		// Fallback to disk serving if embed fails
		return staticWithCacheHeaders(http.StripPrefix("/static/", http.FileServer(http.Dir("frontend/static"))))
	}
	return staticWithCacheHeaders(http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))
}

// staticWithCacheHeaders wraps a static file handler to add appropriate cache headers.
func staticWithCacheHeaders(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Assets are not content-hashed, so force revalidation
		w.Header().Set("Cache-Control", "no-cache, must-revalidate")
		handler.ServeHTTP(w, r)
	})
}

// notFoundHandler wraps a ServeMux and provides custom 404 handling.
type notFoundHandler struct {
	mux        *http.ServeMux
	uiHandlers *UIHandlers
}

// ServeHTTP implements http.Handler and provides custom 404 handling.
func (h *notFoundHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cw := newCaptureWriter(w)
	// Serve the request through the mux, capturing status, headers, and body
	h.mux.ServeHTTP(cw, r)

	// If the mux didn't handle the request (404), use our custom handler
	if cw.status == http.StatusNotFound {
		// For missing static assets, preserve the default file server response
		if strings.HasPrefix(r.URL.Path, "/static/") {
			cw.flushTo(w)
			return
		}
		if h.uiHandlers != nil {
			h.uiHandlers.NotFound(w, r)
			return
		}
		http.NotFound(w, r)
		return
	}

	// Not a 404: write the captured response
	cw.flushTo(w)
}

// captureWriter buffers headers, status and body so we can decide post-dispatch.
type captureWriter struct {
	rw     http.ResponseWriter
	header http.Header
	status int
	buf    bytes.Buffer
}

func newCaptureWriter(w http.ResponseWriter) *captureWriter {
	return &captureWriter{rw: w, header: make(http.Header), status: http.StatusOK}
}

func (c *captureWriter) Header() http.Header         { return c.header }
func (c *captureWriter) WriteHeader(code int)        { c.status = code }
func (c *captureWriter) Write(b []byte) (int, error) { return c.buf.Write(b) }

func (c *captureWriter) flushTo(w http.ResponseWriter) {
	for k, vs := range c.header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(c.status)
	if _, err := w.Write(c.buf.Bytes()); err != nil {
		log.Printf("failed to write captured response: %v", err)
	}
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers) {
	mux.HandleFunc("GET /auth/login", h.Login)
	mux.HandleFunc("GET /auth/callback", h.Callback)
	mux.HandleFunc("POST /auth/logout", h.Logout)
}

// uiRouteConfig holds configuration for UI route registration.
type uiRouteConfig struct {
	Auth         *service.AuthService
	CookieDomain string
}

// authWrap returns a no-op wrapper when auth is nil, otherwise applies RequireAuthBrowser.
func (cfg uiRouteConfig) authWrap() func(http.Handler) http.Handler {
	if cfg.Auth == nil {
		return func(h http.Handler) http.Handler { return h }
	}
	return RequireAuthBrowser(cfg.Auth)
}

// submitWrap guards state-changing case routes: CSRF protection plus the
// clinician role requirement. Guests can view, only clinicians submit.
func (cfg uiRouteConfig) submitWrap() func(http.Handler) http.Handler {
	if cfg.Auth == nil {
		return func(h http.Handler) http.Handler { return h }
	}
	csrf := CSRFProtection(CSRFConfig{CookieDomain: cfg.CookieDomain})
	roleCheck := RequireRoleBrowser(cfg.Auth, domainauth.RoleClinician)
	return func(h http.Handler) http.Handler {
		return roleCheck(csrf(h))
	}
}

// registerUIRoutes delegates to per-domain UI route registration functions.
func registerUIRoutes(mux *http.ServeMux, h *UIHandlers, cfg uiRouteConfig) {
	registerUIDashboardRoutes(mux, h, cfg)
	registerUICaseRoutes(mux, h, cfg)
	registerUIResultRoutes(mux, h, cfg)
	// Public auth-related UI routes (no auth wrapper)
	mux.Handle("GET /auth/signed-out", http.HandlerFunc(h.SignedOut))
}

// registerUIDashboardRoutes wires the dashboard and its polled fragments.
func registerUIDashboardRoutes(mux *http.ServeMux, h *UIHandlers, cfg uiRouteConfig) {
	wrap := cfg.authWrap()
	mux.Handle("GET /", wrap(http.HandlerFunc(h.Index)))
	mux.Handle("GET /dashboard", wrap(http.HandlerFunc(h.Dashboard)))
	mux.Handle("GET /dashboard/recent-cases", wrap(http.HandlerFunc(h.RecentCasesFragment)))
	mux.Handle("GET /dashboard/backend-health", wrap(http.HandlerFunc(h.BackendHealthFragment)))
}

// registerUICaseRoutes wires case submission and the polled progress view.
func registerUICaseRoutes(mux *http.ServeMux, h *UIHandlers, cfg uiRouteConfig) {
	wrap := cfg.authWrap()
	wrapSubmit := cfg.submitWrap()
	mux.Handle("POST /cases", wrapSubmit(http.HandlerFunc(h.CaseSubmit)))
	mux.Handle("POST /demo", wrapSubmit(h.DemoStart(service.DemoNormal)))
	mux.Handle("POST /demo/pathology", wrapSubmit(h.DemoStart(service.DemoPathology)))
	mux.Handle("GET /cases/{id}", wrap(http.HandlerFunc(h.CaseView)))
	mux.Handle("GET /cases/{id}/status", wrap(http.HandlerFunc(h.CaseStatusFragment)))
	mux.Handle("POST /cases/{id}/cancel", wrapSubmit(http.HandlerFunc(h.CaseCancel)))
	mux.Handle("POST /cases/{id}/resubmit", wrapSubmit(http.HandlerFunc(h.CaseResubmit)))
}

// registerUIResultRoutes wires the post-settlement result views.
func registerUIResultRoutes(mux *http.ServeMux, h *UIHandlers, cfg uiRouteConfig) {
	wrap := cfg.authWrap()
	mux.Handle("GET /cases/{id}/results", wrap(http.HandlerFunc(h.Results)))
	mux.Handle("GET /cases/{id}/brain", wrap(http.HandlerFunc(h.Brain)))
	mux.Handle("GET /cases/{id}/trials", wrap(http.HandlerFunc(h.TrialsPage)))
	mux.Handle("GET /cases/{id}/recommendations", wrap(http.HandlerFunc(h.Recommendations)))
}
