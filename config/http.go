package config

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	// BaseURL is the base URL of the application (e.g., "https://triage.example.com").
	// Used for generating absolute URLs such as the OAuth redirect.
	BaseURL string `env:"APP_BASE_URL" envDefault:"http://localhost:8080"`

	// CookieDomain is the domain for session cookies.
	// Leave empty to use the request domain.
	CookieDomain string `env:"APP_COOKIE_DOMAIN" envDefault:""`

	// CompressionEnabled toggles gzip compression of responses.
	CompressionEnabled bool `env:"HTTP_COMPRESSION_ENABLED" envDefault:"true"`

	// CompressionLevel is the gzip level (1-9).
	CompressionLevel int `env:"HTTP_COMPRESSION_LEVEL" envDefault:"6"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	if h.Addr == "" {
		h.Addr = ":8080"
	}
	if h.CompressionLevel < 1 || h.CompressionLevel > 9 {
		h.CompressionLevel = 6
	}
}
