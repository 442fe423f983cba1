package config

import (
	"strings"
	"time"
)

// BackendConfig describes how to reach the CogniTriage analysis backend.
// The backend is an opaque collaborator: the UI only consumes its HTTP
// contract (submit, status, result, trials, demo endpoints).
type BackendConfig struct {
	// BaseURL is the root of the analysis backend (no trailing slash).
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8000"`

	// RequestTimeout bounds status/result/trials requests.
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`

	// SubmitTimeout bounds the multipart case submission, which uploads
	// MRI volumes and can be substantially slower than a status poll.
	SubmitTimeout time.Duration `env:"SUBMIT_TIMEOUT" envDefault:"2m"`
}

// Sanitize applies guardrails to backend configuration values.
func (b *BackendConfig) Sanitize() {
	b.BaseURL = strings.TrimRight(strings.TrimSpace(b.BaseURL), "/")
	if b.BaseURL == "" {
		b.BaseURL = "http://localhost:8000"
	}
	if b.RequestTimeout <= 0 {
		b.RequestTimeout = 30 * time.Second
	}
	if b.SubmitTimeout <= 0 {
		b.SubmitTimeout = 2 * time.Minute
	}
}
