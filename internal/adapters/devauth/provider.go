package devauth

// Package devauth signs in a fixed, config-driven identity for local
// development. It short-circuits the provider round trip by redirecting
// straight back to the dashboard's own callback.

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/google/uuid"

	domainauth "github.com/LeHak0/Neuro-Triage/internal/domain/auth"
	"github.com/LeHak0/Neuro-Triage/internal/ports"
)

// Config describes the identity every dev sign-in resolves to.
type Config struct {
	UserID          string
	Email           string
	Groups          []string
	SessionDuration time.Duration // default 8h when zero
}

// Provider implements ports.IdentityProvider without an external IdP.
type Provider struct {
	cfg Config
}

// NewProvider validates the config and builds a dev provider.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.UserID == "" {
		return nil, errors.New("dev auth: UserID is required")
	}
	if cfg.Email == "" {
		return nil, errors.New("dev auth: Email is required")
	}
	if cfg.SessionDuration == 0 {
		cfg.SessionDuration = 8 * time.Hour
	}
	return &Provider{cfg: cfg}, nil
}

// SignIn points the browser at the dashboard's own callback with fresh
// state and nonce, so the normal callback handler path is exercised.
func (p *Provider) SignIn(_ context.Context) (ports.SignInRedirect, error) {
	state := uuid.NewString()
	nonce := uuid.NewString()
	u := url.URL{
		Path:     "/auth/callback",
		RawQuery: url.Values{"code": {"dev"}, "state": {state}}.Encode(),
	}
	return ports.SignInRedirect{URL: u.String(), State: state, Nonce: nonce}, nil
}

// Identify returns the configured identity regardless of the callback
// contents; the handler has already matched state and nonce cookies.
func (p *Provider) Identify(_ context.Context, _ ports.Callback) (domainauth.Identity, error) {
	return domainauth.Identity{
		UserID:    p.cfg.UserID,
		Email:     p.cfg.Email,
		Groups:    append([]string(nil), p.cfg.Groups...),
		ExpiresAt: time.Now().Add(p.cfg.SessionDuration),
	}, nil
}

var _ ports.IdentityProvider = (*Provider)(nil)
