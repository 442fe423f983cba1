package oidc

// Package oidc adapts an OpenID Connect provider to the dashboard's
// sign-in ports using coreos/go-oidc for discovery and token
// verification.

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	domainauth "github.com/LeHak0/Neuro-Triage/internal/domain/auth"
	"github.com/LeHak0/Neuro-Triage/internal/ports"
)

// defaultScopes asks for the standard profile claims plus group
// memberships, which drive role mapping.
const defaultScopes = "openid profile email groups"

// Provider implements ports.IdentityProvider against an OIDC issuer.
type Provider struct {
	oauth    *oauth2.Config
	provider *gooidc.Provider
	verifier *gooidc.IDTokenVerifier
}

// ProviderConfig holds configuration for the OIDC provider.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	IssuerURL    string
	Scopes       string       // space-separated; "openid" is always included
	HTTPClient   *http.Client // optional, defaults to a 30s-timeout client
}

// NewProvider discovers the issuer's endpoints and builds a provider.
func NewProvider(ctx context.Context, cfg ProviderConfig) (*Provider, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if cfg.ClientSecret == "" {
		return nil, errors.New("client secret is required")
	}
	if cfg.RedirectURL == "" {
		return nil, errors.New("redirect URL is required")
	}
	if cfg.IssuerURL == "" {
		return nil, errors.New("issuer URL is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	ctx = gooidc.ClientContext(ctx, httpClient)

	// Accept either the bare issuer or its discovery document URL.
	issuer := strings.TrimSuffix(strings.TrimSuffix(cfg.IssuerURL, "/.well-known/openid-configuration"), "/")
	provider, err := gooidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery: %w", err)
	}

	return &Provider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       normalizeScopes(cfg.Scopes),
			Endpoint:     provider.Endpoint(),
		},
		provider: provider,
		verifier: provider.Verifier(&gooidc.Config{ClientID: cfg.ClientID}),
	}, nil
}

// normalizeScopes splits the configured scopes and guarantees "openid"
// is among them; without it there is no ID token to verify.
func normalizeScopes(scopes string) []string {
	if scopes == "" {
		scopes = defaultScopes
	}
	fields := strings.Fields(scopes)
	for _, s := range fields {
		if s == gooidc.ScopeOpenID {
			return fields
		}
	}
	return append([]string{gooidc.ScopeOpenID}, fields...)
}

// SignIn generates fresh state and nonce values and returns the
// authorization URL to send the browser to.
func (p *Provider) SignIn(_ context.Context) (ports.SignInRedirect, error) {
	state, err := randomToken()
	if err != nil {
		return ports.SignInRedirect{}, fmt.Errorf("generate state: %w", err)
	}
	nonce, err := randomToken()
	if err != nil {
		return ports.SignInRedirect{}, fmt.Errorf("generate nonce: %w", err)
	}

	return ports.SignInRedirect{
		URL:   p.oauth.AuthCodeURL(state, gooidc.Nonce(nonce)),
		State: state,
		Nonce: nonce,
	}, nil
}

// Identify exchanges the authorization code, verifies the ID token
// against the expected nonce, and maps its claims to an identity.
func (p *Provider) Identify(ctx context.Context, cb ports.Callback) (domainauth.Identity, error) {
	token, err := p.oauth.Exchange(ctx, cb.Code)
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("exchange code: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return domainauth.Identity{}, errors.New("token response has no id_token")
	}
	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("verify id_token: %w", err)
	}
	if cb.Nonce != "" && idToken.Nonce != cb.Nonce {
		return domainauth.Identity{}, errors.New("id_token nonce mismatch")
	}

	var claims identityClaims
	if err := idToken.Claims(&claims); err != nil {
		return domainauth.Identity{}, fmt.Errorf("parse id_token claims: %w", err)
	}

	identity := claims.identity()
	// Some providers keep profile claims off the ID token; fall back to
	// the userinfo endpoint for anything missing.
	if identity.Email == "" || len(identity.Groups) == 0 {
		if err := p.fillFromUserInfo(ctx, token, &identity); err != nil {
			return domainauth.Identity{}, fmt.Errorf("fetch userinfo: %w", err)
		}
	}

	identity.ExpiresAt = token.Expiry
	if identity.ExpiresAt.IsZero() {
		identity.ExpiresAt = idToken.Expiry
	}
	return identity, nil
}

func (p *Provider) fillFromUserInfo(ctx context.Context, token *oauth2.Token, identity *domainauth.Identity) error {
	ui, err := p.provider.UserInfo(ctx, oauth2.StaticTokenSource(token))
	if err != nil {
		return err
	}
	var claims identityClaims
	if err := ui.Claims(&claims); err != nil {
		return fmt.Errorf("decode userinfo claims: %w", err)
	}
	fallback := claims.identity()
	if identity.Email == "" {
		identity.Email = fallback.Email
	}
	if identity.GivenName == "" {
		identity.GivenName = fallback.GivenName
	}
	if identity.FamilyName == "" {
		identity.FamilyName = fallback.FamilyName
	}
	if len(identity.Groups) == 0 {
		identity.Groups = fallback.Groups
	}
	return nil
}

// identityClaims covers the standard OIDC profile claims the dashboard
// cares about, on both ID tokens and userinfo responses.
type identityClaims struct {
	Subject           string   `json:"sub"`
	Email             string   `json:"email"`
	GivenName         string   `json:"given_name"`
	FamilyName        string   `json:"family_name"`
	PreferredUsername string   `json:"preferred_username"`
	Groups            []string `json:"groups"`
}

func (c identityClaims) identity() domainauth.Identity {
	userID := c.PreferredUsername
	if userID == "" {
		userID = c.Subject
	}
	return domainauth.Identity{
		UserID:     userID,
		Email:      c.Email,
		GivenName:  c.GivenName,
		FamilyName: c.FamilyName,
		Groups:     c.Groups,
	}
}

// randomToken returns a URL-safe string with 256 bits of entropy.
func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

var _ ports.IdentityProvider = (*Provider)(nil)
