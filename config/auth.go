package config

import (
	"fmt"
	"strings"
)

// AuthMode represents the authentication mode for the application.
type AuthMode string

const (
	// AuthModeOAuth uses OAuth/OIDC for authentication.
	AuthModeOAuth AuthMode = "oauth"
	// AuthModeMock uses mock/dev authentication (for development only).
	AuthModeMock AuthMode = "mock"
	// AuthModeNone disables authentication entirely.
	AuthModeNone AuthMode = "none"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "oauth", "mock", "none":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: oauth, mock, none)", v)
	}
}

// OAuthConfig contains OAuth/OIDC configuration.
type OAuthConfig struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURL  string `env:"REDIRECT_URL" envDefault:"http://localhost:8080/auth/callback"`
	Scopes       string `env:"SCOPES"       envDefault:"openid profile email groups"`
	IssuerURL    string `env:"ISSUER_URL"`
}

// DevAuthConfig controls mock/dev authentication identity.
// Used when AUTH_MODE=mock for development and testing.
type DevAuthConfig struct {
	UserID string   `env:"USER_ID" envDefault:"dev-clinician"`
	Email  string   `env:"EMAIL"   envDefault:"dev@example.com"`
	Groups []string `env:"GROUPS"  envDefault:"clinicians"     envSeparator:";"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Mode determines which authentication provider to use.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"none"`

	// OAuth configuration (used when Mode=oauth).
	OAuth OAuthConfig `envPrefix:"OAUTH_"`

	// DevAuth configuration (used when Mode=mock).
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`

	// AdminGroup is the IdP group granting admin access.
	AdminGroup string `env:"ADMIN_GROUP" envDefault:"neurotriage-admins"`

	// ClinicianGroup is the IdP group granting clinician access.
	ClinicianGroup string `env:"CLINICIAN_GROUP" envDefault:"clinicians"`
}

// Sanitize applies guardrails to auth configuration values.
// An oauth mode without a client ID cannot work; fall back to no auth
// rather than failing closed on a half-configured deployment.
func (a *AuthConfig) Sanitize() {
	if a.Mode == AuthModeOAuth && strings.TrimSpace(a.OAuth.ClientID) == "" {
		a.Mode = AuthModeNone
	}
}

// IsEnabled reports whether any authentication provider is active.
func (a *AuthConfig) IsEnabled() bool {
	return a.Mode == AuthModeOAuth || a.Mode == AuthModeMock
}
