// Package ports defines the interfaces the sign-in flow is built
// against. Implementations live under internal/adapters; the
// orchestration lives in internal/service.
package ports

import (
	"context"

	domainauth "github.com/LeHak0/Neuro-Triage/internal/domain/auth"
)

// SignInRedirect is the provider hop that starts a sign-in: the URL to
// send the browser to, plus the state and nonce the callback must echo.
type SignInRedirect struct {
	URL   string
	State string
	Nonce string
}

// Callback carries the parameters the provider sends back to the
// dashboard after the user authenticates.
type Callback struct {
	Code  string
	State string
	Nonce string
}

// IdentityProvider runs the sign-in flow against an identity provider.
type IdentityProvider interface {
	// SignIn starts the flow and returns the redirect to the provider.
	SignIn(ctx context.Context) (SignInRedirect, error)

	// Identify completes the flow, verifying the callback against the
	// expected nonce, and returns the authenticated identity.
	Identify(ctx context.Context, cb Callback) (domainauth.Identity, error)
}

// SessionStore persists server-side sessions for signed-in users.
type SessionStore interface {
	Put(ctx context.Context, sess domainauth.Session) error
	Find(ctx context.Context, id string) (domainauth.Session, error)
	Revoke(ctx context.Context, id string) error
}

// RoleMapper resolves provider group memberships to a dashboard role.
type RoleMapper interface {
	RoleFor(groups []string) domainauth.Role
}
