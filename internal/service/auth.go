package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	domainauth "github.com/LeHak0/Neuro-Triage/internal/domain/auth"
	"github.com/LeHak0/Neuro-Triage/internal/ports"
)

// ErrSessionExpired is returned by ResolveSession once a session has
// passed its expiry; the stored record is revoked on the way out.
var ErrSessionExpired = errors.New("session expired")

// defaultMaxSessionLife caps session lifetime regardless of what the
// provider token says. Review workstations in clinical settings are
// often shared, so a runaway provider expiry must not keep a session
// alive for days.
const defaultMaxSessionLife = 12 * time.Hour

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Provider ports.IdentityProvider
	Sessions ports.SessionStore
	Roles    ports.RoleMapper
	// MaxSessionLife bounds session lifetime independent of the
	// provider token expiry. Defaults to 12h.
	MaxSessionLife time.Duration
}

// AuthService runs the dashboard sign-in flow: it drives the identity
// provider, maps group memberships to a role, and owns the server-side
// session records.
type AuthService struct {
	provider ports.IdentityProvider
	sessions ports.SessionStore
	roles    ports.RoleMapper
	maxLife  time.Duration
}

// NewAuthService constructs an AuthService with defaults applied.
func NewAuthService(opts AuthServiceOptions) *AuthService {
	maxLife := opts.MaxSessionLife
	if maxLife <= 0 {
		maxLife = defaultMaxSessionLife
	}
	return &AuthService{
		provider: opts.Provider,
		sessions: opts.Sessions,
		roles:    opts.Roles,
		maxLife:  maxLife,
	}
}

// StartLogin begins a sign-in flow and returns the provider redirect
// with the state and nonce the callback must echo.
func (s *AuthService) StartLogin(ctx context.Context) (ports.SignInRedirect, error) {
	redirect, err := s.provider.SignIn(ctx)
	if err != nil {
		return ports.SignInRedirect{}, fmt.Errorf("start sign-in: %w", err)
	}
	return redirect, nil
}

// FinishLogin completes a sign-in flow: it exchanges the callback for
// an identity, resolves the role, and persists a new session.
func (s *AuthService) FinishLogin(ctx context.Context, cb ports.Callback) (*domainauth.Session, error) {
	if cb.Code == "" {
		return nil, errors.New("authorization code is required")
	}
	if cb.State == "" {
		return nil, errors.New("state parameter is required")
	}
	if cb.Nonce == "" {
		return nil, errors.New("nonce parameter is required")
	}

	identity, err := s.provider.Identify(ctx, cb)
	if err != nil {
		return nil, fmt.Errorf("complete sign-in: %w", err)
	}

	sess := domainauth.Session{
		ID:         uuid.NewString(),
		UserID:     identity.UserID,
		GivenName:  identity.GivenName,
		FamilyName: identity.FamilyName,
		Email:      identity.Email,
		Role:       s.roles.RoleFor(identity.Groups),
		ExpiresAt:  s.sessionExpiry(identity.ExpiresAt),
	}

	if err := s.sessions.Put(ctx, sess); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	return &sess, nil
}

// sessionExpiry clamps the provider token expiry to the configured
// session life cap.
func (s *AuthService) sessionExpiry(tokenExpiry time.Time) time.Time {
	limit := time.Now().Add(s.maxLife)
	if tokenExpiry.IsZero() || tokenExpiry.After(limit) {
		return limit
	}
	return tokenExpiry
}

// ResolveSession returns the live session for the given ID. Expired
// sessions are revoked and reported as ErrSessionExpired.
func (s *AuthService) ResolveSession(ctx context.Context, sessionID string) (*domainauth.Session, error) {
	if sessionID == "" {
		return nil, errors.New("session ID is required")
	}

	sess, err := s.sessions.Find(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}

	if time.Now().After(sess.ExpiresAt) {
		if revokeErr := s.sessions.Revoke(ctx, sessionID); revokeErr != nil {
			return nil, errors.Join(ErrSessionExpired, fmt.Errorf("revoke session: %w", revokeErr))
		}
		return nil, ErrSessionExpired
	}
	return &sess, nil
}

// SignOut revokes a session. A blank ID is a no-op so the handler can
// call it unconditionally.
func (s *AuthService) SignOut(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.sessions.Revoke(ctx, sessionID); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}
