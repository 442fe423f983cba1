package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	domainauth "github.com/LeHak0/Neuro-Triage/internal/domain/auth"
	"github.com/LeHak0/Neuro-Triage/internal/ports"
)

var (
	errInvalidState = errors.New("state does not match the sign-in cookie")
	errMissingNonce = errors.New("sign-in nonce cookie is missing")
)

// Cookie names used by the sign-in flow. The session cookie is the only
// long-lived one; the rest exist for the duration of a provider round trip.
const (
	SessionCookie  = "nt_session"
	stateCookie    = "nt_auth_state"
	nonceCookie    = "nt_auth_nonce"
	returnToCookie = "nt_return_to"
)

// signInFlowTTL bounds how long a provider round trip may take before the
// state and nonce cookies expire.
const signInFlowTTL = 10 * time.Minute

// AuthFlow is the slice of the auth service the HTTP handlers need.
type AuthFlow interface {
	StartLogin(ctx context.Context) (ports.SignInRedirect, error)
	FinishLogin(ctx context.Context, cb ports.Callback) (*domainauth.Session, error)
	ResolveSession(ctx context.Context, sessionID string) (*domainauth.Session, error)
	SignOut(ctx context.Context, sessionID string) error
}

// AuthHandlers serves the browser-facing sign-in endpoints.
type AuthHandlers struct {
	Svc          AuthFlow
	CookieDomain string
	Logger       *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// Login starts a sign-in round trip with the identity provider.
// GET /auth/login?redirect_uri=<optional same-origin path>.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	returnTo := safeRedirectPath(r.URL.Query().Get("redirect_uri"))

	redirect, err := h.Svc.StartLogin(r.Context())
	if err != nil {
		h.logger().ErrorContext(r.Context(), "start sign-in failed", "error", err)
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "login_failed", Err: err})
		return
	}

	h.setCookie(w, r, stateCookie, redirect.State, int(signInFlowTTL.Seconds()))
	h.setCookie(w, r, nonceCookie, redirect.Nonce, int(signInFlowTTL.Seconds()))
	h.setCookie(w, r, returnToCookie, returnTo, int(signInFlowTTL.Seconds()))

	http.Redirect(w, r, redirect.URL, http.StatusFound)
}

// Callback finishes the sign-in round trip. The state echoed by the
// provider must match the cookie set by Login, and the nonce cookie is
// handed to the service for token verification.
// GET /auth/callback?code=<code>&state=<state>.
func (h *AuthHandlers) Callback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	stored, err := r.Cookie(stateCookie)
	if err != nil || state == "" || stored.Value != state {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "invalid_state",
			Err:     errInvalidState,
		})
		return
	}
	nonce, err := r.Cookie(nonceCookie)
	if err != nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "missing_nonce",
			Err:     errMissingNonce,
		})
		return
	}

	sess, err := h.Svc.FinishLogin(r.Context(), ports.Callback{
		Code:  r.URL.Query().Get("code"),
		State: state,
		Nonce: nonce.Value,
	})
	if err != nil {
		h.logger().ErrorContext(r.Context(), "finish sign-in failed", "error", err)
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "login_failed", Err: err})
		return
	}

	h.setCookie(w, r, SessionCookie, sess.ID, int(time.Until(sess.ExpiresAt).Seconds()))
	h.clearCookie(w, r, stateCookie)
	h.clearCookie(w, r, nonceCookie)

	http.Redirect(w, r, h.takeReturnTo(w, r), http.StatusFound)
}

// Logout revokes the session and sends the browser to the signed-out
// page. htmx requests get an Hx-Redirect so the client navigates away
// from the swapped fragment.
// POST /auth/logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(SessionCookie); err == nil {
		if err := h.Svc.SignOut(r.Context(), c.Value); err != nil {
			h.logger().WarnContext(r.Context(), "sign-out failed", "error", err)
		}
	}
	h.clearCookie(w, r, SessionCookie)

	returnTo := r.FormValue("redirect_uri")
	if returnTo == "" {
		returnTo = r.URL.Query().Get("redirect_uri")
	}
	dest := url.URL{
		Path:     "/auth/signed-out",
		RawQuery: url.Values{"redirect_uri": {safeRedirectPath(returnTo)}}.Encode(),
	}

	if IsHTMX(r) {
		SetHXRedirect(w, dest.String())
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, dest.String(), http.StatusFound)
}

// takeReturnTo consumes the return-to cookie set at login, falling back
// to the dashboard when absent or unsafe.
func (h *AuthHandlers) takeReturnTo(w http.ResponseWriter, r *http.Request) string {
	returnTo := "/"
	if c, err := r.Cookie(returnToCookie); err == nil {
		returnTo = safeRedirectPath(c.Value)
		h.clearCookie(w, r, returnToCookie)
	}
	return returnTo
}

func (h *AuthHandlers) setCookie(w http.ResponseWriter, r *http.Request, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   h.CookieDomain,
		HttpOnly: true,
		Secure:   requestIsSecure(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

func (h *AuthHandlers) clearCookie(w http.ResponseWriter, r *http.Request, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   h.CookieDomain,
		HttpOnly: true,
		Secure:   requestIsSecure(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
	})
}

// requestIsSecure reports whether the request arrived over TLS, directly
// or via a terminating proxy. X-Forwarded-Proto may carry a hop list.
func requestIsSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	for _, proto := range strings.Split(r.Header.Get("X-Forwarded-Proto"), ",") {
		if strings.EqualFold(strings.TrimSpace(proto), "https") {
			return true
		}
	}
	return false
}

// safeRedirectPath restricts a redirect target to a same-origin relative
// path. Anything absolute, schemeful, or host-qualified collapses to "/".
func safeRedirectPath(candidate string) string {
	if candidate == "" {
		return "/"
	}
	u, err := url.Parse(candidate)
	if err != nil || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/") {
		return "/"
	}
	return candidate
}
