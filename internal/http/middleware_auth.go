package httpx

import (
	"errors"
	"net/http"
	"net/url"

	domainauth "github.com/LeHak0/Neuro-Triage/internal/domain/auth"
)

// sessionFromRequest resolves the session named by the browser cookie.
// Any failure, expired session included, reads as "not signed in".
func sessionFromRequest(r *http.Request, auth AuthFlow) *domainauth.Session {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return nil
	}
	sess, err := auth.ResolveSession(r.Context(), c.Value)
	if err != nil {
		return nil
	}
	return sess
}

// RequireAuthBrowser gates a route on a live session. Browser requests
// are sent to sign-in; everything else gets a 401 JSON body.
func RequireAuthBrowser(auth AuthFlow) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := sessionFromRequest(r, auth)
			if sess == nil {
				denyUnauthenticated(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(SetSessionInContext(r.Context(), sess)))
		})
	}
}

// RequireRoleBrowser gates a route on a live session holding at least
// the required role. Guests hitting a clinician route see the access
// denied page rather than a bare error.
func RequireRoleBrowser(auth AuthFlow, required domainauth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := sessionFromRequest(r, auth)
			if sess == nil {
				denyUnauthenticated(w, r)
				return
			}
			if !sess.Role.Meets(required) {
				if IsBrowserRequest(r) {
					showAccessDenied(w, r)
					return
				}
				WriteError(w, ErrorParams{
					Code:    http.StatusForbidden,
					ErrCode: "insufficient_permissions",
					Err:     errors.New("insufficient permissions"),
				})
				return
			}
			next.ServeHTTP(w, r.WithContext(SetSessionInContext(r.Context(), sess)))
		})
	}
}

func denyUnauthenticated(w http.ResponseWriter, r *http.Request) {
	if IsBrowserRequest(r) {
		redirectToLogin(w, r)
		return
	}
	WriteError(w, ErrorParams{
		Code:    http.StatusUnauthorized,
		ErrCode: "authentication_required",
		Err:     errors.New("authentication required"),
	})
}

// redirectToLogin sends the browser to sign-in with the current URL as
// the post-login destination.
func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	redirectPath := redirectPathForRequest(r)
	if redirectPath == "" {
		redirectPath = "/"
	}
	redirectParam := url.QueryEscape(redirectPath)

	if IsHTMX(r) {
		// Navigate the whole page to the signed-out view instead of
		// swapping an error fragment into the polled target.
		SetHXRedirect(w, "/auth/signed-out?redirect_uri="+redirectParam)
		w.WriteHeader(http.StatusOK)
		return
	}

	http.Redirect(w, r, "/auth/login?redirect_uri="+redirectParam, http.StatusSeeOther)
}

func redirectPathForRequest(r *http.Request) string {
	if IsHTMX(r) {
		// Fragment URLs are useless as post-login destinations; prefer
		// the page the fragment lives on.
		if current := safeRedirectFromURL(r.Header.Get("Hx-Current-Url")); current != "" {
			return current
		}
		if referer := safeRedirectFromURL(r.Header.Get("Referer")); referer != "" {
			return referer
		}
	}
	return safeRedirectPath(r.URL.RequestURI())
}

// safeRedirectFromURL reduces a possibly-absolute URL to a same-origin
// relative path, or "" when it cannot be trusted.
func safeRedirectFromURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if u.Host != "" && !u.IsAbs() {
		return ""
	}
	if u.IsAbs() {
		return safeRedirectPath(u.RequestURI())
	}
	return safeRedirectPath(raw)
}

func showAccessDenied(w http.ResponseWriter, _ *http.Request) {
	http.Error(w, "Access Denied: You don't have permission to access this resource", http.StatusForbidden)
}
