package httpx

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"strings"
)

// CSRF double-submit defaults. The cookie is deliberately readable by
// JavaScript so htmx can echo it in the request header.
const (
	DefaultCSRFCookieName = "csrf_token"
	DefaultCSRFHeaderName = "X-Csrf-Token"
	csrfTokenBytes        = 32
	csrfCookieMaxAge      = 12 * 3600
)

// CSRFConfig holds configuration for CSRF protection middleware.
type CSRFConfig struct {
	CookieName    string // default "csrf_token"
	HeaderName    string // default "X-Csrf-Token"
	FormFieldName string // default matches CookieName
	CookieDomain  string
}

// CSRFProtection implements the double-submit cookie pattern: a random
// token lives in a cookie, and state-changing requests must echo it via
// the header (htmx) or a form field. Safe methods pass through but still
// get a token minted so the next form render can embed it.
func CSRFProtection(cfg CSRFConfig) func(http.Handler) http.Handler {
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCSRFCookieName
	}
	if cfg.HeaderName == "" {
		cfg.HeaderName = DefaultCSRFHeaderName
	}
	if cfg.FormFieldName == "" {
		cfg.FormFieldName = DefaultCSRFCookieName
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ""
			if c, err := r.Cookie(cfg.CookieName); err == nil {
				token = c.Value
			}
			if token == "" {
				minted, err := mintCSRFToken()
				if err != nil {
					// Fail closed rather than hand out a predictable token.
					http.Error(w, "unable to generate CSRF token", http.StatusInternalServerError)
					return
				}
				token = minted
				http.SetCookie(w, &http.Cookie{
					Name:     cfg.CookieName,
					Value:    token,
					Path:     "/",
					Domain:   cfg.CookieDomain,
					HttpOnly: false,
					Secure:   requestIsSecure(r),
					SameSite: http.SameSiteStrictMode,
					MaxAge:   csrfCookieMaxAge,
				})
			}

			r = r.WithContext(context.WithValue(r.Context(), csrfTokenKey{}, token))

			if csrfSafeMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			if !csrfTokenMatches(r, token, cfg) {
				http.Error(w, "CSRF token validation failed", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func csrfSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}

func mintCSRFToken() (string, error) {
	b := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// csrfTokenMatches compares the echoed token against the cookie value in
// constant time. The header wins over the form field when both present.
func csrfTokenMatches(r *http.Request, cookieToken string, cfg CSRFConfig) bool {
	if cookieToken == "" {
		return false
	}

	if echoed := r.Header.Get(cfg.HeaderName); echoed != "" {
		return subtle.ConstantTimeCompare([]byte(echoed), []byte(cookieToken)) == 1
	}

	contentType := r.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(contentType, "application/x-www-form-urlencoded"):
		if err := r.ParseForm(); err != nil {
			return false
		}
	case strings.HasPrefix(contentType, "multipart/form-data"):
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			return false
		}
	default:
		return false
	}
	echoed := r.FormValue(cfg.FormFieldName)
	if echoed == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(echoed), []byte(cookieToken)) == 1
}

// csrfTokenKey is an unexported context key type for CSRF token storage.
type csrfTokenKey struct{}

// GetCSRFToken returns the token minted for this request, for templates
// to embed in forms and the htmx request header.
func GetCSRFToken(r *http.Request) string {
	if token, ok := r.Context().Value(csrfTokenKey{}).(string); ok {
		return token
	}
	return ""
}
