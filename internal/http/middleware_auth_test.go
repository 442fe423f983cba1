package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/LeHak0/Neuro-Triage/internal/domain/auth"
	"github.com/LeHak0/Neuro-Triage/internal/ports"
)

// fakeAuthFlow resolves sessions from a fixed map; everything else is
// unused by the middleware under test.
type fakeAuthFlow struct {
	sessions map[string]*domainauth.Session
}

func (f *fakeAuthFlow) StartLogin(context.Context) (ports.SignInRedirect, error) {
	return ports.SignInRedirect{}, errors.New("not used")
}

func (f *fakeAuthFlow) FinishLogin(context.Context, ports.Callback) (*domainauth.Session, error) {
	return nil, errors.New("not used")
}

func (f *fakeAuthFlow) ResolveSession(_ context.Context, id string) (*domainauth.Session, error) {
	if sess, ok := f.sessions[id]; ok {
		return sess, nil
	}
	return nil, errors.New("session not found")
}

func (f *fakeAuthFlow) SignOut(context.Context, string) error { return nil }

func authFlowWith(role domainauth.Role) *fakeAuthFlow {
	return &fakeAuthFlow{sessions: map[string]*domainauth.Session{
		"live-session": {
			ID:        "live-session",
			UserID:    "avaughn",
			Email:     "avaughn@clinic.example.com",
			Role:      role,
			ExpiresAt: time.Now().Add(time.Hour),
		},
	}}
}

// okHandler records whether it ran and echoes the context session.
func okHandler(t *testing.T, ran *bool, wantUserID string) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*ran = true
		if wantUserID != "" {
			sess, ok := GetUserSessionFromContext(r.Context())
			require.True(t, ok, "session must be in context")
			assert.Equal(t, wantUserID, sess.UserID)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuthBrowser_ValidSession(t *testing.T) {
	var ran bool
	handler := RequireAuthBrowser(authFlowWith(domainauth.RoleClinician))(okHandler(t, &ran, "avaughn"))

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "live-session"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.True(t, ran)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireAuthBrowser_NoSessionRedirectsBrowser(t *testing.T) {
	var ran bool
	handler := RequireAuthBrowser(authFlowWith(domainauth.RoleClinician))(okHandler(t, &ran, ""))

	req := httptest.NewRequest(http.MethodGet, "/cases/abc", nil)
	req.Header.Set("Accept", "text/html")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.False(t, ran)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/auth/login?redirect_uri=%2Fcases%2Fabc", w.Header().Get("Location"))
}

func TestRequireAuthBrowser_UnknownSessionCookie(t *testing.T) {
	var ran bool
	handler := RequireAuthBrowser(authFlowWith(domainauth.RoleClinician))(okHandler(t, &ran, ""))

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.Header.Set("Accept", "text/html")
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "revoked-session"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.False(t, ran)
	assert.Equal(t, http.StatusSeeOther, w.Code)
}

func TestRequireAuthBrowser_NonBrowserGets401(t *testing.T) {
	var ran bool
	handler := RequireAuthBrowser(authFlowWith(domainauth.RoleClinician))(okHandler(t, &ran, ""))

	req := httptest.NewRequest(http.MethodGet, "/api/cases", nil)
	req.Header.Set("Accept", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.False(t, ran)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "authentication_required")
}

func TestRequireAuthBrowser_HTMXGetsHxRedirect(t *testing.T) {
	var ran bool
	handler := RequireAuthBrowser(authFlowWith(domainauth.RoleClinician))(okHandler(t, &ran, ""))

	// A status poll whose session expired mid-flight must navigate the
	// page away instead of swapping an error into the polled fragment.
	req := httptest.NewRequest(http.MethodGet, "/cases/abc/status", nil)
	req.Header.Set("Hx-Request", "true")
	req.Header.Set("Hx-Current-Url", "http://dashboard.local/cases/abc")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.False(t, ran)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/auth/signed-out?redirect_uri=%2Fcases%2Fabc", w.Header().Get("Hx-Redirect"))
}

func TestRequireRoleBrowser_SufficientRole(t *testing.T) {
	tests := []struct {
		name string
		role domainauth.Role
	}{
		{"clinician submits", domainauth.RoleClinician},
		{"admin submits", domainauth.RoleAdmin},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ran bool
			handler := RequireRoleBrowser(authFlowWith(tt.role), domainauth.RoleClinician)(okHandler(t, &ran, "avaughn"))

			req := httptest.NewRequest(http.MethodPost, "/cases", nil)
			req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "live-session"})
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.True(t, ran)
			assert.Equal(t, http.StatusOK, w.Code)
		})
	}
}

func TestRequireRoleBrowser_GuestIsDenied(t *testing.T) {
	var ran bool
	handler := RequireRoleBrowser(authFlowWith(domainauth.RoleGuest), domainauth.RoleClinician)(okHandler(t, &ran, ""))

	req := httptest.NewRequest(http.MethodPost, "/cases", nil)
	req.Header.Set("Accept", "text/html")
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "live-session"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.False(t, ran)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "Access Denied")
}

func TestRequireRoleBrowser_GuestNonBrowserGets403JSON(t *testing.T) {
	var ran bool
	handler := RequireRoleBrowser(authFlowWith(domainauth.RoleGuest), domainauth.RoleClinician)(okHandler(t, &ran, ""))

	req := httptest.NewRequest(http.MethodPost, "/cases", nil)
	req.Header.Set("Accept", "application/json")
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "live-session"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.False(t, ran)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "insufficient_permissions")
}

func TestRedirectPathForRequest(t *testing.T) {
	tests := []struct {
		name    string
		target  string
		headers map[string]string
		want    string
	}{
		{
			name:   "plain request uses its own URI",
			target: "/cases/abc?tab=results",
			want:   "/cases/abc?tab=results",
		},
		{
			name:   "htmx prefers the current page over the fragment",
			target: "/dashboard/recent-cases",
			headers: map[string]string{
				"Hx-Request":     "true",
				"Hx-Current-Url": "http://dashboard.local/dashboard",
			},
			want: "/dashboard",
		},
		{
			name:   "htmx falls back to referer",
			target: "/cases/abc/status",
			headers: map[string]string{
				"Hx-Request": "true",
				"Referer":    "http://dashboard.local/cases/abc",
			},
			want: "/cases/abc",
		},
		{
			name:   "offsite current url is ignored for path purposes",
			target: "/dashboard/recent-cases",
			headers: map[string]string{
				"Hx-Request":     "true",
				"Hx-Current-Url": "https://evil.example.com/phish",
			},
			want: "/phish",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, redirectPathForRequest(req))
		})
	}
}

func TestSafeRedirectPath(t *testing.T) {
	assert.Equal(t, "/cases/abc", safeRedirectPath("/cases/abc"))
	assert.Equal(t, "/", safeRedirectPath(""))
	assert.Equal(t, "/", safeRedirectPath("https://evil.example.com/"))
	assert.Equal(t, "/", safeRedirectPath("//evil.example.com/"))
	assert.Equal(t, "/", safeRedirectPath("cases/abc"))
}
