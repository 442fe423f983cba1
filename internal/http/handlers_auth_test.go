package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/LeHak0/Neuro-Triage/internal/domain/auth"
	"github.com/LeHak0/Neuro-Triage/internal/ports"
)

// scriptedAuthFlow lets each test script the service behavior per call.
type scriptedAuthFlow struct {
	startLogin  func(ctx context.Context) (ports.SignInRedirect, error)
	finishLogin func(ctx context.Context, cb ports.Callback) (*domainauth.Session, error)
	signOut     func(ctx context.Context, id string) error
}

func (s *scriptedAuthFlow) StartLogin(ctx context.Context) (ports.SignInRedirect, error) {
	if s.startLogin != nil {
		return s.startLogin(ctx)
	}
	return ports.SignInRedirect{URL: "https://idp.example.com/auth", State: "state-1", Nonce: "nonce-1"}, nil
}

func (s *scriptedAuthFlow) FinishLogin(ctx context.Context, cb ports.Callback) (*domainauth.Session, error) {
	if s.finishLogin != nil {
		return s.finishLogin(ctx, cb)
	}
	return &domainauth.Session{
		ID:        "sess-1",
		UserID:    "avaughn",
		Role:      domainauth.RoleClinician,
		ExpiresAt: time.Now().Add(time.Hour),
	}, nil
}

func (s *scriptedAuthFlow) ResolveSession(context.Context, string) (*domainauth.Session, error) {
	return nil, errors.New("not used")
}

func (s *scriptedAuthFlow) SignOut(ctx context.Context, id string) error {
	if s.signOut != nil {
		return s.signOut(ctx, id)
	}
	return nil
}

func cookieByName(t *testing.T, cookies []*http.Cookie, name string) *http.Cookie {
	t.Helper()
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestLogin_RedirectsToProvider(t *testing.T) {
	handlers := &AuthHandlers{Svc: &scriptedAuthFlow{}}

	req := httptest.NewRequest(http.MethodGet, "/auth/login?redirect_uri=/cases/abc", nil)
	w := httptest.NewRecorder()
	handlers.Login(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://idp.example.com/auth", w.Header().Get("Location"))

	cookies := w.Result().Cookies()
	state := cookieByName(t, cookies, stateCookie)
	require.NotNil(t, state)
	assert.Equal(t, "state-1", state.Value)
	assert.True(t, state.HttpOnly)

	nonce := cookieByName(t, cookies, nonceCookie)
	require.NotNil(t, nonce)
	assert.Equal(t, "nonce-1", nonce.Value)

	returnTo := cookieByName(t, cookies, returnToCookie)
	require.NotNil(t, returnTo)
	assert.Equal(t, "/cases/abc", returnTo.Value)
}

func TestLogin_SanitizesRedirectURI(t *testing.T) {
	handlers := &AuthHandlers{Svc: &scriptedAuthFlow{}}

	req := httptest.NewRequest(http.MethodGet, "/auth/login?redirect_uri="+url.QueryEscape("https://evil.example.com/"), nil)
	w := httptest.NewRecorder()
	handlers.Login(w, req)

	returnTo := cookieByName(t, w.Result().Cookies(), returnToCookie)
	require.NotNil(t, returnTo)
	assert.Equal(t, "/", returnTo.Value)
}

func TestLogin_ProviderFailure(t *testing.T) {
	handlers := &AuthHandlers{Svc: &scriptedAuthFlow{
		startLogin: func(context.Context) (ports.SignInRedirect, error) {
			return ports.SignInRedirect{}, errors.New("idp unreachable")
		},
	}}

	req := httptest.NewRequest(http.MethodGet, "/auth/login", nil)
	w := httptest.NewRecorder()
	handlers.Login(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "login_failed")
}

func callbackRequest(query string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/auth/callback?"+query, nil)
	req.AddCookie(&http.Cookie{Name: stateCookie, Value: "state-1"})
	req.AddCookie(&http.Cookie{Name: nonceCookie, Value: "nonce-1"})
	req.AddCookie(&http.Cookie{Name: returnToCookie, Value: "/cases/abc"})
	return req
}

func TestCallback_SetsSessionAndRedirects(t *testing.T) {
	var gotCallback ports.Callback
	handlers := &AuthHandlers{Svc: &scriptedAuthFlow{
		finishLogin: func(_ context.Context, cb ports.Callback) (*domainauth.Session, error) {
			gotCallback = cb
			return &domainauth.Session{
				ID:        "sess-1",
				Role:      domainauth.RoleClinician,
				ExpiresAt: time.Now().Add(time.Hour),
			}, nil
		},
	}}

	w := httptest.NewRecorder()
	handlers.Callback(w, callbackRequest("code=auth-code&state=state-1"))

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/cases/abc", w.Header().Get("Location"))
	assert.Equal(t, ports.Callback{Code: "auth-code", State: "state-1", Nonce: "nonce-1"}, gotCallback)

	cookies := w.Result().Cookies()
	sess := cookieByName(t, cookies, SessionCookie)
	require.NotNil(t, sess)
	assert.Equal(t, "sess-1", sess.Value)
	assert.Positive(t, sess.MaxAge)

	// The round-trip cookies must not outlive the flow.
	for _, name := range []string{stateCookie, nonceCookie, returnToCookie} {
		c := cookieByName(t, cookies, name)
		require.NotNil(t, c, name)
		assert.Negative(t, c.MaxAge, name)
	}
}

func TestCallback_StateMismatch(t *testing.T) {
	handlers := &AuthHandlers{Svc: &scriptedAuthFlow{}}

	w := httptest.NewRecorder()
	handlers.Callback(w, callbackRequest("code=auth-code&state=forged"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_state")
}

func TestCallback_MissingStateCookie(t *testing.T) {
	handlers := &AuthHandlers{Svc: &scriptedAuthFlow{}}

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=auth-code&state=state-1", nil)
	w := httptest.NewRecorder()
	handlers.Callback(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_state")
}

func TestCallback_MissingNonceCookie(t *testing.T) {
	handlers := &AuthHandlers{Svc: &scriptedAuthFlow{}}

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=auth-code&state=state-1", nil)
	req.AddCookie(&http.Cookie{Name: stateCookie, Value: "state-1"})
	w := httptest.NewRecorder()
	handlers.Callback(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "missing_nonce")
}

func TestCallback_ServiceFailure(t *testing.T) {
	handlers := &AuthHandlers{Svc: &scriptedAuthFlow{
		finishLogin: func(context.Context, ports.Callback) (*domainauth.Session, error) {
			return nil, errors.New("exchange failed")
		},
	}}

	w := httptest.NewRecorder()
	handlers.Callback(w, callbackRequest("code=auth-code&state=state-1"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "login_failed")
}

func TestLogout_RevokesAndRedirects(t *testing.T) {
	var revokedID string
	handlers := &AuthHandlers{Svc: &scriptedAuthFlow{
		signOut: func(_ context.Context, id string) error {
			revokedID = id
			return nil
		},
	}}

	req := httptest.NewRequest(http.MethodPost, "/auth/logout?redirect_uri=/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "sess-1"})
	w := httptest.NewRecorder()
	handlers.Logout(w, req)

	assert.Equal(t, "sess-1", revokedID)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/auth/signed-out?redirect_uri=%2Fdashboard", w.Header().Get("Location"))

	sess := cookieByName(t, w.Result().Cookies(), SessionCookie)
	require.NotNil(t, sess)
	assert.Negative(t, sess.MaxAge)
}

func TestLogout_HTMXUsesHxRedirect(t *testing.T) {
	handlers := &AuthHandlers{Svc: &scriptedAuthFlow{}}

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.Header.Set("Hx-Request", "true")
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "sess-1"})
	w := httptest.NewRecorder()
	handlers.Logout(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/auth/signed-out?redirect_uri=%2F", w.Header().Get("Hx-Redirect"))
}

func TestLogout_SignOutFailureStillClearsCookie(t *testing.T) {
	handlers := &AuthHandlers{Svc: &scriptedAuthFlow{
		signOut: func(context.Context, string) error { return errors.New("store down") },
	}}

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "sess-1"})
	w := httptest.NewRecorder()
	handlers.Logout(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	sess := cookieByName(t, w.Result().Cookies(), SessionCookie)
	require.NotNil(t, sess)
	assert.Negative(t, sess.MaxAge)
}

func TestRequestIsSecure(t *testing.T) {
	plain := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.False(t, requestIsSecure(plain))

	proxied := httptest.NewRequest(http.MethodGet, "/", nil)
	proxied.Header.Set("X-Forwarded-Proto", "https")
	assert.True(t, requestIsSecure(proxied))
}
