package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/LeHak0/Neuro-Triage/internal/domain/model"
	apperrors "github.com/LeHak0/Neuro-Triage/internal/errors"
)

// stubProbe is a hand-written BackendProbe double.
type stubProbe struct {
	err error
}

func (s *stubProbe) Healthz(context.Context) error { return s.err }

func TestIndex_RendersSubmissionFormAndRecentCases(t *testing.T) {
	sess := runningSession("case-1")
	h := newCaseHandlers(t, &stubCases{sessions: map[string]*model.CaseSession{"case-1": sess}})
	h.Probe = &stubProbe{}

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	h.Index(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, ContainsAll(body, []string{
		`hx-post="/cases"`,
		`name="moca"`,
		`name="age"`,
		`name="sex"`,
		"/cases/case-1",
		"Service online",
	}), body)
}

func TestIndex_RecentCasesFailureShowsMessage(t *testing.T) {
	h := newCaseHandlers(t, &stubCases{recentErr: apperrors.Poll("status fetch returned 502")})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	h.Index(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), errMsgUnableLoadRecentCases)
}

func TestRecentCasesFragment_NotCached(t *testing.T) {
	sess := completedSession(t, "case-1")
	h := newCaseHandlers(t, &stubCases{sessions: map[string]*model.CaseSession{"case-1": sess}})

	r := httptest.NewRequest(http.MethodGet, "/dashboard/recent-cases", nil)
	r.Header.Set("Hx-Request", "true")
	w := httptest.NewRecorder()

	h.RecentCasesFragment(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Cache-Control"), "no-store")
	body := w.Body.String()
	assert.True(t, ContainsAll(body, []string{"/cases/case-1", "MODERATE"}), body)
}

func TestRecentCasesFragment_EmptyState(t *testing.T) {
	h := newCaseHandlers(t, &stubCases{})

	r := httptest.NewRequest(http.MethodGet, "/dashboard/recent-cases", nil)
	r.Header.Set("Hx-Request", "true")
	w := httptest.NewRecorder()

	h.RecentCasesFragment(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "No cases yet")
}

func TestBackendHealthFragment(t *testing.T) {
	tests := []struct {
		name     string
		probeErr error
		want     string
	}{
		{name: "online", probeErr: nil, want: "Service online"},
		{name: "offline", probeErr: apperrors.Poll("connection refused"), want: "Service unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newCaseHandlers(t, &stubCases{})
			h.Probe = &stubProbe{err: tt.probeErr}

			r := httptest.NewRequest(http.MethodGet, "/dashboard/backend-health", nil)
			r.Header.Set("Hx-Request", "true")
			w := httptest.NewRecorder()

			h.BackendHealthFragment(w, r)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Contains(t, w.Header().Get("Cache-Control"), "no-store")
			assert.Contains(t, w.Body.String(), tt.want)
		})
	}
}

func TestDashboard_RedirectsHome(t *testing.T) {
	h := newCaseHandlers(t, &stubCases{})

	r := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	w := httptest.NewRecorder()

	h.Dashboard(w, r)

	assert.Equal(t, http.StatusMovedPermanently, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
}
