package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/LeHak0/Neuro-Triage/internal/domain/model"
	"github.com/LeHak0/Neuro-Triage/internal/http/uiutil"
)

const errMsgUnableLoadRecentCases = "Unable to load recent cases"

// CaseRow represents a case session summarized for dashboard display.
type CaseRow struct {
	ID        string
	JobID     string
	Phase     model.Phase
	State     model.JobState
	Progress  int
	RiskTier  model.RiskTier
	FileCount int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FriendlyCreatedAt returns a human friendly description of when the case was submitted.
func (c CaseRow) FriendlyCreatedAt() string {
	return uiutil.FriendlyRelativeTime(c.CreatedAt)
}

// FriendlyUpdatedAt returns a human friendly description of the last update.
func (c CaseRow) FriendlyUpdatedAt() string {
	return uiutil.FriendlyRelativeTime(c.UpdatedAt)
}

// StatusSummary returns a concise string describing case status and timing.
func (c CaseRow) StatusSummary() string {
	switch {
	case c.Phase == model.PhaseSettled && c.State == model.JobStateCompleted:
		return "Completed " + c.FriendlyUpdatedAt()
	case c.Phase == model.PhaseSettled:
		return "Failed " + c.FriendlyUpdatedAt()
	case c.State == model.JobStateRunning:
		return "Analyzing " + c.FriendlyCreatedAt()
	default:
		return "Queued " + c.FriendlyCreatedAt()
	}
}

// Settled reports whether results are available for linking.
func (c CaseRow) Settled() bool { return c.Phase == model.PhaseSettled }

func toCaseRow(sess *model.CaseSession) CaseRow {
	row := CaseRow{
		ID:        sess.ID,
		JobID:     sess.JobID,
		Phase:     sess.Phase,
		State:     sess.State(),
		Progress:  sess.Progress(),
		FileCount: len(sess.FileNames),
		CreatedAt: sess.CreatedAt,
		UpdatedAt: sess.UpdatedAt,
	}
	if sess.Result != nil {
		row.RiskTier = sess.Result.Triage.RiskTier
	}
	return row
}

// Index serves the home page with the submission form and recent cases.
func (h *UIHandlers) Index(w http.ResponseWriter, r *http.Request) {
	h.Page(w, r, PageSpec{
		Meta: PageMeta{Title: "NeuroTriage - Dashboard", PageTitle: "Dashboard", CurrentPage: PageHome},
		Fetch: func(ctx context.Context, data map[string]any) error {
			h.populateRecentCases(ctx, data)
			h.populateBackendHealth(ctx, data)
			return nil
		},
	})
}

// fetchRecentCases fetches the newest case sessions for dashboard display.
func (h *UIHandlers) fetchRecentCases(ctx context.Context, limit int) ([]CaseRow, error) {
	sessions, err := h.Cases.Recent(ctx, limit)
	if err != nil {
		h.logger().WarnContext(ctx, "failed to fetch recent cases for dashboard", "error", err)
		return nil, err
	}

	rows := make([]CaseRow, 0, len(sessions))
	for _, sess := range sessions {
		rows = append(rows, toCaseRow(sess))
	}
	return rows, nil
}

func (h *UIHandlers) populateRecentCases(ctx context.Context, data map[string]any) {
	data["RecentCases"] = []CaseRow{}
	data["RecentCasesError"] = ""

	if h.Cases == nil {
		data["RecentCasesError"] = errMsgUnableLoadRecentCases
		return
	}

	rows, err := h.fetchRecentCases(ctx, MaxRecentCases)
	if err != nil {
		data["RecentCasesError"] = errMsgUnableLoadRecentCases
		return
	}
	data["RecentCases"] = rows
}

func (h *UIHandlers) populateBackendHealth(ctx context.Context, data map[string]any) {
	data["BackendHealthy"] = false
	if h.Probe == nil {
		return
	}
	if err := h.Probe.Healthz(ctx); err != nil {
		h.logger().WarnContext(ctx, "backend health probe failed", "error", err)
		return
	}
	data["BackendHealthy"] = true
}

// RecentCasesFragment serves the recent cases panel for HTMX polling.
func (h *UIHandlers) RecentCasesFragment(w http.ResponseWriter, r *http.Request) {
	data := basePageData(r, PageMeta{})
	h.populateRecentCases(r.Context(), data)

	h.renderFragment(w, r, fragmentRenderOptions{
		Template: "dashboard-recent-cases-fragment",
		Data:     data,
	})
}

// BackendHealthFragment serves the backend availability indicator.
func (h *UIHandlers) BackendHealthFragment(w http.ResponseWriter, r *http.Request) {
	data := basePageData(r, PageMeta{})
	h.populateBackendHealth(r.Context(), data)

	h.renderFragment(w, r, fragmentRenderOptions{
		Template: "dashboard-backend-health-fragment",
		Data:     data,
	})
}

// Dashboard redirects to the home page (dashboard is at "/").
func (h *UIHandlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusMovedPermanently)
}
