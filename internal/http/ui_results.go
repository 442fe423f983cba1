package httpx

import (
	"net/http"

	"github.com/LeHak0/Neuro-Triage/internal/domain/model"
)

// loadSettledCase loads a case and ensures the analysis has settled.
// Cases still in flight are redirected back to the progress page.
// Returns nil when a response has already been written.
func (h *UIHandlers) loadSettledCase(w http.ResponseWriter, r *http.Request) *model.CaseSession {
	sess := h.loadCase(w, r)
	if sess == nil {
		return nil
	}
	if sess.Phase != model.PhaseSettled {
		h.redirectToCase(w, r, sess.ID)
		return nil
	}
	return sess
}

// resultData builds the common template fields for result views.
func resultData(sess *model.CaseSession) map[string]any {
	data := map[string]any{
		"Case":      sess,
		"CaseID":    sess.ID,
		"State":     sess.State(),
		"ResultErr": sess.ResultErr,
		"HasResult": sess.Result != nil,
	}
	if sess.Result != nil {
		data["Result"] = sess.Result
		data["Triage"] = sess.Result.Triage
		data["Note"] = sess.Result.Note
		data["Imaging"] = sess.Result.Note.Imaging
		data["Citations"] = sess.Result.Citations
		data["QC"] = sess.Result.QC
	}
	return data
}

// Results serves the triage summary for a settled case.
// GET /cases/{id}/results.
func (h *UIHandlers) Results(w http.ResponseWriter, r *http.Request) {
	sess := h.loadSettledCase(w, r)
	if sess == nil {
		return
	}

	data := basePageData(r, PageMeta{
		Title:       "NeuroTriage - Results",
		PageTitle:   "Triage Results",
		CurrentPage: PageResults,
	})
	for k, v := range resultData(sess) {
		data[k] = v
	}
	h.renderDashboardPage(w, r, data)
}

// Brain serves the hippocampal volume detail for a settled case.
// GET /cases/{id}/brain.
func (h *UIHandlers) Brain(w http.ResponseWriter, r *http.Request) {
	sess := h.loadSettledCase(w, r)
	if sess == nil {
		return
	}

	data := basePageData(r, PageMeta{
		Title:       "NeuroTriage - Brain Imaging",
		PageTitle:   "Brain Imaging",
		CurrentPage: PageBrain,
	})
	for k, v := range resultData(sess) {
		data[k] = v
	}
	h.renderDashboardPage(w, r, data)
}

// Recommendations serves the recommendations and limitations view.
// GET /cases/{id}/recommendations.
func (h *UIHandlers) Recommendations(w http.ResponseWriter, r *http.Request) {
	sess := h.loadSettledCase(w, r)
	if sess == nil {
		return
	}

	data := basePageData(r, PageMeta{
		Title:       "NeuroTriage - Recommendations",
		PageTitle:   "Recommendations",
		CurrentPage: PageRecommendations,
	})
	for k, v := range resultData(sess) {
		data[k] = v
	}
	h.renderDashboardPage(w, r, data)
}
