package httpx

import (
	"net/http"
)

const errMsgUnableLoadTrials = "Unable to load matching clinical trials. Please try again."

// TrialsPage serves the matched clinical trials for a settled case.
// GET /cases/{id}/trials.
//
// Trial lookups run lazily on first view and are cached on the session, so
// revisiting the tab does not re-query the backend.
func (h *UIHandlers) TrialsPage(w http.ResponseWriter, r *http.Request) {
	sess := h.loadSettledCase(w, r)
	if sess == nil {
		return
	}

	data := basePageData(r, PageMeta{
		Title:       "NeuroTriage - Clinical Trials",
		PageTitle:   "Clinical Trials",
		CurrentPage: PageTrials,
	})
	for k, v := range resultData(sess) {
		data[k] = v
	}

	trials, err := h.Trials.ForCase(r.Context(), sess)
	if err != nil {
		h.logger().WarnContext(r.Context(), "trial lookup failed", "case_id", sess.ID, "error", err)
		data["Error"] = true
		data["ErrorMessage"] = errMsgUnableLoadTrials
	} else {
		data["Trials"] = trials
	}

	h.renderDashboardPage(w, r, data)
}
