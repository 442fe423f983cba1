package httpx

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/LeHak0/Neuro-Triage/internal/domain/model"
	apperrors "github.com/LeHak0/Neuro-Triage/internal/errors"
	"github.com/LeHak0/Neuro-Triage/internal/service"
)

// multipartMemoryLimit is the in-memory threshold for submission uploads.
// Larger files are spooled to disk by the multipart reader.
const multipartMemoryLimit = 32 << 20

// StopPollingStatus is the HTMX status code that stops an active polling
// trigger. Fragments return it once a case has settled.
const StopPollingStatus = 286

// StageView pairs a pipeline stage with a display label for templates.
type StageView struct {
	Name   string
	Label  string
	Status model.StageStatus
}

func stageLabel(name string) string {
	return strings.ReplaceAll(strings.TrimSuffix(name, "_Agent"), "_", " ")
}

func stageViews(st *model.JobStatus) []StageView {
	if st == nil {
		return nil
	}
	stages := st.OrderedStages()
	views := make([]StageView, 0, len(stages))
	for _, s := range stages {
		views = append(views, StageView{Name: s.Name, Label: stageLabel(s.Name), Status: s.Status})
	}
	return views
}

// parseSubmissionForm extracts files and patient metadata from a multipart
// submission form. The returned cleanup func closes any opened file parts and
// must be called even on error.
func parseSubmissionForm(r *http.Request) (*model.SubmissionInput, func(), error) {
	cleanup := func() {}
	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		return nil, cleanup, apperrors.ValidationField("files", "the upload could not be read")
	}

	// MoCA and age are optional; blank fields stay unset and the backend
	// applies its own defaults.
	input := &model.SubmissionInput{
		Patient: model.PatientMeta{MoCATotal: model.MoCAUnset, Sex: model.SexUnknown},
	}

	if v := strings.TrimSpace(r.FormValue("moca")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < model.MoCAMin || n > model.MoCAMax {
			return nil, cleanup, apperrors.ValidationField("moca", "MoCA total score must be between 0 and 30")
		}
		input.Patient.MoCATotal = n
	}
	if v := strings.TrimSpace(r.FormValue("age")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, cleanup, apperrors.ValidationField("age", "age must be a positive number")
		}
		input.Patient.Age = n
	}
	if v := strings.TrimSpace(r.FormValue("sex")); v != "" {
		input.Patient.Sex = v
	}

	if r.MultipartForm == nil {
		return input, cleanup, nil
	}

	headers := r.MultipartForm.File["files"]
	closers := make([]func() error, 0, len(headers))
	cleanup = func() {
		for _, c := range closers {
			_ = c()
		}
	}
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, cleanup, apperrors.ValidationField("files", "uploaded file could not be opened")
		}
		closers = append(closers, f.Close)
		input.Files = append(input.Files, model.CaseFile{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Content:     f,
		})
	}

	return input, cleanup, nil
}

// preservedFormValues echoes submitted metadata back into a failed form
// render. Unset optional fields come back blank, not as sentinel values.
func preservedFormValues(input *model.SubmissionInput) map[string]any {
	if input == nil {
		return map[string]any{}
	}
	vals := map[string]any{
		"FormMoCA": "",
		"FormAge":  "",
		"FormSex":  input.Patient.Sex,
	}
	if input.Patient.HasMoCA() {
		vals["FormMoCA"] = strconv.Itoa(input.Patient.MoCATotal)
	}
	if input.Patient.HasAge() {
		vals["FormAge"] = strconv.Itoa(input.Patient.Age)
	}
	return vals
}

// CaseSubmit handles the new-case submission form.
// POST /cases.
func (h *UIHandlers) CaseSubmit(w http.ResponseWriter, r *http.Request) {
	input, cleanup, err := parseSubmissionForm(r)
	defer cleanup()
	if err == nil {
		var sess *model.CaseSession
		sess, err = h.Cases.Submit(r.Context(), input)
		if err == nil {
			h.redirectToCase(w, r, sess.ID)
			return
		}
	}

	h.logger().WarnContext(r.Context(), "case submission rejected", "error", err)
	data := preservedFormValues(input)
	h.populateRecentCases(r.Context(), data)
	RenderError(ErrorOpts{
		W: w, R: r,
		Err:      err,
		Renderer: h.renderDashboardPage,
		PageMeta: PageMeta{Title: "NeuroTriage - Dashboard", PageTitle: "Dashboard", CurrentPage: PageHome},
		Data:     data,
	})
}

// DemoStart launches a demo analysis with a bundled dataset.
// POST /demo and POST /demo/pathology.
func (h *UIHandlers) DemoStart(kind service.DemoKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := h.Cases.StartDemo(r.Context(), kind)
		if err != nil {
			h.logger().ErrorContext(r.Context(), "demo submission failed", "error", err)
			data := map[string]any{}
			h.populateRecentCases(r.Context(), data)
			RenderError(ErrorOpts{
				W: w, R: r,
				Err:      err,
				Renderer: h.renderDashboardPage,
				PageMeta: PageMeta{Title: "NeuroTriage - Dashboard", PageTitle: "Dashboard", CurrentPage: PageHome},
				Data:     data,
			})
			return
		}
		h.redirectToCase(w, r, sess.ID)
	}
}

func (h *UIHandlers) redirectToCase(w http.ResponseWriter, r *http.Request, caseID string) {
	target := "/cases/" + caseID
	if IsHTMX(r) {
		HTMX(w).Redirect(target)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// loadCase fetches a session by path ID, rendering NotFound when missing.
// Returns nil when a response has already been written.
func (h *UIHandlers) loadCase(w http.ResponseWriter, r *http.Request) *model.CaseSession {
	id := r.PathValue("id")
	if id == "" {
		h.NotFound(w, r)
		return nil
	}
	sess, err := h.Cases.Get(r.Context(), id)
	if err != nil {
		if apperrors.IsNotFound(err) {
			h.NotFound(w, r)
			return nil
		}
		h.logger().ErrorContext(r.Context(), "failed to load case", "case_id", id, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return nil
	}
	return sess
}

// caseData builds the common template fields for a case session.
func caseData(sess *model.CaseSession) map[string]any {
	return map[string]any{
		"Case":     sess,
		"CaseID":   sess.ID,
		"State":    sess.State(),
		"Progress": sess.Progress(),
		"Stages":   stageViews(sess.Status),
		"Settled":  sess.Phase == model.PhaseSettled,
	}
}

// CaseView serves the analysis progress page for a case.
// GET /cases/{id}.
func (h *UIHandlers) CaseView(w http.ResponseWriter, r *http.Request) {
	sess := h.loadCase(w, r)
	if sess == nil {
		return
	}

	data := basePageData(r, PageMeta{
		Title:       "NeuroTriage - Case " + shortID(sess.ID),
		PageTitle:   "Case " + shortID(sess.ID),
		CurrentPage: PageCase,
	})
	for k, v := range caseData(sess) {
		data[k] = v
	}
	h.renderDashboardPage(w, r, data)
}

// CaseStatusFragment serves the polled pipeline status panel.
// GET /cases/{id}/status.
//
// The fragment is requested by htmx on a fixed interval. Once the case has
// settled the handler answers with StopPollingStatus so the browser stops
// polling; the rendered fragment then links to the results views.
func (h *UIHandlers) CaseStatusFragment(w http.ResponseWriter, r *http.Request) {
	sess := h.loadCase(w, r)
	if sess == nil {
		return
	}

	data := basePageData(r, PageMeta{})
	for k, v := range caseData(sess) {
		data[k] = v
	}

	status := 0
	if sess.Phase == model.PhaseSettled && IsHTMX(r) {
		status = StopPollingStatus
	}
	h.renderFragment(w, r, fragmentRenderOptions{
		Template:   "case-status-fragment",
		Data:       data,
		StatusCode: status,
	})
}

// CaseCancel stops polling for a case without discarding its last state.
// POST /cases/{id}/cancel.
func (h *UIHandlers) CaseCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.NotFound(w, r)
		return
	}
	if err := h.Cases.Cancel(r.Context(), id); err != nil {
		if apperrors.IsNotFound(err) {
			h.NotFound(w, r)
			return
		}
		h.logger().ErrorContext(r.Context(), "failed to cancel case", "case_id", id, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	triggerToast(w, "Analysis monitoring stopped.", "info")
	h.redirectToCase(w, r, id)
}

// CaseResubmit re-runs the analysis for an existing case with a fresh upload.
// POST /cases/{id}/resubmit.
func (h *UIHandlers) CaseResubmit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.NotFound(w, r)
		return
	}

	input, cleanup, err := parseSubmissionForm(r)
	defer cleanup()
	if err == nil {
		var sess *model.CaseSession
		sess, err = h.Cases.Resubmit(r.Context(), id, input)
		if err == nil {
			h.redirectToCase(w, r, sess.ID)
			return
		}
	}
	if apperrors.IsNotFound(err) {
		h.NotFound(w, r)
		return
	}

	h.logger().WarnContext(r.Context(), "case resubmission rejected", "case_id", id, "error", err)
	RenderError(ErrorOpts{
		W: w, R: r,
		Err:      err,
		Renderer: h.renderDashboardPage,
		PageMeta: PageMeta{Title: "NeuroTriage - Case " + shortID(id), PageTitle: "Case " + shortID(id), CurrentPage: PageCase},
		Data:     preservedFormValues(input),
	})
}

// shortID abbreviates a case UUID for page titles.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
