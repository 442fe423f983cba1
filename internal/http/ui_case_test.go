package httpx

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeHak0/Neuro-Triage/internal/domain/model"
	apperrors "github.com/LeHak0/Neuro-Triage/internal/errors"
	"github.com/LeHak0/Neuro-Triage/internal/service"
)

// stubCases is a hand-written CasesService double.
type stubCases struct {
	sessions  map[string]*model.CaseSession
	submitted *model.SubmissionInput
	submitErr error
	session   *model.CaseSession
	recentErr error
	cancelled []string
	polling   bool
}

func (s *stubCases) Submit(_ context.Context, input *model.SubmissionInput) (*model.CaseSession, error) {
	s.submitted = input
	if s.submitErr != nil {
		return nil, s.submitErr
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}
	return s.session, nil
}

func (s *stubCases) Resubmit(_ context.Context, caseID string, input *model.SubmissionInput) (*model.CaseSession, error) {
	s.submitted = input
	if s.submitErr != nil {
		return nil, s.submitErr
	}
	if _, ok := s.sessions[caseID]; !ok {
		return nil, apperrors.NotFound("case not found")
	}
	return s.session, nil
}

func (s *stubCases) StartDemo(context.Context, service.DemoKind) (*model.CaseSession, error) {
	if s.submitErr != nil {
		return nil, s.submitErr
	}
	return s.session, nil
}

func (s *stubCases) Get(_ context.Context, caseID string) (*model.CaseSession, error) {
	sess, ok := s.sessions[caseID]
	if !ok {
		return nil, apperrors.NotFound("case not found")
	}
	return sess, nil
}

func (s *stubCases) Recent(context.Context, int) ([]*model.CaseSession, error) {
	if s.recentErr != nil {
		return nil, s.recentErr
	}
	out := make([]*model.CaseSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out, nil
}

func (s *stubCases) Cancel(_ context.Context, caseID string) error {
	if _, ok := s.sessions[caseID]; !ok {
		return apperrors.NotFound("case not found")
	}
	s.cancelled = append(s.cancelled, caseID)
	return nil
}

func (s *stubCases) Polling(string) bool { return s.polling }

// stubTrials is a hand-written TrialsService double.
type stubTrials struct {
	trials []model.Trial
	err    error
}

func (s *stubTrials) ForCase(context.Context, *model.CaseSession) ([]model.Trial, error) {
	return s.trials, s.err
}

func testPatient() model.PatientMeta {
	return model.PatientMeta{MoCATotal: 22, Age: 68, Sex: model.SexFemale}
}

func runningSession(id string) *model.CaseSession {
	sess := model.NewCaseSession(id, "job-1", testPatient(), []string{"t1.nii.gz"}, time.Now())
	sess.ApplyStatus("job-1", model.JobStatus{
		JobID:    "job-1",
		Status:   model.JobStateRunning,
		Progress: 40,
		Agents: map[string]model.StageStatus{
			"Ingestion_QC_Agent":    {Status: model.StageDone},
			"Imaging_Feature_Agent": {Status: model.StageRunning},
		},
	}, time.Now())
	return sess
}

func completedSession(t *testing.T, id string) *model.CaseSession {
	t.Helper()
	sess := model.NewCaseSession(id, "job-1", testPatient(), []string{"t1.nii.gz"}, time.Now())
	env := &model.ResultEnvelope{
		JobID:  "job-1",
		Status: model.JobStateCompleted,
		Result: []byte(`{
			"triage": {"risk_tier": "MODERATE", "confidence_score": 0.78, "key_rationale": ["volume loss"]},
			"note": {
				"patient_info": {"age": 68, "sex": "F", "moca_total": 22},
				"imaging_findings": {
					"hippocampal_volumes_ml": {"left_ml": 2.81, "right_ml": 3.05, "asymmetry_ml": 0.24},
					"mta_score": 2,
					"percentiles": {"left_pct": 14, "right_pct": 31}
				},
				"recommendations": ["Refer to memory clinic"],
				"limitations": ["Single time point"]
			},
			"citations": [{"title": "Hippocampal atrophy in MCI", "source": "PubMed", "strength": "strong"}]
		}`),
	}
	require.True(t, sess.ApplyResult("job-1", env, time.Now()))
	return sess
}

func newCaseHandlers(t *testing.T, cases *stubCases) *UIHandlers {
	t.Helper()
	h := CreateUIHandlersForTest(t)
	if h == nil {
		t.Fatal("cannot create UI handlers for test")
	}
	h.Cases = cases
	h.Trials = &stubTrials{}
	return h
}

// multipartBody builds a submission form body with one file part.
func multipartBody(t *testing.T, fields map[string]string, fileNames ...string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, name := range fileNames {
		fw, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = io.WriteString(fw, "scan-bytes")
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestCaseSubmit_RedirectsToCase(t *testing.T) {
	cases := &stubCases{session: model.NewCaseSession("case-1", "job-1", testPatient(), []string{"t1.nii.gz"}, time.Now())}
	h := newCaseHandlers(t, cases)

	body, contentType := multipartBody(t, map[string]string{"moca": "22", "age": "68", "sex": "F"}, "t1.nii.gz")
	r := httptest.NewRequest(http.MethodPost, "/cases", body)
	r.Header.Set("Content-Type", contentType)
	r.Header.Set("Hx-Request", "true")
	w := httptest.NewRecorder()

	h.CaseSubmit(w, r)

	assert.Equal(t, "/cases/case-1", w.Header().Get("Hx-Redirect"))
	require.NotNil(t, cases.submitted)
	assert.Equal(t, 22, cases.submitted.Patient.MoCATotal)
	assert.Equal(t, 68, cases.submitted.Patient.Age)
	assert.Equal(t, "F", cases.submitted.Patient.Sex)
	require.Len(t, cases.submitted.Files, 1)
	assert.Equal(t, "t1.nii.gz", cases.submitted.Files[0].Filename)
}

func TestCaseSubmit_OptionalMetadataLeftBlank(t *testing.T) {
	cases := &stubCases{session: model.NewCaseSession("case-1", "job-1", testPatient(), []string{"t1.nii.gz"}, time.Now())}
	h := newCaseHandlers(t, cases)

	body, contentType := multipartBody(t, map[string]string{"moca": "", "age": "", "sex": ""}, "t1.nii.gz")
	r := httptest.NewRequest(http.MethodPost, "/cases", body)
	r.Header.Set("Content-Type", contentType)
	r.Header.Set("Hx-Request", "true")
	w := httptest.NewRecorder()

	h.CaseSubmit(w, r)

	assert.Equal(t, "/cases/case-1", w.Header().Get("Hx-Redirect"), "score and age are optional")
	require.NotNil(t, cases.submitted)
	assert.False(t, cases.submitted.Patient.HasMoCA())
	assert.False(t, cases.submitted.Patient.HasAge())
	assert.Equal(t, model.SexUnknown, cases.submitted.Patient.Sex)
}

func TestCaseSubmit_RejectsNonPositiveAge(t *testing.T) {
	cases := &stubCases{}
	h := newCaseHandlers(t, cases)

	body, contentType := multipartBody(t, map[string]string{"moca": "22", "age": "0", "sex": "F"}, "t1.nii.gz")
	r := httptest.NewRequest(http.MethodPost, "/cases", body)
	r.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	h.CaseSubmit(w, r)

	assert.Empty(t, w.Header().Get("Hx-Redirect"))
	assert.Contains(t, w.Body.String(), "age must be a positive number")
}

func TestCaseSubmit_PlainFormUsesSeeOther(t *testing.T) {
	cases := &stubCases{session: model.NewCaseSession("case-1", "job-1", testPatient(), nil, time.Now())}
	h := newCaseHandlers(t, cases)

	body, contentType := multipartBody(t, map[string]string{"moca": "22", "age": "68", "sex": "F"}, "t1.nii.gz")
	r := httptest.NewRequest(http.MethodPost, "/cases", body)
	r.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	h.CaseSubmit(w, r)

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/cases/case-1", w.Header().Get("Location"))
}

func TestCaseSubmit_ValidationErrorRerendersForm(t *testing.T) {
	cases := &stubCases{}
	h := newCaseHandlers(t, cases)

	// No files attached: the submission gate rejects before any redirect.
	body, contentType := multipartBody(t, map[string]string{"moca": "22", "age": "68", "sex": "F"})
	r := httptest.NewRequest(http.MethodPost, "/cases", body)
	r.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	h.CaseSubmit(w, r)

	assert.Empty(t, w.Header().Get("Hx-Redirect"))
	assert.Contains(t, w.Body.String(), errMsgFixBelow)
}

func TestCaseSubmit_BackendRejection(t *testing.T) {
	cases := &stubCases{submitErr: apperrors.Submission(422, "unsupported file format")}
	h := newCaseHandlers(t, cases)

	body, contentType := multipartBody(t, map[string]string{"moca": "22", "age": "68", "sex": "F"}, "t1.nii.gz")
	r := httptest.NewRequest(http.MethodPost, "/cases", body)
	r.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	h.CaseSubmit(w, r)

	assert.Contains(t, w.Body.String(), "unsupported file format")
}

func TestCaseView_RendersPipeline(t *testing.T) {
	sess := runningSession("case-1")
	h := newCaseHandlers(t, &stubCases{sessions: map[string]*model.CaseSession{"case-1": sess}})

	r := httptest.NewRequest(http.MethodGet, "/cases/case-1", nil)
	r.SetPathValue("id", "case-1")
	w := httptest.NewRecorder()

	h.CaseView(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, ContainsAll(body, []string{"Ingestion QC", "Imaging Feature", "40%"}), body)
}

func TestCaseStatusFragment_Running(t *testing.T) {
	sess := runningSession("case-1")
	h := newCaseHandlers(t, &stubCases{sessions: map[string]*model.CaseSession{"case-1": sess}})

	r := httptest.NewRequest(http.MethodGet, "/cases/case-1/status", nil)
	r.SetPathValue("id", "case-1")
	r.Header.Set("Hx-Request", "true")
	w := httptest.NewRecorder()

	h.CaseStatusFragment(w, r)

	assert.Equal(t, http.StatusOK, w.Code, "in-flight cases keep polling")
	assert.Contains(t, w.Header().Get("Cache-Control"), "no-store")
	assert.Contains(t, w.Body.String(), "Imaging Feature")
}

func TestCaseStatusFragment_SettledStopsPolling(t *testing.T) {
	sess := completedSession(t, "case-1")
	h := newCaseHandlers(t, &stubCases{sessions: map[string]*model.CaseSession{"case-1": sess}})

	r := httptest.NewRequest(http.MethodGet, "/cases/case-1/status", nil)
	r.SetPathValue("id", "case-1")
	r.Header.Set("Hx-Request", "true")
	w := httptest.NewRecorder()

	h.CaseStatusFragment(w, r)

	assert.Equal(t, StopPollingStatus, w.Code)
	assert.True(t, ContainsAll(w.Body.String(), []string{
		"Analysis complete",
		"/cases/case-1/results",
		"/cases/case-1/trials",
	}), w.Body.String())
}

func TestCaseStatusFragment_ResultUnavailable(t *testing.T) {
	sess := model.NewCaseSession("case-1", "job-1", testPatient(), nil, time.Now())
	require.True(t, sess.MarkResultUnavailable("job-1", "analysis result could not be retrieved", time.Now()))
	h := newCaseHandlers(t, &stubCases{sessions: map[string]*model.CaseSession{"case-1": sess}})

	r := httptest.NewRequest(http.MethodGet, "/cases/case-1/status", nil)
	r.SetPathValue("id", "case-1")
	r.Header.Set("Hx-Request", "true")
	w := httptest.NewRecorder()

	h.CaseStatusFragment(w, r)

	assert.Equal(t, StopPollingStatus, w.Code)
	assert.Contains(t, w.Body.String(), "analysis result could not be retrieved")
}

func TestCaseCancel(t *testing.T) {
	sess := runningSession("case-1")
	cases := &stubCases{sessions: map[string]*model.CaseSession{"case-1": sess}}
	h := newCaseHandlers(t, cases)

	r := httptest.NewRequest(http.MethodPost, "/cases/case-1/cancel", nil)
	r.SetPathValue("id", "case-1")
	r.Header.Set("Hx-Request", "true")
	w := httptest.NewRecorder()

	h.CaseCancel(w, r)

	assert.Equal(t, []string{"case-1"}, cases.cancelled)
	assert.Equal(t, "/cases/case-1", w.Header().Get("Hx-Redirect"))
}

func TestCaseView_MissingCaseRenders404(t *testing.T) {
	h := newCaseHandlers(t, &stubCases{})

	r := httptest.NewRequest(http.MethodGet, "/cases/missing", nil)
	r.SetPathValue("id", "missing")
	r.Header.Set("Accept", "text/html")
	w := httptest.NewRecorder()

	h.CaseView(w, r)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
