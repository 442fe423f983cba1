// Package backend is the HTTP client for the CogniTriage analysis API.
// It owns the wire formats (multipart submission, JSON envelopes) and
// maps transport failures into the application error taxonomy; callers
// never see raw *http.Response values.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/LeHak0/Neuro-Triage/config"
	"github.com/LeHak0/Neuro-Triage/internal/domain/model"
	apperrors "github.com/LeHak0/Neuro-Triage/internal/errors"
)

// API is the backend surface the rest of the application depends on.
// Split from the concrete client so services and handlers can be tested
// against stubs.
type API interface {
	Submit(ctx context.Context, in *model.SubmissionInput) (string, error)
	DemoSubmit(ctx context.Context) (string, error)
	DemoPathology(ctx context.Context) (string, error)
	Status(ctx context.Context, jobID string) (*model.JobStatus, error)
	Result(ctx context.Context, jobID string) (*model.ResultEnvelope, error)
	Trials(ctx context.Context, q *model.TrialQuery) ([]model.Trial, error)
	Healthz(ctx context.Context) error
}

// Client talks to the analysis backend over HTTP. Submissions stream
// multipart bodies and get a longer timeout than the small JSON calls.
type Client struct {
	baseURL string
	http    *http.Client
	submit  *http.Client
	logger  *slog.Logger
}

var _ API = (*Client)(nil)

// NewClient builds a client from backend configuration.
func NewClient(cfg config.BackendConfig, logger *slog.Logger) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.RequestTimeout},
		submit:  &http.Client{Timeout: cfg.SubmitTimeout},
		logger:  logger,
	}
}

// submitResponse is the envelope returned by the submission endpoints.
type submitResponse struct {
	JobID string `json:"job_id"`
}

// errorResponse is the backend's error body shape.
type errorResponse struct {
	Detail string `json:"detail"`
}

// Submit uploads a case for analysis and returns the backend job handle.
// The input is validated before any network traffic happens.
func (c *Client) Submit(ctx context.Context, in *model.SubmissionInput) (string, error) {
	if err := in.Validate(); err != nil {
		return "", err
	}

	body, contentType, err := encodeSubmission(in)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeSubmission, "encode submission")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/submit", body)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeSubmission, "build submit request")
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.submit.Do(req)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeSubmission, "submit case")
	}
	defer closeBody(resp, c.logger)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", apperrors.Submission(resp.StatusCode, readErrorDetail(resp, "submission rejected"))
	}

	var out submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeSubmission, "decode submit response")
	}
	if out.JobID == "" {
		return "", apperrors.Submission(resp.StatusCode, "submit response missing job_id")
	}
	return out.JobID, nil
}

// DemoSubmit starts an analysis run on the backend's bundled normal demo
// case, with no file upload.
func (c *Client) DemoSubmit(ctx context.Context) (string, error) {
	return c.demoStart(ctx, "/api/demo-submit")
}

// DemoPathology starts a run on the bundled pathological demo case.
func (c *Client) DemoPathology(ctx context.Context) (string, error) {
	return c.demoStart(ctx, "/api/demo-pathology")
}

func (c *Client) demoStart(ctx context.Context, path string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, nil)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeSubmission, "build demo request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeSubmission, "start demo case")
	}
	defer closeBody(resp, c.logger)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", apperrors.Submission(resp.StatusCode, readErrorDetail(resp, "demo submission rejected"))
	}

	var out submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeSubmission, "decode demo response")
	}
	if out.JobID == "" {
		return "", apperrors.Submission(resp.StatusCode, "demo response missing job_id")
	}
	return out.JobID, nil
}

// Status fetches the current job snapshot. Failures are poll errors: the
// caller's loop logs them and keeps ticking.
func (c *Client) Status(ctx context.Context, jobID string) (*model.JobStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/status/"+url.PathEscape(jobID), nil)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodePoll, "build status request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodePoll, "fetch status")
	}
	defer closeBody(resp, c.logger)

	if resp.StatusCode == http.StatusNotFound {
		return nil, apperrors.NotFound(fmt.Sprintf("job %s not found", jobID))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.Poll(readErrorDetail(resp, fmt.Sprintf("status fetch returned %d", resp.StatusCode)))
	}

	var st model.JobStatus
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodePoll, "decode status response")
	}
	if !st.Status.IsValid() {
		return nil, apperrors.PayloadShape(fmt.Sprintf("unknown job status %q", st.Status))
	}
	return &st, nil
}

// Result fetches the final result envelope for a settled job.
func (c *Client) Result(ctx context.Context, jobID string) (*model.ResultEnvelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/result/"+url.PathEscape(jobID), nil)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeResultFetch, "build result request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeResultFetch, "fetch result")
	}
	defer closeBody(resp, c.logger)

	if resp.StatusCode == http.StatusNotFound {
		return nil, apperrors.NotFound(fmt.Sprintf("job %s not found", jobID))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.ResultFetch(resp.StatusCode, readErrorDetail(resp, fmt.Sprintf("result fetch returned %d", resp.StatusCode)))
	}

	var env model.ResultEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeResultFetch, "decode result envelope")
	}
	return &env, nil
}

// Trials queries the backend trial-matching endpoint for a settled case.
func (c *Client) Trials(ctx context.Context, q *model.TrialQuery) ([]model.Trial, error) {
	payload, err := json.Marshal(q)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "encode trial query")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/trials", bytes.NewReader(payload))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "build trials request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "fetch trials")
	}
	defer closeBody(resp, c.logger)

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.Internal(readErrorDetail(resp, fmt.Sprintf("trials fetch returned %d", resp.StatusCode)))
	}

	var out model.TrialList
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "decode trials response")
	}
	if out.Trials == nil {
		out.Trials = []model.Trial{}
	}
	return out.Trials, nil
}

// Healthz probes the backend liveness endpoint.
func (c *Client) Healthz(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "build health request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "backend unreachable")
	}
	defer closeBody(resp, c.logger)

	if resp.StatusCode != http.StatusOK {
		return apperrors.Internal(fmt.Sprintf("backend health returned %d", resp.StatusCode))
	}
	return nil
}

// encodeSubmission builds the multipart body the backend expects: one
// "files" part per MRI file plus "moca" and "meta" JSON text fields.
// Unrecorded optional metadata is left out so the backend applies its
// own defaults.
func encodeSubmission(in *model.SubmissionInput) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, f := range in.Files {
		part, err := w.CreateFormFile("files", f.Filename)
		if err != nil {
			return nil, "", fmt.Errorf("create file part %q: %w", f.Filename, err)
		}
		if f.Content != nil {
			if _, err := io.Copy(part, f.Content); err != nil {
				return nil, "", fmt.Errorf("copy file %q: %w", f.Filename, err)
			}
		}
	}

	if in.Patient.HasMoCA() {
		moca, err := json.Marshal(map[string]int{"total": in.Patient.MoCATotal})
		if err != nil {
			return nil, "", fmt.Errorf("encode moca field: %w", err)
		}
		if err := w.WriteField("moca", string(moca)); err != nil {
			return nil, "", fmt.Errorf("write moca field: %w", err)
		}
	}

	metaFields := map[string]any{"sex": in.Patient.Sex}
	if in.Patient.HasAge() {
		metaFields["age"] = in.Patient.Age
	}
	meta, err := json.Marshal(metaFields)
	if err != nil {
		return nil, "", fmt.Errorf("encode meta field: %w", err)
	}
	if err := w.WriteField("meta", string(meta)); err != nil {
		return nil, "", fmt.Errorf("write meta field: %w", err)
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("finalize multipart body: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

// readErrorDetail pulls the backend's {"detail": ...} message out of an
// error response, falling back to the given default.
func readErrorDetail(resp *http.Response, fallback string) string {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil || len(raw) == 0 {
		return fallback
	}
	var body errorResponse
	if err := json.Unmarshal(raw, &body); err == nil && body.Detail != "" {
		return body.Detail
	}
	return fallback
}

func closeBody(resp *http.Response, logger *slog.Logger) {
	if _, err := io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)); err != nil && logger != nil {
		logger.Debug("drain response body", "error", err)
	}
	if err := resp.Body.Close(); err != nil && logger != nil {
		logger.Debug("close response body", "error", err)
	}
}
