package model

import (
	"encoding/json"
	"time"
)

// Phase tracks where a case session sits in its lifecycle on our side,
// independent of the backend's job state.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhasePolling Phase = "polling"
	PhaseSettled Phase = "settled"
)

// CaseSession is the server-side record of one analysis run: the job
// handle returned at submission, the latest status snapshot, and the
// final result once the job settles. A session is owned by exactly one
// poll loop at a time; resubmitting replaces the handle and any status
// still in flight for the old handle is discarded.
type CaseSession struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Patient   PatientMeta `json:"patient"`
	FileNames []string    `json:"file_names"`

	JobID string `json:"job_id"`
	Phase Phase  `json:"phase"`

	Status    *JobStatus      `json:"status,omitempty"`
	Result    *ResultView     `json:"result,omitempty"`
	ResultRaw json.RawMessage `json:"result_raw,omitempty"`
	ResultErr string          `json:"result_err,omitempty"`

	Trials []Trial `json:"trials,omitempty"`
}

// NewCaseSession starts a fresh session for a submitted case.
func NewCaseSession(id, jobID string, patient PatientMeta, fileNames []string, now time.Time) *CaseSession {
	return &CaseSession{
		ID:        id,
		CreatedAt: now,
		UpdatedAt: now,
		Patient:   patient,
		FileNames: fileNames,
		JobID:     jobID,
		Phase:     PhasePolling,
	}
}

// Reset rebinds the session to a new job handle, discarding all state
// from the previous run. Status updates carrying the old handle are
// rejected by ApplyStatus after this point.
func (c *CaseSession) Reset(jobID string, patient PatientMeta, fileNames []string, now time.Time) {
	c.Patient = patient
	c.FileNames = fileNames
	c.JobID = jobID
	c.Phase = PhasePolling
	c.Status = nil
	c.Result = nil
	c.ResultRaw = nil
	c.ResultErr = ""
	c.Trials = nil
	c.UpdatedAt = now
}

// ApplyStatus replaces the session's status snapshot wholesale. It
// returns false, leaving the session untouched, when the snapshot
// belongs to a superseded job handle or the session already settled.
// Progress is clamped to [0,100] and never allowed to move backwards,
// so the displayed bar is monotone even if the backend regresses.
func (c *CaseSession) ApplyStatus(jobID string, st JobStatus, now time.Time) bool {
	if jobID != c.JobID || c.Phase == PhaseSettled {
		return false
	}
	st.Progress = ClampProgress(st.Progress)
	if c.Status != nil && st.Progress < c.Status.Progress {
		st.Progress = c.Status.Progress
	}
	c.Status = &st
	c.UpdatedAt = now
	return true
}

// ApplyResult records the outcome of the one-shot result fetch and moves
// the session to its terminal phase. Like ApplyStatus it is guarded
// against superseded handles.
func (c *CaseSession) ApplyResult(jobID string, env *ResultEnvelope, now time.Time) bool {
	if jobID != c.JobID || c.Phase == PhaseSettled {
		return false
	}
	c.Phase = PhaseSettled
	c.UpdatedAt = now
	if env == nil {
		return true
	}
	c.ResultErr = env.Error
	if len(env.Result) > 0 {
		c.ResultRaw = env.Result
		c.Result = ProjectResult(c.JobID, env.Result)
	}
	return true
}

// MarkResultUnavailable settles the session when the result fetch itself
// failed, so the UI can show a "result unavailable" state instead of
// polling forever.
func (c *CaseSession) MarkResultUnavailable(jobID, reason string, now time.Time) bool {
	if jobID != c.JobID || c.Phase == PhaseSettled {
		return false
	}
	c.Phase = PhaseSettled
	c.ResultErr = reason
	c.UpdatedAt = now
	return true
}

// TrialQuery derives a backend trial-search request from the settled
// session. It returns nil until a projected result is available.
func (c *CaseSession) TrialQuery() *TrialQuery {
	if c.Result == nil {
		return nil
	}
	var findings json.RawMessage
	if len(c.ResultRaw) > 0 {
		var doc struct {
			Note struct {
				ImagingFindings json.RawMessage `json:"imaging_findings"`
			} `json:"note"`
		}
		if err := json.Unmarshal(c.ResultRaw, &doc); err == nil {
			findings = doc.Note.ImagingFindings
		}
	}
	q := &TrialQuery{
		RiskTier:        string(c.Triage().RiskTier),
		ImagingFindings: findings,
		Age:             c.Patient.Age,
		Sex:             c.Patient.Sex,
	}
	// Unrecorded metadata stays off the wire instead of leaking the
	// sentinel into the search.
	if c.Patient.HasMoCA() {
		q.MoCAScore = c.Patient.MoCATotal
	}
	return q
}

// Triage returns the projected triage block, defaulted when the session
// has not settled with a result yet.
func (c *CaseSession) Triage() TriageView {
	if c.Result == nil {
		return TriageView{RiskTier: RiskUnknown}
	}
	return c.Result.Triage
}

// Progress returns the display progress for the session: the latest
// clamped snapshot value, or 100 once settled with a result.
func (c *CaseSession) Progress() int {
	if c.Phase == PhaseSettled && c.Result != nil {
		return 100
	}
	if c.Status == nil {
		return 0
	}
	return c.Status.Progress
}

// State returns the latest backend job state, defaulting to queued
// before the first poll tick lands.
func (c *CaseSession) State() JobState {
	if c.Status == nil {
		if c.Phase == PhaseSettled {
			return JobStateFailed
		}
		return JobStateQueued
	}
	return c.Status.Status
}
