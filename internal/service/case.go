package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/LeHak0/Neuro-Triage/internal/backend"
	"github.com/LeHak0/Neuro-Triage/internal/core"
	"github.com/LeHak0/Neuro-Triage/internal/data"
	"github.com/LeHak0/Neuro-Triage/internal/domain/model"
	apperrors "github.com/LeHak0/Neuro-Triage/internal/errors"
	"github.com/LeHak0/Neuro-Triage/internal/observability/metrics"
	"github.com/LeHak0/Neuro-Triage/internal/observability/statsd"
)

// CaseServiceOptions groups dependencies for CaseService.
type CaseServiceOptions struct {
	Backend backend.API
	Cases   core.CaseRepository
	Poller  *Poller
	Logger  *slog.Logger
	Metrics statsd.Sink
	Time    data.TimeProvider
}

// CaseService orchestrates the case lifecycle: submission to the
// analysis backend, session bookkeeping, and handing settled cases to
// the trial search. Status progression itself is driven by the Poller.
type CaseService struct {
	backend backend.API
	cases   core.CaseRepository
	poller  *Poller
	logger  *slog.Logger
	metrics statsd.Sink
	time    data.TimeProvider
}

// NewCaseService constructs a new CaseService.
func NewCaseService(opts CaseServiceOptions) *CaseService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tp := opts.Time
	if tp == nil {
		tp = &data.RealTimeProvider{}
	}
	return &CaseService{
		backend: opts.Backend,
		cases:   opts.Cases,
		poller:  opts.Poller,
		logger:  logger,
		metrics: opts.Metrics,
		time:    tp,
	}
}

// Submit validates and uploads a case, creates its session, and starts
// the poll loop. Validation failures surface before any network call.
func (s *CaseService) Submit(ctx context.Context, in *model.SubmissionInput) (*model.CaseSession, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	jobID, err := s.backend.Submit(ctx, in)
	if err != nil {
		metrics.EmitCaseEvent(s.metrics, metrics.CaseEvent{
			Transition: "submitted",
			Result:     metrics.ResultError,
			Err:        err,
		})
		return nil, err
	}

	fileNames := make([]string, len(in.Files))
	for i, f := range in.Files {
		fileNames[i] = f.Filename
	}
	return s.startSession(ctx, jobID, in.Patient, fileNames)
}

// Resubmit starts a new run on an existing session, superseding any
// in-flight poll loop. Status updates from the old job handle are
// discarded once the new handle is bound.
func (s *CaseService) Resubmit(ctx context.Context, caseID string, in *model.SubmissionInput) (*model.CaseSession, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	sess, err := s.Get(ctx, caseID)
	if err != nil {
		return nil, err
	}

	jobID, err := s.backend.Submit(ctx, in)
	if err != nil {
		return nil, err
	}

	fileNames := make([]string, len(in.Files))
	for i, f := range in.Files {
		fileNames[i] = f.Filename
	}
	sess.Reset(jobID, in.Patient, fileNames, s.time.Now())
	if err := s.cases.Save(ctx, sess); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "save case session")
	}

	s.poller.Start(ctx, sess.ID, jobID)
	s.logger.Info("case resubmitted", "case_id", sess.ID, "job_id", jobID)
	return sess, nil
}

// DemoKind selects which bundled demo case to run.
type DemoKind string

const (
	DemoNormal    DemoKind = "normal"
	DemoPathology DemoKind = "pathology"
)

// demoPatient is the metadata baked into the backend demo datasets.
var demoPatient = model.PatientMeta{MoCATotal: 22, Age: 68, Sex: model.SexFemale}

// StartDemo runs one of the backend's bundled demo cases. No upload
// happens; the backend serves its own sample imaging.
func (s *CaseService) StartDemo(ctx context.Context, kind DemoKind) (*model.CaseSession, error) {
	var (
		jobID string
		err   error
	)
	switch kind {
	case DemoPathology:
		jobID, err = s.backend.DemoPathology(ctx)
	default:
		jobID, err = s.backend.DemoSubmit(ctx)
	}
	if err != nil {
		return nil, err
	}
	return s.startSession(ctx, jobID, demoPatient, []string{"demo dataset"})
}

func (s *CaseService) startSession(ctx context.Context, jobID string, patient model.PatientMeta, fileNames []string) (*model.CaseSession, error) {
	sess := model.NewCaseSession(uuid.New().String(), jobID, patient, fileNames, s.time.Now())
	if err := s.cases.Save(ctx, sess); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "save case session")
	}

	s.poller.Start(ctx, sess.ID, jobID)
	metrics.EmitCaseEvent(s.metrics, metrics.CaseEvent{
		Transition: "submitted",
		Result:     metrics.ResultSuccess,
	})
	s.logger.Info("case submitted", "case_id", sess.ID, "job_id", jobID, "files", len(fileNames))
	return sess, nil
}

// Get returns a case session by ID.
func (s *CaseService) Get(ctx context.Context, caseID string) (*model.CaseSession, error) {
	sess, err := s.cases.GetByID(ctx, caseID)
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			return nil, apperrors.NotFound("case not found")
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "load case session")
	}
	return sess, nil
}

// Recent returns the most recently updated sessions for the dashboard.
func (s *CaseService) Recent(ctx context.Context, limit int) ([]*model.CaseSession, error) {
	sessions, err := s.cases.Recent(ctx, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "list recent cases")
	}
	return sessions, nil
}

// Cancel stops the poll loop for a case without deleting the session.
// The session keeps its last observed status.
func (s *CaseService) Cancel(ctx context.Context, caseID string) error {
	if _, err := s.Get(ctx, caseID); err != nil {
		return err
	}
	s.poller.Stop(caseID)
	s.logger.Info("case polling cancelled", "case_id", caseID)
	return nil
}

// Polling reports whether the case still has an active poll loop.
func (s *CaseService) Polling(caseID string) bool {
	return s.poller.Polling(caseID)
}
