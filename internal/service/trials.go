package service

import (
	"context"
	"log/slog"

	"github.com/LeHak0/Neuro-Triage/internal/backend"
	"github.com/LeHak0/Neuro-Triage/internal/core"
	"github.com/LeHak0/Neuro-Triage/internal/domain/model"
	apperrors "github.com/LeHak0/Neuro-Triage/internal/errors"
)

// TrialServiceOptions groups dependencies for TrialService.
type TrialServiceOptions struct {
	Backend backend.API
	Cases   core.CaseRepository
	Logger  *slog.Logger
}

// TrialService matches settled cases against clinical trials via the
// backend. Matches are cached on the session so repeated page views do
// not re-query.
type TrialService struct {
	backend backend.API
	cases   core.CaseRepository
	logger  *slog.Logger
}

// NewTrialService constructs a new TrialService.
func NewTrialService(opts TrialServiceOptions) *TrialService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &TrialService{
		backend: opts.Backend,
		cases:   opts.Cases,
		logger:  logger,
	}
}

// ForCase returns trial matches for a settled case, querying the backend
// on first access and serving the cached list afterwards.
func (s *TrialService) ForCase(ctx context.Context, sess *model.CaseSession) ([]model.Trial, error) {
	if sess.Trials != nil {
		return sess.Trials, nil
	}

	query := sess.TrialQuery()
	if query == nil {
		return nil, apperrors.Validation("trial matching requires a completed analysis")
	}

	trials, err := s.backend.Trials(ctx, query)
	if err != nil {
		return nil, err
	}

	sess.Trials = trials
	s.cacheTrials(ctx, sess.ID, sess.JobID, trials)
	s.logger.Info("trials matched", "case_id", sess.ID, "count", len(trials))
	return trials, nil
}

// cacheTrials persists the matches onto the stored session. It re-reads
// the session first: a resubmission may have rebound the case while the
// backend query was in flight, and writing the snapshot we loaded back
// would resurrect the old job handle. Caching is best-effort throughout;
// serving the fetched list matters more.
func (s *TrialService) cacheTrials(ctx context.Context, caseID, jobID string, trials []model.Trial) {
	fresh, err := s.cases.GetByID(ctx, caseID)
	if err != nil {
		s.logger.Warn("cache trial matches", "case_id", caseID, "error", err)
		return
	}
	if fresh.JobID != jobID {
		s.logger.Info("trial matches not cached, case was resubmitted", "case_id", caseID)
		return
	}
	fresh.Trials = trials
	if err := s.cases.Save(ctx, fresh); err != nil {
		s.logger.Warn("cache trial matches", "case_id", caseID, "error", err)
	}
}
