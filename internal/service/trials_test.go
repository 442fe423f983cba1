package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeHak0/Neuro-Triage/internal/data"
	"github.com/LeHak0/Neuro-Triage/internal/domain/model"
	apperrors "github.com/LeHak0/Neuro-Triage/internal/errors"
)

func settledSession(t *testing.T, repo *data.MemoryCaseRepo) *model.CaseSession {
	t.Helper()
	sess := model.NewCaseSession("case-1", "job-1", model.PatientMeta{MoCATotal: 22, Age: 68, Sex: model.SexFemale}, []string{"t1.nii.gz"}, time.Now())
	env := &model.ResultEnvelope{
		JobID:  "job-1",
		Status: model.JobStateCompleted,
		Result: []byte(`{"triage": {"risk_tier": "MODERATE"}, "note": {"imaging_findings": {"mta_score": 2}}}`),
	}
	require.True(t, sess.ApplyResult("job-1", env, time.Now()))
	require.NoError(t, repo.Save(context.Background(), sess))
	return sess
}

func TestTrialService_ForCase(t *testing.T) {
	backend := &stubBackend{trials: []model.Trial{{Title: "Donanemab follow-up", Phase: "III"}}}
	repo := data.NewMemoryCaseRepo()
	svc := NewTrialService(TrialServiceOptions{Backend: backend, Cases: repo, Logger: testLogger()})

	sess := settledSession(t, repo)

	trials, err := svc.ForCase(context.Background(), sess)
	require.NoError(t, err)
	require.Len(t, trials, 1)
	assert.Equal(t, "Donanemab follow-up", trials[0].Title)

	// Cached on the session: a second view serves without re-querying.
	got, err := repo.GetByID(context.Background(), sess.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Trials)

	cached, err := svc.ForCase(context.Background(), got)
	require.NoError(t, err)
	assert.Equal(t, trials, cached)
}

func TestTrialService_ForCase_RequiresResult(t *testing.T) {
	repo := data.NewMemoryCaseRepo()
	svc := NewTrialService(TrialServiceOptions{Backend: &stubBackend{}, Cases: repo, Logger: testLogger()})

	sess := model.NewCaseSession("case-1", "job-1", model.PatientMeta{MoCATotal: 22, Age: 68, Sex: model.SexFemale}, nil, time.Now())
	require.NoError(t, repo.Save(context.Background(), sess))

	_, err := svc.ForCase(context.Background(), sess)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestTrialService_ForCase_ResubmittedCaseNotOverwritten(t *testing.T) {
	backend := &stubBackend{trials: []model.Trial{{Title: "Lecanemab extension", Phase: "III"}}}
	repo := data.NewMemoryCaseRepo()
	svc := NewTrialService(TrialServiceOptions{Backend: backend, Cases: repo, Logger: testLogger()})

	sess := settledSession(t, repo)

	// While the trials query is in flight the case is resubmitted under a
	// new handle. The stale snapshot must not be written back.
	rebound, err := repo.GetByID(context.Background(), sess.ID)
	require.NoError(t, err)
	rebound.Reset("job-2", rebound.Patient, rebound.FileNames, time.Now())
	require.NoError(t, repo.Save(context.Background(), rebound))

	trials, err := svc.ForCase(context.Background(), sess)
	require.NoError(t, err)
	require.Len(t, trials, 1, "caller still gets the fetched list")

	got, err := repo.GetByID(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "job-2", got.JobID, "stored session keeps the new handle")
	assert.Nil(t, got.Trials)
	assert.Equal(t, model.PhasePolling, got.Phase)
}

func TestTrialService_ForCase_BackendError(t *testing.T) {
	backend := &stubBackend{trialsErr: apperrors.Internal("trials fetch returned 502")}
	repo := data.NewMemoryCaseRepo()
	svc := NewTrialService(TrialServiceOptions{Backend: backend, Cases: repo, Logger: testLogger()})

	sess := settledSession(t, repo)

	_, err := svc.ForCase(context.Background(), sess)
	require.Error(t, err)

	got, err := repo.GetByID(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Trials, "failed lookups are not cached")
}
