package data

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeHak0/Neuro-Triage/internal/domain/model"
)

func memSession(id, jobID string, updatedAt time.Time) *model.CaseSession {
	sess := model.NewCaseSession(id, jobID, model.PatientMeta{MoCATotal: 20, Age: 70, Sex: model.SexMale}, []string{"t1.nii.gz"}, updatedAt)
	sess.UpdatedAt = updatedAt
	return sess
}

func TestMemoryCaseRepo_SaveAndGet(t *testing.T) {
	repo := NewMemoryCaseRepo()
	ctx := context.Background()
	now := time.Now()

	sess := memSession("case-1", "job-1", now)
	require.NoError(t, repo.Save(ctx, sess))

	got, err := repo.GetByID(ctx, "case-1")
	require.NoError(t, err)
	assert.Equal(t, "case-1", got.ID)
	assert.Equal(t, "job-1", got.JobID)
	assert.Equal(t, model.PhasePolling, got.Phase)
}

func TestMemoryCaseRepo_GetReturnsCopy(t *testing.T) {
	repo := NewMemoryCaseRepo()
	ctx := context.Background()
	now := time.Now()

	sess := memSession("case-1", "job-1", now)
	sess.ApplyStatus("job-1", model.JobStatus{Status: model.JobStateRunning, Progress: 30}, now)
	require.NoError(t, repo.Save(ctx, sess))

	got, err := repo.GetByID(ctx, "case-1")
	require.NoError(t, err)
	got.Status.Progress = 99

	again, err := repo.GetByID(ctx, "case-1")
	require.NoError(t, err)
	assert.Equal(t, 30, again.Status.Progress, "mutating a returned session must not affect the store")
}

func TestMemoryCaseRepo_GetMissing(t *testing.T) {
	repo := NewMemoryCaseRepo()

	_, err := repo.GetByID(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMemoryCaseRepo_RecentOrdersNewestFirst(t *testing.T) {
	repo := NewMemoryCaseRepo()
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Save(ctx, memSession("case-old", "job-1", base)))
	require.NoError(t, repo.Save(ctx, memSession("case-new", "job-2", base.Add(time.Hour))))
	require.NoError(t, repo.Save(ctx, memSession("case-mid", "job-3", base.Add(30*time.Minute))))

	recent, err := repo.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "case-new", recent[0].ID)
	assert.Equal(t, "case-mid", recent[1].ID)
}

func TestMemoryCaseRepo_Delete(t *testing.T) {
	repo := NewMemoryCaseRepo()
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, memSession("case-1", "job-1", time.Now())))
	require.NoError(t, repo.Delete(ctx, "case-1"))

	_, err := repo.GetByID(ctx, "case-1")
	assert.True(t, errors.Is(err, ErrNotFound))

	assert.NoError(t, repo.Delete(ctx, "case-1"), "double delete is a no-op")
}
