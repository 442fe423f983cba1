package reaper

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeHak0/Neuro-Triage/internal/data"
	"github.com/LeHak0/Neuro-Triage/internal/domain/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewRunnerValidation(t *testing.T) {
	_, err := NewRunner(RunnerOptions{MaxAge: time.Hour})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "case repository")

	_, err = NewRunner(RunnerOptions{Cases: data.NewMemoryCaseRepo()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max age")
}

func TestNewRunnerDefaultsInterval(t *testing.T) {
	r, err := NewRunner(RunnerOptions{
		Cases:  data.NewMemoryCaseRepo(),
		MaxAge: time.Hour,
		Logger: testLogger(),
	})
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, r.interval)
}

func TestRunPrunesStaleSessions(t *testing.T) {
	repo := data.NewMemoryCaseRepo()
	ctx := context.Background()

	stale := &model.CaseSession{
		ID:        "case-stale",
		UpdatedAt: time.Now().Add(-2 * time.Hour),
	}
	fresh := &model.CaseSession{
		ID:        "case-fresh",
		UpdatedAt: time.Now(),
	}
	require.NoError(t, repo.Save(ctx, stale))
	require.NoError(t, repo.Save(ctx, fresh))

	r, err := NewRunner(RunnerOptions{
		Cases:    repo,
		MaxAge:   time.Hour,
		Interval: time.Hour,
		Logger:   testLogger(),
	})
	require.NoError(t, err)

	// Run prunes once on startup; cancel immediately after.
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- r.Run(runCtx) }()
	assert.Eventually(t, func() bool {
		_, getErr := repo.GetByID(ctx, "case-stale")
		return getErr != nil
	}, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop on cancel")
	}

	_, err = repo.GetByID(ctx, "case-fresh")
	assert.NoError(t, err, "fresh session must survive the prune")
}
