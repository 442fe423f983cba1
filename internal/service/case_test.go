package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeHak0/Neuro-Triage/internal/data"
	"github.com/LeHak0/Neuro-Triage/internal/domain/model"
	apperrors "github.com/LeHak0/Neuro-Triage/internal/errors"
)

func newCaseService(backend *stubBackend, repo *data.MemoryCaseRepo) (*CaseService, *Poller) {
	poller := newTestPoller(backend, repo, time.Minute)
	svc := NewCaseService(CaseServiceOptions{
		Backend: backend,
		Cases:   repo,
		Poller:  poller,
		Logger:  testLogger(),
	})
	return svc, poller
}

func submissionInput() *model.SubmissionInput {
	return &model.SubmissionInput{
		Files: []model.CaseFile{
			{Filename: "t1.nii.gz", Content: strings.NewReader("scan")},
		},
		Patient: model.PatientMeta{MoCATotal: 22, Age: 68, Sex: model.SexFemale},
	}
}

func TestCaseService_Submit(t *testing.T) {
	backend := &stubBackend{
		submitJobID: "job-1",
		statuses:    []statusReply{terminal(model.JobStateCompleted)},
		resultEnv:   &model.ResultEnvelope{JobID: "job-1", Status: model.JobStateCompleted, Result: []byte(`{}`)},
	}
	repo := data.NewMemoryCaseRepo()
	svc, poller := newCaseService(backend, repo)
	defer poller.Shutdown()

	sess, err := svc.Submit(context.Background(), submissionInput())
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, "job-1", sess.JobID)
	assert.Equal(t, model.PhasePolling, sess.Phase)
	assert.Equal(t, []string{"t1.nii.gz"}, sess.FileNames)

	require.Eventually(t, func() bool {
		got, getErr := repo.GetByID(context.Background(), sess.ID)
		return getErr == nil && got.Phase == model.PhaseSettled
	}, 2*time.Second, 5*time.Millisecond)
}

func TestCaseService_Submit_ValidationSkipsBackend(t *testing.T) {
	backend := &stubBackend{submitJobID: "job-1"}
	repo := data.NewMemoryCaseRepo()
	svc, poller := newCaseService(backend, repo)
	defer poller.Shutdown()

	_, err := svc.Submit(context.Background(), &model.SubmissionInput{
		Patient: model.PatientMeta{MoCATotal: 22, Age: 68, Sex: model.SexFemale},
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Zero(t, backend.submitCall)

	recent, err := svc.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, recent, "no session is created for a rejected submission")
}

func TestCaseService_Submit_BackendErrorCreatesNoSession(t *testing.T) {
	backend := &stubBackend{submitErr: apperrors.Submission(503, "backend overloaded")}
	repo := data.NewMemoryCaseRepo()
	svc, poller := newCaseService(backend, repo)
	defer poller.Shutdown()

	_, err := svc.Submit(context.Background(), submissionInput())
	require.Error(t, err)
	assert.True(t, apperrors.IsSubmission(err))

	recent, err := svc.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestCaseService_StartDemo(t *testing.T) {
	backend := &stubBackend{
		submitJobID: "demo-job",
		statuses:    []statusReply{running(10)},
	}
	repo := data.NewMemoryCaseRepo()
	svc, poller := newCaseService(backend, repo)
	defer poller.Shutdown()

	sess, err := svc.StartDemo(context.Background(), DemoPathology)
	require.NoError(t, err)
	assert.Equal(t, "demo-job", sess.JobID)
	assert.Equal(t, []string{"demo dataset"}, sess.FileNames)
	assert.True(t, svc.Polling(sess.ID))
}

func TestCaseService_Resubmit_SupersedesJob(t *testing.T) {
	backend := &stubBackend{
		submitJobID: "job-1",
		statuses:    []statusReply{running(50)},
	}
	repo := data.NewMemoryCaseRepo()
	svc, poller := newCaseService(backend, repo)
	defer poller.Shutdown()

	sess, err := svc.Submit(context.Background(), submissionInput())
	require.NoError(t, err)

	backend.mu.Lock()
	backend.submitJobID = "job-2"
	backend.mu.Unlock()

	resub, err := svc.Resubmit(context.Background(), sess.ID, submissionInput())
	require.NoError(t, err)
	assert.Equal(t, sess.ID, resub.ID)
	assert.Equal(t, "job-2", resub.JobID)
	assert.Nil(t, resub.Status)
	assert.True(t, svc.Polling(sess.ID))
}

func TestCaseService_GetMissing(t *testing.T) {
	repo := data.NewMemoryCaseRepo()
	svc, poller := newCaseService(&stubBackend{}, repo)
	defer poller.Shutdown()

	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestCaseService_Cancel(t *testing.T) {
	backend := &stubBackend{
		submitJobID: "job-1",
		statuses:    []statusReply{running(30)},
	}
	repo := data.NewMemoryCaseRepo()
	svc, poller := newCaseService(backend, repo)
	defer poller.Shutdown()

	sess, err := svc.Submit(context.Background(), submissionInput())
	require.NoError(t, err)
	require.True(t, svc.Polling(sess.ID))

	require.NoError(t, svc.Cancel(context.Background(), sess.ID))
	assert.False(t, svc.Polling(sess.ID))

	got, err := svc.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PhasePolling, got.Phase, "cancel keeps the session and its last state")

	err = svc.Cancel(context.Background(), "missing")
	assert.True(t, apperrors.IsNotFound(err))
}
