package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian/internal/hierarchy"
	"github.com/meridian-erp/meridian/internal/observability"
)

type fakeRecomputer struct {
	roots []string
	err   error
}

func (f *fakeRecomputer) RecomputeSubtree(_ context.Context, rootID string) error {
	f.roots = append(f.roots, rootID)
	return f.err
}

type fakeSnapshotProvider struct {
	snap *hierarchy.Snapshot
	err  error
}

func (f *fakeSnapshotProvider) Snapshot(context.Context) (*hierarchy.Snapshot, error) {
	return f.snap, f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRecomputeJobHandlesTask(t *testing.T) {
	rec := &fakeRecomputer{}
	job := NewRecomputeJob(rec, discardLogger())

	task, err := NewRecomputeTask(RecomputePayload{RoleID: "ops-lead"})
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, []string{"ops-lead"}, rec.roots)
}

func TestRecomputeJobDropsMalformedPayload(t *testing.T) {
	rec := &fakeRecomputer{}
	job := NewRecomputeJob(rec, discardLogger())

	err := job.Handle(context.Background(), asynq.NewTask(TaskRolesRecompute, []byte("{nope")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = job.Handle(context.Background(), asynq.NewTask(TaskRolesRecompute, []byte(`{"role_id":""}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Empty(t, rec.roots, "malformed tasks must not reach the service")
}

func TestRecomputeJobPropagatesServiceError(t *testing.T) {
	rec := &fakeRecomputer{err: errors.New("pool exhausted")}
	job := NewRecomputeJob(rec, discardLogger())

	task, err := NewRecomputeTask(RecomputePayload{RoleID: "ops-lead"})
	require.NoError(t, err)
	assert.Error(t, job.Handle(context.Background(), task))
}

func TestIntegrityJobScansWholeSet(t *testing.T) {
	// admin -> manager is fine, "loop" points at itself.
	roles := []hierarchy.Role{
		{ID: "admin", Name: "Admin", Level: hierarchy.LevelExecutive, IsActive: true},
		{ID: "manager", Name: "Manager", InheritFrom: "admin", Level: hierarchy.LevelManagement, IsActive: true},
		{ID: "loop", Name: "Loop", InheritFrom: "loop", Level: hierarchy.LevelStaff, IsActive: true},
	}
	provider := &fakeSnapshotProvider{snap: hierarchy.NewSnapshot(roles)}
	job := NewIntegrityJob(provider, observability.NewMetrics(), discardLogger())

	require.NoError(t, job.Handle(context.Background(), NewIntegrityTask()))
}

func TestIntegrityJobFailsWhenSnapshotUnavailable(t *testing.T) {
	provider := &fakeSnapshotProvider{err: errors.New("connection refused")}
	job := NewIntegrityJob(provider, observability.NewMetrics(), discardLogger())

	assert.Error(t, job.Handle(context.Background(), NewIntegrityTask()))
}
