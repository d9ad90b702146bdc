package watchdog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/wavegate/internal/models"
	"github.com/harrison/wavegate/internal/taxonomy"
)

func newTestSupervisor(t *testing.T) (*Supervisor, string) {
	t.Helper()
	dir := t.TempDir()
	activity := filepath.Join(dir, "activity.log")
	sup := New(
		filepath.Join(dir, "registry.json"),
		filepath.Join(dir, "sweep.lock"),
		2*time.Second, 2*time.Second,
		"docker",
		activity,
		nil,
	)
	return sup, activity
}

func TestRegisterThenList(t *testing.T) {
	sup, _ := newTestSupervisor(t)
	ctx := context.Background()

	require.NoError(t, sup.Register(ctx, RegisterRequest{
		TaskID:  "T1",
		Command: "go test ./...",
		Native:  &models.NativeRecord{PID: os.Getpid(), PGID: os.Getpid()},
	}))

	recs, err := sup.List(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "T1", recs[0].TaskID)
	assert.Equal(t, models.StatusRunning, recs[0].Status)
}

func TestRegisterDuplicateRunningFails(t *testing.T) {
	sup, _ := newTestSupervisor(t)
	ctx := context.Background()

	req := RegisterRequest{TaskID: "T1", Command: "cmd", Native: &models.NativeRecord{PID: os.Getpid()}}
	require.NoError(t, sup.Register(ctx, req))

	err := sup.Register(ctx, req)
	require.Error(t, err)
	assert.True(t, taxonomy.OfKind(err, taxonomy.AlreadyRegistered))
}

func TestCompleteTransitionsStatus(t *testing.T) {
	sup, _ := newTestSupervisor(t)
	ctx := context.Background()

	require.NoError(t, sup.Register(ctx, RegisterRequest{TaskID: "T1", Native: &models.NativeRecord{PID: os.Getpid()}}))
	require.NoError(t, sup.Complete(ctx, "T1"))

	recs, err := sup.List(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, models.StatusCompleted, recs[0].Status)
	assert.NotNil(t, recs[0].CompletedAt)
}

func TestCompleteUnknownTaskFails(t *testing.T) {
	sup, _ := newTestSupervisor(t)
	err := sup.Complete(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, taxonomy.OfKind(err, taxonomy.NoSuchTask))
}

func TestSweepKeepsAliveMatchingStartTimeRunning(t *testing.T) {
	sup, _ := newTestSupervisor(t)
	ctx := context.Background()

	self := os.Getpid()
	st, err := startTimeOf(self)
	require.NoError(t, err)

	require.NoError(t, sup.Register(ctx, RegisterRequest{
		TaskID: "T1",
		Native: &models.NativeRecord{PID: self, PGID: self, StartTime: st},
	}))

	report, err := sup.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Running)
	assert.Equal(t, 0, report.Orphans)

	recs, err := sup.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRunning, recs[0].Status)
}

func TestSweepDetectsOrphanAndNotesActivity(t *testing.T) {
	sup, activity := newTestSupervisor(t)
	ctx := context.Background()

	require.NoError(t, sup.Register(ctx, RegisterRequest{
		TaskID: "T1",
		Native: &models.NativeRecord{PID: 999999999, PGID: 999999999},
	}))

	report, err := sup.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Orphans)
	assert.Equal(t, 0, report.Running)

	recs, err := sup.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, recs[0].Status)

	data, err := os.ReadFile(activity)
	require.NoError(t, err)
	assert.Contains(t, string(data), "orphan detected: task T1")
}

func TestSweepDetectsStartTimeMismatchAsOrphan(t *testing.T) {
	sup, _ := newTestSupervisor(t)
	ctx := context.Background()

	require.NoError(t, sup.Register(ctx, RegisterRequest{
		TaskID: "T1",
		Native: &models.NativeRecord{PID: os.Getpid(), PGID: os.Getpid(), StartTime: "not-the-real-start-time"},
	}))

	report, err := sup.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Orphans)
}
