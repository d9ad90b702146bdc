package executor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/wavegate/internal/models"
	"github.com/harrison/wavegate/internal/planstore"
	"github.com/harrison/wavegate/internal/taxonomy"
	"github.com/harrison/wavegate/internal/vcs"
	"github.com/harrison/wavegate/internal/watchdog"
)

type fakeWatchdogClient struct {
	registered []string
	fail       bool
}

func (f *fakeWatchdogClient) Register(ctx context.Context, req watchdog.RegisterRequest) error {
	if f.fail {
		return taxonomy.New(taxonomy.AlreadyRegistered, "fake failure")
	}
	f.registered = append(f.registered, req.TaskID)
	return nil
}

func onePlan(taskID string) *models.Plan {
	return &models.Plan{
		PhaseID: "phase-1",
		Waves: []models.Wave{
			{
				Index:           1,
				Strategy:        models.Sequential,
				Tasks:           []models.Task{{ID: taskID}},
				CheckpointAfter: models.DefaultCheckpointPolicy(),
			},
		},
	}
}

func setupExecutor(t *testing.T, taskListContent string) (*Executor, string) {
	t.Helper()
	dir := t.TempDir()
	taskList := writeFile(t, dir, "tasks.md", taskListContent)
	statePath := filepath.Join(dir, "wave_executor_state.json")
	planPath := filepath.Join(dir, "plan.json")

	store := planstore.New(planPath)
	require.NoError(t, store.Write(onePlan("T1")))

	runner := newFakeVCSRunner()
	runner.outputs["git log --format=%H -n 1"] = "deadbeef\n"
	adapter := vcs.NewWithRunner(dir, runner)

	gate := &Gate{TaskListPath: taskList, VCS: adapter}
	wd := &fakeWatchdogClient{}

	exec := &Executor{
		PlanStore:    store,
		StatePath:    statePath,
		TaskListPath: taskList,
		Gate:         gate,
		Watchdog:     wd,
		WaveTimeout:  150 * time.Millisecond,
		PollInterval: 10 * time.Millisecond,
		QuietPeriod:  20 * time.Millisecond,
	}
	return exec, taskList
}

func TestExecutorRunSucceedsWhenTaskAlreadyDone(t *testing.T) {
	exec, _ := setupExecutor(t, "- [x] T1: do the thing\n")
	err := exec.Run(context.Background())
	require.NoError(t, err)

	wd := exec.Watchdog.(*fakeWatchdogClient)
	assert.Equal(t, []string{"T1"}, wd.registered)

	state, err := LoadState(exec.StatePath)
	require.NoError(t, err)
	assert.True(t, state.IsCompleted(1))
}

func TestExecutorRunTimesOutWhenTaskNeverCompletes(t *testing.T) {
	exec, _ := setupExecutor(t, "- [ ] T1: do the thing\n")
	err := exec.Run(context.Background())
	require.Error(t, err)
	assert.True(t, taxonomy.OfKind(err, taxonomy.WaveTimeout))
}

func TestExecutorRunIsNoOpOnceWaveCompleted(t *testing.T) {
	exec, taskList := setupExecutor(t, "- [x] T1: do the thing\n")
	require.NoError(t, exec.Run(context.Background()))

	// Simulate the worker un-checking the box after completion; a second
	// run must still be a no-op because the wave is already recorded
	// complete (spec L2: safe re-execute).
	require.NoError(t, os.WriteFile(taskList, []byte("- [ ] T1: do the thing\n"), 0o644))

	wd := &fakeWatchdogClient{}
	exec.Watchdog = wd
	require.NoError(t, exec.Run(context.Background()))
	assert.Empty(t, wd.registered)
}
