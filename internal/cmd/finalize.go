package cmd

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/harrison/wavegate/internal/executor"
	"github.com/harrison/wavegate/internal/snapshot"
)

// newFinalizeCommand implements `finalize` (spec §6.1, component G): write
// a session snapshot, then run an out-of-band checkpoint for any wave the
// executor still considers open.
func newFinalizeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "finalize",
		Short: "Write a snapshot and checkpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(globalFlags)
			if err != nil {
				return withExitCode(1, err)
			}

			plan, err := app.planStore().Read()
			if err != nil {
				return withExitCode(1, err)
			}
			state, err := executor.LoadState(app.Paths.ExecutorState)
			if err != nil {
				return withExitCode(1, err)
			}

			if wave, ok := currentWave(plan, state); ok {
				exec, err := app.buildExecutor()
				if err != nil {
					return withExitCode(1, err)
				}
				if _, err := exec.Gate.Run(cmd.Context(), wave, ""); err == nil {
					state.MarkCompleted(wave.Index)
					_ = executor.SaveState(app.Paths.ExecutorState, state)
				} else {
					app.Log.Warnf("finalize: checkpoint for wave %d did not complete: %v", wave.Index, err)
				}
			}

			sup := app.watchdogSupervisor()
			recs, _ := sup.List(cmd.Context())
			var running []string
			for _, r := range recs {
				if r.Status == "running" {
					running = append(running, r.TaskID)
				}
			}

			var commitHashes []string
			vcsAdapter := app.vcsAdapter()
			if hashes, err := vcsAdapter.Log(cmd.Context(), 5); err == nil {
				commitHashes = hashes
			}

			snap := snapshot.Build(snapshot.BuildOptions{
				SessionID:        generateSessionID(),
				Phase:            plan.PhaseID,
				CurrentWave:      state.CurrentWave,
				RunningTaskIDs:   running,
				CompletedCount:   len(state.CompletedWaves),
				TotalCount:       len(plan.Waves),
				LastCommitHashes: commitHashes,
			})

			path, err := app.snapshotStore().Write(snap)
			if err != nil {
				return withExitCode(1, err)
			}
			app.Log.Infof("snapshot written to %s", path)
			return nil
		},
	}
}

// generateSessionID mints a fresh snapshot session identifier (grounded on
// the teacher's internal/cmd/run.go generateSessionID, same uuid.NewString
// call, one per invocation since this CLI is stateless between runs).
func generateSessionID() string {
	return uuid.NewString()
}
