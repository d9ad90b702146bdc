package cmd

import (
	"github.com/spf13/cobra"

	"github.com/harrison/wavegate/internal/executor"
	"github.com/harrison/wavegate/internal/models"
)

// newCheckpointCommand implements `checkpoint [MSG]` (spec §6.1): run the
// Checkpoint Gate out of band for the current wave, e.g. after manually
// fixing up a wave the Executor's handshake never saw complete.
func newCheckpointCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "checkpoint [MSG]",
		Short: "Run the Checkpoint Gate out of band",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(globalFlags)
			if err != nil {
				return classifyCheckpointErr(err)
			}

			message := ""
			if len(args) == 1 {
				message = args[0]
			}

			exec, err := app.buildExecutor()
			if err != nil {
				return classifyCheckpointErr(err)
			}

			plan, err := app.planStore().Read()
			if err != nil {
				return classifyCheckpointErr(err)
			}

			state, err := executor.LoadState(app.Paths.ExecutorState)
			if err != nil {
				return classifyCheckpointErr(err)
			}

			wave, ok := currentWave(plan, state)
			if !ok {
				app.Log.Infof("no incomplete wave to checkpoint")
				return nil
			}

			result, err := exec.Gate.Run(cmd.Context(), wave, message)
			if err != nil {
				return classifyCheckpointErr(err)
			}

			state.MarkCompleted(wave.Index)
			if err := executor.SaveState(app.Paths.ExecutorState, state); err != nil {
				return classifyCheckpointErr(err)
			}

			app.Log.Infof("checkpoint for wave %d complete, commit %s, %d violation(s)",
				result.WaveIndex, result.CommitHash, len(result.Violations))
			return nil
		},
	}
}

// currentWave finds the first wave not yet recorded as completed, in
// plan order (spec §4.7: out-of-band checkpoint targets whatever wave the
// Executor's own state still considers open).
func currentWave(plan *models.Plan, state *executor.State) (models.Wave, bool) {
	for _, w := range plan.Waves {
		if !state.IsCompleted(w.Index) {
			return w, true
		}
	}
	return models.Wave{}, false
}
