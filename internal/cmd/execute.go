package cmd

import (
	"github.com/spf13/cobra"
)

// newExecuteCommand implements `execute` (spec §6.1, component F): drive
// the plan wave-by-wave, checkpointing after each one.
func newExecuteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "execute",
		Short: "Execute the wave plan, checkpointing after each wave",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(globalFlags)
			if err != nil {
				return classifyExecuteErr(err)
			}

			exec, err := app.buildExecutor()
			if err != nil {
				return classifyExecuteErr(err)
			}

			if globalFlags.DryRun {
				plan, err := app.planStore().Read()
				if err != nil {
					return classifyExecuteErr(err)
				}
				app.Log.Infof("dry-run: would execute %d wave(s) for phase %s", len(plan.Waves), plan.PhaseID)
				return nil
			}

			if err := exec.Run(cmd.Context()); err != nil {
				return classifyExecuteErr(err)
			}

			app.Log.Infof("execution complete")
			return nil
		},
	}
}
