package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newWavesCommand implements `waves` (spec §6.1): print the plan summary.
func newWavesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "waves",
		Short: "Print the plan summary",
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

			fmt.Fprintf(cmd.OutOrStdout(), "phase %s: %d wave(s)\n", plan.PhaseID, len(plan.Waves))
			for _, w := range plan.Waves {
				fmt.Fprintf(cmd.OutOrStdout(), "  wave %d [%s]: %d task(s) - %s\n",
					w.Index, w.Strategy, len(w.Tasks), w.Rationale)
				for _, t := range w.Tasks {
					fmt.Fprintf(cmd.OutOrStdout(), "    - %s: %s\n", t.ID, t.Description)
				}
			}
			return nil
		},
	}
}
