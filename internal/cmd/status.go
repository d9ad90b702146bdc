package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrison/wavegate/internal/executor"
)

// newStatusCommand implements `status` (spec §6.1): a one-screen overview
// of the plan, executor state, watchdog registry, and budget zone.
func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "One-screen overview of current progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(globalFlags)
			if err != nil {
				return withExitCode(1, err)
			}
			out := cmd.OutOrStdout()

			plan, err := app.planStore().Read()
			if err != nil {
				fmt.Fprintf(out, "plan: none (%v)\n", err)
			} else {
				state, serr := executor.LoadState(app.Paths.ExecutorState)
				if serr != nil {
					state = &executor.State{}
				}
				fmt.Fprintf(out, "phase %s: %d wave(s), %d completed\n",
					plan.PhaseID, len(plan.Waves), len(state.CompletedWaves))
			}

			sup := app.watchdogSupervisor()
			recs, err := sup.List(cmd.Context())
			if err == nil {
				running := 0
				for _, r := range recs {
					if r.Status == "running" {
						running++
					}
				}
				fmt.Fprintf(out, "watchdog: %d record(s), %d running\n", len(recs), running)
			}

			budget := app.budgetMonitor()
			est := budget.Estimate()
			fmt.Fprintf(out, "context budget: %s zone (%d/%d tokens estimated)\n",
				est.Zone, est.EstimatedTokens, est.WindowTokens)

			return nil
		},
	}
}
