package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrison/wavegate/internal/snapshot"
)

// newRecallCommand implements `recall` (spec §6.1, component J): load and
// print the latest snapshot.
func newRecallCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "recall",
		Short: "Load and print the latest snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(globalFlags)
			if err != nil {
				return withExitCode(1, err)
			}

			snap, err := app.snapshotStore().Latest()
			if err != nil {
				return withExitCode(1, err)
			}

			fmt.Fprint(cmd.OutOrStdout(), snapshot.Summary(snap))
			return nil
		},
	}
}
