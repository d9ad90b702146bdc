package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

// newWatchdogCommand implements `watchdog start|stop|check|report|rehydrate`
// (spec §6.1, component H's supervisor commands).
func newWatchdogCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "watchdog",
		Short: "Process Supervisor / Watchdog commands",
	}
	root.AddCommand(newWatchdogStartCommand())
	root.AddCommand(newWatchdogStopCommand())
	root.AddCommand(newWatchdogCheckCommand())
	root.AddCommand(newWatchdogReportCommand())
	root.AddCommand(newWatchdogRehydrateCommand())
	return root
}

func newWatchdogStartCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Run the sweep loop in the foreground until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(globalFlags)
			if err != nil {
				return withExitCode(1, err)
			}
			sup := app.watchdogSupervisor()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app.Log.Infof("watchdog sweep loop starting (interval %s)", app.Config.Watchdog.SweepInterval)
			if err := sup.StartSweepLoop(ctx, app.Config.Watchdog.SweepInterval); err != nil {
				return withExitCode(1, err)
			}
			app.Log.Infof("watchdog sweep loop stopped")
			return nil
		},
	}
}

func newWatchdogStopCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Release this process's hold on the sweep singleton lock (a loop running in another process is not stopped)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(globalFlags)
			if err != nil {
				return withExitCode(1, err)
			}
			sup := app.watchdogSupervisor()
			if err := sup.StopSweepLoop(); err != nil {
				app.Log.Warnf("stop: %v", err)
			}
			return nil
		},
	}
}

func newWatchdogCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run a single sweep cycle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(globalFlags)
			if err != nil {
				return withExitCode(1, err)
			}
			sup := app.watchdogSupervisor()
			report, err := sup.Sweep(cmd.Context())
			if err != nil {
				return withExitCode(1, err)
			}
			app.Log.WatchdogSweep(report.Running, report.Orphans, report.Zombies)
			return nil
		},
	}
}

func newWatchdogReportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "List every tracked process record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(globalFlags)
			if err != nil {
				return withExitCode(1, err)
			}
			sup := app.watchdogSupervisor()
			recs, err := sup.List(cmd.Context())
			if err != nil {
				return withExitCode(1, err)
			}
			for _, rec := range recs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n", rec.TaskID, rec.Mode, rec.Status, rec.Command)
			}
			return nil
		},
	}
}

func newWatchdogRehydrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rehydrate",
		Short: "Summarize every RUNNING record after a session restart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(globalFlags)
			if err != nil {
				return withExitCode(1, err)
			}
			sup := app.watchdogSupervisor()
			entries, err := sup.Rehydrate(cmd.Context())
			if err != nil {
				return withExitCode(1, err)
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no running tasks")
				return nil
			}
			for _, e := range entries {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\trunning %s\t%.1f%% cpu\t%d bytes rss\t%s\n",
					e.TaskID, e.Age.Round(time.Second), e.CPU, e.Memory, e.Command)
			}
			return nil
		},
	}
}
