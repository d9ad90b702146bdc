package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/harrison/wavegate/internal/models"
	"github.com/harrison/wavegate/internal/watchdog"
)

// newTaskWatchdogCommand implements `task-watchdog register <id> --command
// <c> [--rules a,b]` (spec §6.1).
func newTaskWatchdogCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "task-watchdog",
		Short: "Register a task's process with the Watchdog",
	}
	root.AddCommand(newTaskWatchdogRegisterCommand())
	return root
}

func newTaskWatchdogRegisterCommand() *cobra.Command {
	var command string
	var rules string
	cmd := &cobra.Command{
		Use:   "register <id>",
		Short: "Register a task with the Watchdog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(globalFlags)
			if err != nil {
				return withExitCode(1, err)
			}
			sup := app.watchdogSupervisor()

			var tags []string
			if rules != "" {
				for _, t := range strings.Split(rules, ",") {
					if t = strings.TrimSpace(t); t != "" {
						tags = append(tags, t)
					}
				}
			}

			req := watchdog.RegisterRequest{
				TaskID:   args[0],
				Command:  command,
				RuleTags: tags,
				Native:   &models.NativeRecord{},
			}
			if err := sup.Register(cmd.Context(), req); err != nil {
				return withExitCode(1, err)
			}
			app.Log.TaskRegistered(args[0], true)
			return nil
		},
	}
	cmd.Flags().StringVar(&command, "command", "", "command the task's process runs")
	cmd.Flags().StringVar(&rules, "rules", "", "comma-separated rule tags")
	return cmd
}

// newTaskCompleteCommand implements `task-complete <id>` (spec §6.1).
func newTaskCompleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "task-complete <id>",
		Short: "Mark a task's process complete",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(globalFlags)
			if err != nil {
				return withExitCode(1, err)
			}
			sup := app.watchdogSupervisor()
			if err := sup.Complete(cmd.Context(), args[0]); err != nil {
				return withExitCode(1, err)
			}
			app.Log.Infof("task %s marked complete", args[0])
			return nil
		},
	}
}
