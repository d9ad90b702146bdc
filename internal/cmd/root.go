package cmd

import (
	"github.com/spf13/cobra"
)

// globalFlags is populated by the root command's persistent flags and
// read by every subcommand's RunE (spec §6.1: "Global flags: --verbose,
// --dry-run").
var globalFlags GlobalFlags

// NewRootCommand builds wavegate's root cobra command and wires every
// subcommand from §6.1's table.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "wavegate",
		Short:         "Dependency-scheduled, checkpoint-gated task wave orchestration",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().BoolVar(&globalFlags.Verbose, "verbose", false, "enable verbose logging")
	root.PersistentFlags().BoolVar(&globalFlags.DryRun, "dry-run", false, "report intended actions without mutating state")
	root.PersistentFlags().StringVar(&globalFlags.ConfigPath, "config", "", "path to wavegate.yaml (defaults to <project>/wavegate.yaml)")
	root.PersistentFlags().StringVar(&globalFlags.ProjectDir, "project-dir", "", "project root (defaults to the current directory)")
	root.PersistentFlags().StringVar(&globalFlags.PreCompactHook, "pre-compact-hook", "", "path to an executable invoked before context compaction (spec §6.5); overrides budget.pre_compact_hook in wavegate.yaml")

	root.AddCommand(newOrchestrateCommand())
	root.AddCommand(newExecuteCommand())
	root.AddCommand(newWavesCommand())
	root.AddCommand(newCheckpointCommand())
	root.AddCommand(newWatchdogCommand())
	root.AddCommand(newTaskWatchdogCommand())
	root.AddCommand(newTaskCompleteCommand())
	root.AddCommand(newConstitutionCommand())
	root.AddCommand(newStatusCommand())
	root.AddCommand(newFinalizeCommand())
	root.AddCommand(newRecallCommand())

	return root
}
