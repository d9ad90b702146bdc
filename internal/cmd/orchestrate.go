package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrison/wavegate/internal/ingestor"
	"github.com/harrison/wavegate/internal/models"
	"github.com/harrison/wavegate/internal/planner"
)

// newOrchestrateCommand implements `orchestrate [PHASE_ID]` (spec §6.1,
// components B+C+D): ingest the task list, plan waves, write the plan.
func newOrchestrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "orchestrate [PHASE_ID]",
		Short: "Ingest the task list and write the wave plan",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(globalFlags)
			if err != nil {
				return classifyOrchestrateErr(err)
			}

			phaseID := "default"
			if len(args) == 1 {
				phaseID = args[0]
			}

			f, err := os.Open(app.Paths.TaskList)
			if err != nil {
				return classifyOrchestrateErr(fmt.Errorf("opening task list %s: %w", app.Paths.TaskList, err))
			}
			defer f.Close()

			tasks, report, err := ingestor.Ingest(f)
			if err != nil {
				return classifyOrchestrateErr(err)
			}
			for _, dup := range report.DuplicateIDs {
				app.Log.Warnf("duplicate task id %s ignored", dup)
			}
			for _, malformed := range report.MalformedLines {
				app.Log.Warnf("malformed task line: %s", malformed)
			}
			for _, unk := range report.UnknownPredecessors {
				app.Log.Warnf("predecessor reference to unknown task: %s", unk)
			}

			if err := models.ValidateTaskSet(tasks); err != nil {
				return classifyOrchestrateErr(err)
			}

			waves, err := planner.Plan(tasks)
			if err != nil {
				return classifyOrchestrateErr(err)
			}

			plan := &models.Plan{
				PhaseID:   phaseID,
				CreatedAt: time.Now().UTC(),
				Waves:     waves,
			}

			if globalFlags.DryRun {
				app.Log.Infof("dry-run: would write plan with %d wave(s) for phase %s", len(waves), phaseID)
				return nil
			}

			if err := app.planStore().Write(plan); err != nil {
				return classifyOrchestrateErr(err)
			}

			app.Log.Infof("orchestrated phase %s: %d task(s) across %d wave(s)", phaseID, len(tasks), len(waves))
			return nil
		},
	}
}
