package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/harrison/wavegate/internal/ruleengine"
)

// newConstitutionCommand implements `constitution validate|show` (spec
// §6.1, component E's quality-scoring entry points).
func newConstitutionCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "constitution",
		Short: "Rule document operations",
	}
	root.AddCommand(newConstitutionValidateCommand())
	root.AddCommand(newConstitutionShowCommand())
	return root
}

func loadRuleDocSections(path string) ([]ruleengine.Section, ruleengine.QualityReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ruleengine.QualityReport{}, err
	}
	defer f.Close()
	_, sections, err := ruleengine.Load(f)
	if err != nil {
		return nil, ruleengine.QualityReport{}, err
	}
	return sections, ruleengine.Score(sections), nil
}

func newConstitutionValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Score the rule document and report whether it meets the quality threshold",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(globalFlags)
			if err != nil {
				return classifyConstitutionErr(err, false)
			}

			_, report, err := loadRuleDocSections(app.Paths.RuleDoc)
			if err != nil {
				return classifyConstitutionErr(err, false)
			}

			belowThreshold := report.Score < app.Config.Constitution.QualityThreshold
			app.Log.Infof("rule document quality score: %d/100 (threshold %d)",
				report.Score, app.Config.Constitution.QualityThreshold)
			for _, rec := range report.Recommendations {
				app.Log.Warnf("%s", rec)
			}
			return classifyConstitutionErr(nil, belowThreshold)
		},
	}
}

func newConstitutionShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the rule document's sections and rule counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(globalFlags)
			if err != nil {
				return classifyConstitutionErr(err, false)
			}

			sections, report, err := loadRuleDocSections(app.Paths.RuleDoc)
			if err != nil {
				return classifyConstitutionErr(err, false)
			}

			for _, sec := range sections {
				fmt.Fprintf(cmd.OutOrStdout(), "## %s (%d rule(s))\n", sec.Heading, len(sec.Rules))
				for _, r := range sec.Rules {
					fmt.Fprintf(cmd.OutOrStdout(), "  - %s: %s\n", r.ID, r.Description)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nquality score: %d/100\n", report.Score)
			return nil
		},
	}
}
