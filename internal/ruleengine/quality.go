package ruleengine

import "strings"

// requiredSections are the headings a well-formed rule document is
// expected to carry; their presence contributes to the quality score.
var requiredSections = []string{"Style", "Security", "Testing"}

// QualityReport is the result of the "validate the rules" entry point
// (spec §4.4's quality scoring, surfaced by the `constitution validate` /
// `constitution show` CLI subcommands).
type QualityReport struct {
	Score           int
	PresentSections []string
	MissingSections []string
	RuleCount       int
	AutoIDCount     int
	Recommendations []string
}

// Score derives a 0-100 quality score for the rule document from section
// presence, per-section rule density, and rule-text actionability
// heuristics (spec §4.4). Recommendations are informational, never
// blocking.
func Score(sections []Section) QualityReport {
	report := QualityReport{}

	present := make(map[string]bool)
	for _, sec := range sections {
		present[sec.Heading] = true
	}
	for _, req := range requiredSections {
		found := false
		for have := range present {
			if strings.EqualFold(have, req) {
				found = true
				break
			}
		}
		if found {
			report.PresentSections = append(report.PresentSections, req)
		} else {
			report.MissingSections = append(report.MissingSections, req)
		}
	}

	score := 0
	score += 10 * len(report.PresentSections)

	for _, sec := range sections {
		report.RuleCount += len(sec.Rules)
		for _, rule := range sec.Rules {
			if rule.AutoID {
				report.AutoIDCount++
			}
			if len(rule.Description) >= 20 {
				score += 2
			}
			if rule.Kind != "" && !rule.AutoID {
				score += 3
			}
		}
		if len(sec.Rules) == 0 {
			report.Recommendations = append(report.Recommendations,
				"section \""+sec.Heading+"\" has no rules")
		}
	}

	if score > 100 {
		score = 100
	}
	report.Score = score

	if report.AutoIDCount > report.RuleCount/2 && report.RuleCount > 0 {
		report.Recommendations = append(report.Recommendations,
			"more than half of the rules have no explicit ID; consider adding stable RULE_ID prefixes")
	}
	for _, missing := range report.MissingSections {
		report.Recommendations = append(report.Recommendations,
			"missing recommended section \""+missing+"\"")
	}

	return report
}
