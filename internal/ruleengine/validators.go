package ruleengine

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/harrison/wavegate/internal/models"
)

// binaryCheckBytes is how much of a file's prefix is scanned for a NUL
// byte to heuristically detect binary content (spec §4.4: "skipping binary
// files by magic-byte heuristic").
const binaryCheckBytes = 8000

// Validate reads each file (skipping binaries), runs every resolved rule's
// validator against it, and returns the resulting Violations (spec §4.4
// "Validation call"). Every validator here is deterministic and pure with
// respect to file contents.
func (e *Engine) Validate(files []string, ruleIDs []string) ([]models.Violation, error) {
	var violations []models.Violation

	rules := make([]models.Rule, 0, len(ruleIDs))
	for _, id := range ruleIDs {
		if r, ok := e.rules[id]; ok {
			rules = append(rules, r)
		}
	}

	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		if isBinary(data) {
			continue
		}
		for _, rule := range rules {
			violations = append(violations, runValidator(rule, path, data)...)
		}
	}

	return violations, nil
}

// ValidateDefault runs the hardcoded default-validator pass for a task
// with no rule tags (spec §4.4): secret heuristics, bare-except detection,
// overly long functions — all findings downgraded to warning severity
// regardless of their natural severity.
func (e *Engine) ValidateDefault(files []string) ([]models.Violation, error) {
	var violations []models.Violation
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		if isBinary(data) {
			continue
		}
		for _, rule := range defaultRulesFor(path) {
			for _, v := range runValidator(rule, path, data) {
				v.Severity = models.SeverityWarning
				violations = append(violations, v)
			}
		}
	}
	return violations, nil
}

func isBinary(data []byte) bool {
	n := len(data)
	if n > binaryCheckBytes {
		n = binaryCheckBytes
	}
	return bytes.IndexByte(data[:n], 0) != -1
}

func runValidator(rule models.Rule, path string, data []byte) []models.Violation {
	switch rule.Kind {
	case models.PatternForbidden:
		return patternForbidden(rule, path, data)
	case models.PatternRequired:
		return patternRequired(rule, path, data)
	case models.Size:
		return sizeCheck(rule, path, data)
	case models.Structural:
		return structuralCheck(rule, path, data)
	default:
		return nil
	}
}

func patternForbidden(rule models.Rule, path string, data []byte) []models.Violation {
	re, err := regexp.Compile(rule.Pattern)
	if err != nil || rule.Pattern == "" {
		return nil
	}
	var violations []models.Violation
	scanner := bufio.NewScanner(bytes.NewReader(data))
	line := 0
	for scanner.Scan() {
		line++
		if re.MatchString(scanner.Text()) {
			violations = append(violations, models.Violation{
				RuleID:   rule.ID,
				File:     path,
				Line:     line,
				Message:  fmt.Sprintf("%s: forbidden pattern matched", rule.Description),
				Severity: rule.Severity,
			})
		}
	}
	return violations
}

func patternRequired(rule models.Rule, path string, data []byte) []models.Violation {
	re, err := regexp.Compile(rule.Pattern)
	if err != nil || rule.Pattern == "" {
		return nil
	}
	if re.Match(data) {
		return nil
	}
	return []models.Violation{{
		RuleID:   rule.ID,
		File:     path,
		Message:  fmt.Sprintf("%s: required pattern not found", rule.Description),
		Severity: rule.Severity,
	}}
}

func sizeCheck(rule models.Rule, path string, data []byte) []models.Violation {
	threshold := rule.Threshold
	if threshold <= 0 {
		threshold = 80
	}
	var violations []models.Violation
	funcStart := -1
	funcLine := 0
	lines := strings.Split(string(data), "\n")
	for i, l := range lines {
		if functionStartPattern.MatchString(l) {
			if funcStart >= 0 && i-funcStart > threshold {
				violations = append(violations, models.Violation{
					RuleID:   rule.ID,
					File:     path,
					Line:     funcLine,
					Message:  fmt.Sprintf("%s: function exceeds %d lines", rule.Description, threshold),
					Severity: rule.Severity,
				})
			}
			funcStart = i
			funcLine = i + 1
		}
	}
	if funcStart >= 0 && len(lines)-funcStart > threshold {
		violations = append(violations, models.Violation{
			RuleID:   rule.ID,
			File:     path,
			Line:     funcLine,
			Message:  fmt.Sprintf("%s: function exceeds %d lines", rule.Description, threshold),
			Severity: rule.Severity,
		})
	}
	return violations
}

var functionStartPattern = regexp.MustCompile(`^\s*(func |def |function )`)

// structuralCheck implements the one required structural check: every
// public function/method has a preceding doc comment (spec §4.4's example,
// "every public function has a docstring").
func structuralCheck(rule models.Rule, path string, data []byte) []models.Violation {
	if rule.Pattern != "public-func-docstring" && rule.Pattern != "" {
		return nil
	}
	var violations []models.Violation
	lines := strings.Split(string(data), "\n")
	for i, l := range lines {
		m := goPublicFunc.FindStringSubmatch(l)
		if m == nil {
			continue
		}
		if i == 0 || !strings.HasPrefix(strings.TrimSpace(lines[i-1]), "//") {
			violations = append(violations, models.Violation{
				RuleID:   rule.ID,
				File:     path,
				Line:     i + 1,
				Message:  fmt.Sprintf("%s: public function %s has no preceding doc comment", rule.Description, m[1]),
				Severity: rule.Severity,
			})
		}
	}
	return violations
}

var goPublicFunc = regexp.MustCompile(`^func\s+(?:\([^)]*\)\s+)?([A-Z]\w*)\s*\(`)

var secretPattern = regexp.MustCompile(`(?i)(api[_-]?key|secret|password|token)\s*[:=]\s*['"][^'"\s]{6,}['"]`)
var bareExceptPattern = regexp.MustCompile(`^\s*except\s*:\s*$`)

// defaultRulesFor returns the hardcoded default-validator pass rules for a
// file, inferred by extension (reusing the teacher's
// domainSpecificChecks-per-extension mapping idiom from qc.go).
func defaultRulesFor(path string) []models.Rule {
	rules := []models.Rule{
		{
			ID:          "DEFAULT_NO_SECRETS",
			Severity:    models.SeverityError,
			Description: "no hardcoded secrets",
			Kind:        models.PatternForbidden,
			Pattern:     secretPattern.String(),
		},
		{
			ID:          "DEFAULT_FUNC_LENGTH",
			Severity:    models.SeverityWarning,
			Description: "functions should stay under 80 lines",
			Kind:        models.Size,
			Threshold:   80,
		},
	}
	if strings.HasSuffix(path, ".py") {
		rules = append(rules, models.Rule{
			ID:          "DEFAULT_NO_BARE_EXCEPT",
			Severity:    models.SeverityWarning,
			Description: "avoid bare except clauses",
			Kind:        models.PatternForbidden,
			Pattern:     bareExceptPattern.String(),
		})
	}
	return rules
}
