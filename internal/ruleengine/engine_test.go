package ruleengine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/wavegate/internal/models"
)

func writeTemp(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func openRuleDoc(t *testing.T, dir, content string) *os.File {
	t.Helper()
	path := writeTemp(t, dir, "rules.md", content)
	f, err := os.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestLoadParsesSectionsAndRules(t *testing.T) {
	dir := t.TempDir()
	doc := `## Security

- NO_SECRETS (error): forbid hardcoded secrets [pattern-forbidden: ` + "`" + `(?i)secret\s*=` + "`" + `]
- plain sentence rule with no id

## Style

`
	f := openRuleDoc(t, dir, doc)
	engine, sections, err := Load(f)
	require.NoError(t, err)
	require.Len(t, sections, 2)
	assert.Equal(t, "Security", sections[0].Heading)
	require.Len(t, sections[0].Rules, 2)
	assert.Equal(t, "Style", sections[1].Heading)
	assert.Empty(t, sections[1].Rules)

	rule, ok := engine.Rule("NO_SECRETS")
	require.True(t, ok)
	assert.Equal(t, models.SeverityError, rule.Severity)
	assert.Equal(t, models.PatternForbidden, rule.Kind)
}

func TestResolveSkipsUnknownTags(t *testing.T) {
	dir := t.TempDir()
	f := openRuleDoc(t, dir, "## Security\n\n- NO_SECRETS: forbid secrets\n")
	engine, _, err := Load(f)
	require.NoError(t, err)

	known, unknown := engine.Resolve([]string{"NO_SECRETS", "MISSING_RULE"})
	assert.Equal(t, []string{"NO_SECRETS"}, known)
	assert.Equal(t, []string{"MISSING_RULE"}, unknown)
}

func TestValidatePatternForbidden(t *testing.T) {
	dir := t.TempDir()
	doc := "## Security\n\n- NO_SECRETS (error): no hardcoded secrets [pattern-forbidden: `(?i)password\\s*=`]\n"
	f := openRuleDoc(t, dir, doc)
	engine, _, err := Load(f)
	require.NoError(t, err)

	target := writeTemp(t, dir, "target.py", "password = \"hunter2\"\nx = 1\n")

	violations, err := engine.Validate([]string{target}, []string{"NO_SECRETS"})
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, 1, violations[0].Line)
	assert.True(t, violations[0].Blocking())
}

func TestValidateDefaultPassDowngradesToWarning(t *testing.T) {
	dir := t.TempDir()
	f := openRuleDoc(t, dir, "## Security\n\n")
	engine, _, err := Load(f)
	require.NoError(t, err)

	target := writeTemp(t, dir, "target.py", "api_key = \"abcdef1234\"\n")

	violations, err := engine.ValidateDefault([]string{target})
	require.NoError(t, err)
	require.NotEmpty(t, violations)
	for _, v := range violations {
		assert.Equal(t, models.SeverityWarning, v.Severity)
	}
}

func TestScoreRewardsPresentSections(t *testing.T) {
	sections := []Section{
		{Heading: "Style", Rules: []models.Rule{{ID: "A", Description: "a reasonably long description"}}},
		{Heading: "Security", Rules: []models.Rule{{ID: "B", Description: "another reasonably long description"}}},
		{Heading: "Testing", Rules: nil},
	}
	report := Score(sections)
	assert.Greater(t, report.Score, 0)
	assert.Contains(t, report.Recommendations, "section \"Testing\" has no rules")
}
