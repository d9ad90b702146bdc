package ingestor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/wavegate/internal/taxonomy"
)

func TestIngestBasic(t *testing.T) {
	input := "- [ ] T1: build in `a.py`\n- [x] T2: build in `b.py`\n"
	tasks, report, err := Ingest(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	assert.Equal(t, "T1", tasks[0].ID)
	assert.False(t, tasks[0].Done)
	assert.Equal(t, []string{"a.py"}, tasks[0].Files)

	assert.Equal(t, "T2", tasks[1].ID)
	assert.True(t, tasks[1].Done)
	assert.Equal(t, 2, report.TaskCount)
}

func TestIngestExplicitDependency(t *testing.T) {
	input := "- [ ] T1: X\n- [ ] T2: Y after T1\n"
	tasks, _, err := Ingest(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, []string{"T1"}, tasks[1].DependsOn)
}

func TestIngestDependsOnPhrase(t *testing.T) {
	input := "- [ ] T1: X\n- [ ] T2: Y depends on T1\n"
	tasks, _, err := Ingest(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"T1"}, tasks[1].DependsOn)
}

func TestIngestContinuationLinesAndRuleTags(t *testing.T) {
	input := strings.Join([]string{
		"- [ ] T1: refactor auth",
		"  - touches `internal/auth/login.go`",
		"  - **Constitution**: NO_SECRETS, REQUIRE_TESTS",
		"",
		"- [ ] T2: unrelated",
	}, "\n")

	tasks, _, err := Ingest(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, []string{"internal/auth/login.go"}, tasks[0].Files)
	assert.Equal(t, []string{"NO_SECRETS", "REQUIRE_TESTS"}, tasks[0].RuleTags)
}

func TestIngestDuplicateIDsWarn(t *testing.T) {
	input := "- [ ] T1: first\n- [ ] T1: second\n"
	tasks, report, err := Ingest(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "first", tasks[0].Description)
	assert.Contains(t, report.DuplicateIDs, "T1")
}

func TestIngestUnknownPredecessorWarns(t *testing.T) {
	input := "- [ ] T1: X after T9\n"
	_, report, err := Ingest(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, report.UnknownPredecessors, 1)
}

func TestIngestCodeFenceIgnored(t *testing.T) {
	input := "```\n- [ ] T1: not a real task\n```\n- [ ] T2: real\n"
	tasks, _, err := Ingest(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "T2", tasks[0].ID)
}

func TestIngestIndentedCodeBlockIgnored(t *testing.T) {
	input := "    - [ ] T9: indented, not a task\n\n- [ ] T1: real\n\n- [ ] T2: also real\n"
	tasks, _, err := Ingest(strings.NewReader(input))
	require.NoError(t, err)
	ids := make([]string, len(tasks))
	for i, task := range tasks {
		ids[i] = task.ID
	}
	assert.ElementsMatch(t, []string{"T1", "T2"}, ids)
}

func TestIngestMalformedFormat(t *testing.T) {
	input := "- [not a checkbox] something\n- another bullet\n"
	_, _, err := Ingest(strings.NewReader(input))
	require.Error(t, err)
	assert.True(t, taxonomy.OfKind(err, taxonomy.InvalidTaskListFormat))
}

func TestIngestEmptyList(t *testing.T) {
	tasks, report, err := Ingest(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, tasks)
	assert.Equal(t, 0, report.TaskCount)
}

func TestIngestFallbackFileScan(t *testing.T) {
	input := "- [ ] T1: edit src/main.go without backticks\n"
	tasks, report, err := Ingest(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.NotEmpty(t, tasks[0].Files)
	assert.Contains(t, report.UsedFallbackFileScan, "T1")
}
