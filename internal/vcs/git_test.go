package vcs

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	calls   [][]string
	outputs map[string]string
	err     error
}

func (f *fakeRunner) Run(ctx context.Context, dir, name string, args ...string) (string, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	key := strings.Join(args, " ")
	if f.err != nil {
		return "", f.err
	}
	return f.outputs[key], nil
}

func TestStatusShortParsesLines(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]string{
		"status --short": " M a.py\n?? b.py\n",
	}}
	a := NewWithRunner("/repo", runner)

	lines, err := a.StatusShort(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{" M a.py", "?? b.py"}, lines)
}

func TestDiffNameOnly(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]string{
		"diff --name-only HEAD~1..HEAD": "a.py\nb.py\n",
	}}
	a := NewWithRunner("/repo", runner)

	files, err := a.DiffNameOnly(context.Background(), "HEAD~1..HEAD")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.py", "b.py"}, files)
}

func TestCommitInvokesExpectedArgs(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]string{}}
	a := NewWithRunner("/repo", runner)

	require.NoError(t, a.AddAll(context.Background()))
	require.NoError(t, a.Commit(context.Background(), "[CHECKPOINT] Wave 1 complete"))

	assert.Equal(t, []string{"git", "add", "-A"}, runner.calls[0])
	assert.Equal(t, []string{"git", "commit", "-m", "[CHECKPOINT] Wave 1 complete"}, runner.calls[1])
}

func TestUnstageNeverUsesHardReset(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]string{}}
	a := NewWithRunner("/repo", runner)

	require.NoError(t, a.Unstage(context.Background()))
	assert.Equal(t, []string{"git", "reset"}, runner.calls[0])
	for _, call := range runner.calls {
		for _, arg := range call {
			assert.NotEqual(t, "--hard", arg)
			assert.NotEqual(t, "--force", arg)
		}
	}
}

func TestLogReturnsHashes(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]string{
		"log --format=%H -n 2": "aaa\nbbb\n",
	}}
	a := NewWithRunner("/repo", runner)

	hashes, err := a.Log(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"aaa", "bbb"}, hashes)
}
