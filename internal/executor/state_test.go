package executor

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadStateMissingFileReturnsZeroValue(t *testing.T) {
	dir := t.TempDir()
	s, err := LoadState(filepath.Join(dir, "state.json"))
	require.NoError(t, err)
	assert.Equal(t, 0, s.CurrentWave)
	assert.Empty(t, s.CompletedWaves)
}

func TestSaveAndLoadStateRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	s := &State{CurrentWave: 2}
	s.MarkCompleted(1)
	require.NoError(t, SaveState(path, s))

	loaded, err := LoadState(path)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.CurrentWave)
	assert.True(t, loaded.IsCompleted(1))
	assert.False(t, loaded.IsCompleted(2))
}

func TestMarkCompletedIsIdempotent(t *testing.T) {
	s := &State{}
	s.MarkCompleted(1)
	s.MarkCompleted(1)
	assert.Equal(t, []int{1}, s.CompletedWaves)
}
