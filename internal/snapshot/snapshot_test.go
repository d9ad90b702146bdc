package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/wavegate/internal/models"
	"github.com/harrison/wavegate/internal/taxonomy"
)

func TestLatestOnEmptyDirFails(t *testing.T) {
	dir := t.TempDir()
	st := New(dir, 20)
	_, err := st.Latest()
	require.Error(t, err)
	assert.True(t, taxonomy.OfKind(err, taxonomy.NoSuchTask))
}

func TestWriteThenLatestRoundTrips(t *testing.T) {
	dir := t.TempDir()
	st := New(dir, 20)

	snap := Build(BuildOptions{SessionID: "sess-1", Phase: "phase-1", CurrentWave: 2, Now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)})
	_, err := st.Write(snap)
	require.NoError(t, err)

	got, err := st.Latest()
	require.NoError(t, err)
	assert.Equal(t, "sess-1", got.SessionID)
	assert.Equal(t, 2, got.CurrentWave)
}

func TestLatestTracksMostRecentWrite(t *testing.T) {
	dir := t.TempDir()
	st := New(dir, 20)

	for i := 1; i <= 3; i++ {
		snap := Build(BuildOptions{
			SessionID:   "sess-1",
			CurrentWave: i,
			Now:         time.Date(2026, 1, 1, 0, 0, i, 0, time.UTC),
		})
		_, err := st.Write(snap)
		require.NoError(t, err)
	}

	got, err := st.Latest()
	require.NoError(t, err)
	assert.Equal(t, 3, got.CurrentWave)
}

func TestRotationKeepsOnlyRetentionNMostRecent(t *testing.T) {
	dir := t.TempDir()
	st := New(dir, 3)

	for i := 1; i <= 5; i++ {
		snap := Build(BuildOptions{
			SessionID:   "sess-1",
			CurrentWave: i,
			Now:         time.Date(2026, 1, 1, 0, 0, i, 0, time.UTC),
		})
		_, err := st.Write(snap)
		require.NoError(t, err)
	}

	names, err := st.listSnapshotFiles()
	require.NoError(t, err)
	assert.Len(t, names, 3)

	got, err := st.Latest()
	require.NoError(t, err)
	assert.Equal(t, 5, got.CurrentWave)
}

func TestLatestFallsBackToDirectoryScanWhenIndirectionMissing(t *testing.T) {
	dir := t.TempDir()
	st := New(dir, 20)

	snap := Build(BuildOptions{SessionID: "sess-1", CurrentWave: 7, Now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)})
	_, err := st.Write(snap)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(dir, latestIndirectionFile)))

	got, err := st.Latest()
	require.NoError(t, err)
	assert.Equal(t, 7, got.CurrentWave)
}

func TestSummaryIncludesKeyFields(t *testing.T) {
	s := &models.Snapshot{
		SessionID:      "sess-1",
		Phase:          "phase-1",
		CurrentWave:    2,
		CompletedCount: 3,
		TotalCount:     5,
		RunningTaskIDs: []string{"T1"},
		Blockers:       []string{"waiting on review"},
		NextSteps:      []string{"run checkpoint"},
		LastValidation: &models.ValidationOutcome{Wave: 2, ViolationCount: 1, Blocked: false},
	}
	out := Summary(s)
	assert.Contains(t, out, "sess-1")
	assert.Contains(t, out, "T1")
	assert.Contains(t, out, "waiting on review")
	assert.Contains(t, out, "run checkpoint")
	assert.Contains(t, out, fmt.Sprintf("wave %d", s.LastValidation.Wave))
}
