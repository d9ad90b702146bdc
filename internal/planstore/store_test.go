package planstore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/wavegate/internal/models"
)

func samplePlan() *models.Plan {
	return &models.Plan{
		PhaseID:   "phase-1",
		CreatedAt: time.Now(),
		Waves: []models.Wave{
			{
				Index:           1,
				Strategy:        models.Sequential,
				Rationale:       "wave 1: 1 task(s), sequential",
				Tasks:           []models.Task{{ID: "T1", AgentRole: "Developer"}},
				CheckpointAfter: models.DefaultCheckpointPolicy(),
			},
		},
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := New(filepath.Join(dir, "plan.json"))

	require.NoError(t, store.Write(samplePlan()))

	got, err := store.Read()
	require.NoError(t, err)
	assert.Equal(t, "phase-1", got.PhaseID)
	require.Len(t, got.Waves, 1)
	assert.Equal(t, "T1", got.Waves[0].Tasks[0].ID)
}

func TestWriteCreatesBackupOnSecondWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.json")
	store := New(path)

	require.NoError(t, store.Write(samplePlan()))
	second := samplePlan()
	second.PhaseID = "phase-2"
	require.NoError(t, store.Write(second))

	_, err := os.Stat(path + ".backup")
	require.NoError(t, err)

	got, err := store.Read()
	require.NoError(t, err)
	assert.Equal(t, "phase-2", got.PhaseID)
}

func TestReadFallsBackToBackupOnCorruption(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.json")
	store := New(path)

	require.NoError(t, store.Write(samplePlan()))
	require.NoError(t, store.Write(samplePlan()))

	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	got, err := store.Read()
	require.NoError(t, err)
	assert.Equal(t, "phase-1", got.PhaseID)
}

func TestReadMovesAsideWhenBothCorrupt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	store := New(path)
	_, err := store.Read()
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var foundCorrupt bool
	for _, e := range entries {
		if filepath.Ext(e.Name()) != ".json" && e.Name() != "plan.json" {
			foundCorrupt = true
		}
	}
	assert.True(t, foundCorrupt)
}

func TestWriteRejectsInvalidPlan(t *testing.T) {
	dir := t.TempDir()
	store := New(filepath.Join(dir, "plan.json"))

	bad := &models.Plan{Waves: []models.Wave{{Index: 2}}}
	assert.Error(t, store.Write(bad))
}
