package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/wavegate/internal/models"
	"github.com/harrison/wavegate/internal/taxonomy"
)

func TestPlanTwoWaveFileConflict(t *testing.T) {
	tasks := []models.Task{
		{ID: "T1", Files: []string{"a.py"}},
		{ID: "T2", Files: []string{"b.py"}},
		{ID: "T3", Files: []string{"a.py"}},
	}
	waves, err := Plan(tasks)
	require.NoError(t, err)
	require.Len(t, waves, 2)

	assert.Equal(t, models.Parallel, waves[0].Strategy)
	assert.ElementsMatch(t, []string{"T1", "T2"}, waves[0].TaskIDs)

	assert.Equal(t, models.Sequential, waves[1].Strategy)
	assert.Equal(t, []string{"T3"}, waves[1].TaskIDs)
}

func TestPlanExplicitPredecessor(t *testing.T) {
	tasks := []models.Task{
		{ID: "T1"},
		{ID: "T2", DependsOn: []string{"T1"}},
	}
	waves, err := Plan(tasks)
	require.NoError(t, err)
	require.Len(t, waves, 2)
	assert.Equal(t, models.Sequential, waves[0].Strategy)
	assert.Equal(t, models.Sequential, waves[1].Strategy)
	assert.Equal(t, []string{"T1"}, waves[0].TaskIDs)
	assert.Equal(t, []string{"T2"}, waves[1].TaskIDs)
}

func TestPlanCycleDetected(t *testing.T) {
	tasks := []models.Task{
		{ID: "T1", DependsOn: []string{"T2"}},
		{ID: "T2", DependsOn: []string{"T1"}},
	}
	_, err := Plan(tasks)
	require.Error(t, err)
	assert.True(t, taxonomy.OfKind(err, taxonomy.CircularDependency))
}

func TestPlanUnknownPredecessor(t *testing.T) {
	tasks := []models.Task{
		{ID: "T1", DependsOn: []string{"T9"}},
	}
	_, err := Plan(tasks)
	require.Error(t, err)
	assert.True(t, taxonomy.OfKind(err, taxonomy.UnknownPredecessor))
}

func TestPlanEmpty(t *testing.T) {
	waves, err := Plan(nil)
	require.NoError(t, err)
	assert.Empty(t, waves)
}

func TestPlanSingleTaskIsSequential(t *testing.T) {
	waves, err := Plan([]models.Task{{ID: "T1"}})
	require.NoError(t, err)
	require.Len(t, waves, 1)
	assert.Equal(t, models.Sequential, waves[0].Strategy)
}

func TestPlanWaveOrderRespectsInvariantI1(t *testing.T) {
	tasks := []models.Task{
		{ID: "T1"},
		{ID: "T2", DependsOn: []string{"T1"}},
		{ID: "T3", DependsOn: []string{"T2"}},
	}
	waves, err := Plan(tasks)
	require.NoError(t, err)

	indexOf := make(map[string]int)
	for _, w := range waves {
		for _, id := range w.TaskIDs {
			indexOf[id] = w.Index
		}
	}
	for _, w := range waves {
		for _, task := range w.Tasks {
			for _, dep := range task.DependsOn {
				assert.Less(t, indexOf[dep], w.Index)
			}
		}
	}
}
