package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskValidate(t *testing.T) {
	t.Run("valid prefixed id", func(t *testing.T) {
		task := Task{ID: "T-001", Files: []string{"a.py"}}
		require.NoError(t, task.Validate())
	})

	t.Run("valid auto id", func(t *testing.T) {
		task := Task{ID: "T1"}
		require.NoError(t, task.Validate())
	})

	t.Run("empty id", func(t *testing.T) {
		task := Task{ID: ""}
		assert.Error(t, task.Validate())
	})

	t.Run("malformed id", func(t *testing.T) {
		task := Task{ID: "not a valid id"}
		assert.Error(t, task.Validate())
	})

	t.Run("unnormalized file path", func(t *testing.T) {
		task := Task{ID: "T1", Files: []string{"./a.py"}}
		assert.Error(t, task.Validate())
	})
}

func TestNormalizeFile(t *testing.T) {
	assert.Equal(t, "a.py", NormalizeFile("./a.py"))
	assert.Equal(t, "dir/a.py", NormalizeFile("dir/a.py"))
}

func TestValidateTaskSet(t *testing.T) {
	t.Run("duplicate id", func(t *testing.T) {
		tasks := []Task{{ID: "T1"}, {ID: "T1"}}
		assert.Error(t, ValidateTaskSet(tasks))
	})

	t.Run("unknown predecessor", func(t *testing.T) {
		tasks := []Task{{ID: "T1", DependsOn: []string{"T9"}}}
		assert.Error(t, ValidateTaskSet(tasks))
	})

	t.Run("valid set", func(t *testing.T) {
		tasks := []Task{{ID: "T1"}, {ID: "T2", DependsOn: []string{"T1"}}}
		assert.NoError(t, ValidateTaskSet(tasks))
	})
}

func TestHasTag(t *testing.T) {
	task := Task{ID: "T1", RuleTags: []string{"NO_SECRETS"}}
	assert.True(t, task.HasTag("NO_SECRETS"))
	assert.False(t, task.HasTag("OTHER"))
}
