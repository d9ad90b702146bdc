package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryMarshalJSONWrapsUnderTasksKey(t *testing.T) {
	reg := NewRegistry()
	reg.Tasks["T1"] = &ProcessRecord{
		Mode:      ModeNative,
		Command:   "go test ./...",
		Status:    StatusRunning,
		StartedAt: time.Unix(0, 0).UTC(),
		Native:    &NativeRecord{PID: 123, PGID: 123},
	}

	data, err := json.Marshal(reg)
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Contains(t, raw, "tasks")

	var tasks map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw["tasks"], &tasks))
	assert.Contains(t, tasks, "T1")
}

func TestRegistryUnmarshalJSONRoundTripsThroughTasksEnvelope(t *testing.T) {
	wire := []byte(`{"tasks":{"T1":{"mode":"native","command":"echo hi","status":"running","started_at":"2024-01-01T00:00:00Z","completed_at":null,"constitution_rules":null,"native":{"pid":123,"pgid":123,"start_time":""},"container":null}}}`)

	reg := NewRegistry()
	require.NoError(t, json.Unmarshal(wire, reg))

	require.Contains(t, reg.Tasks, "T1")
	assert.Equal(t, "T1", reg.Tasks["T1"].TaskID)
	assert.Equal(t, StatusRunning, reg.Tasks["T1"].Status)
}

func TestRegistryMarshalUnmarshalRoundTrip(t *testing.T) {
	reg := NewRegistry()
	reg.Tasks["T1"] = &ProcessRecord{
		Mode:    ModeContainer,
		Status:  StatusCompleted,
		Command: "build",
		Container: &ContainerRecord{
			ContainerID:   "abc123",
			ContainerName: "wavegate-t1",
		},
	}

	data, err := json.Marshal(reg)
	require.NoError(t, err)

	out := NewRegistry()
	require.NoError(t, json.Unmarshal(data, out))

	require.Contains(t, out.Tasks, "T1")
	assert.Equal(t, "T1", out.Tasks["T1"].TaskID)
	assert.Equal(t, "abc123", out.Tasks["T1"].Container.ContainerID)
}
