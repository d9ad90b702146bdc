package models

import (
	"encoding/json"
	"time"
)

// Mode is a Process Record's execution mode (spec §3).
type Mode string

const (
	ModeNative    Mode = "native"
	ModeContainer Mode = "container"
)

// Status is a Process Record's lifecycle state (spec §4.8).
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusUnknown   Status = "unknown"
)

// NativeRecord is the native-mode liveness subrecord (spec §3/§6.2).
type NativeRecord struct {
	PID       int    `json:"pid"`
	PGID      int    `json:"pgid"`
	StartTime string `json:"start_time"`
	EnvTag    string `json:"env_tag,omitempty"`
}

// ResourceLimits are optional container resource caps (spec §3).
type ResourceLimits struct {
	Memory string `json:"memory,omitempty"`
	CPU    string `json:"cpu,omitempty"`
}

// ContainerRecord is the container-mode subrecord (spec §3/§6.2).
type ContainerRecord struct {
	ContainerID    string          `json:"container_id"`
	ContainerName  string          `json:"container_name"`
	ResourceLimits *ResourceLimits `json:"resource_limits,omitempty"`
}

// ProcessRecord is the watchdog's per-task entry (spec §3).
type ProcessRecord struct {
	TaskID          string           `json:"-"`
	Mode            Mode             `json:"mode"`
	Command         string           `json:"command"`
	Status          Status           `json:"status"`
	StartedAt       time.Time        `json:"started_at"`
	CompletedAt     *time.Time       `json:"completed_at"`
	RuleTags        []string         `json:"constitution_rules"`
	Native          *NativeRecord    `json:"native"`
	Container       *ContainerRecord `json:"container"`
	LastCPUPercent  float64          `json:"last_cpu_percent,omitempty"`
	LastMemoryBytes int64            `json:"last_memory_bytes,omitempty"`
}

// Registry is the in-memory form of the process registry document (spec
// §3/§6.2): a mapping from task ID to Process Record.
type Registry struct {
	Tasks map[string]*ProcessRecord
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{Tasks: make(map[string]*ProcessRecord)}
}

// IsRunning reports whether r has a RUNNING record for taskID.
func (r *Registry) IsRunning(taskID string) bool {
	rec, ok := r.Tasks[taskID]
	return ok && rec.Status == StatusRunning
}

// registryWire is the on-disk envelope named in spec §6.2: the task-ID to
// Process Record map lives under a top-level "tasks" key (the TaskID field
// itself is not duplicated inside the record body).
type registryWire struct {
	Tasks map[string]*ProcessRecord `json:"tasks"`
}

// MarshalJSON renders the registry as the §6.2 wire format.
func (r *Registry) MarshalJSON() ([]byte, error) {
	out := make(map[string]*ProcessRecord, len(r.Tasks))
	for id, rec := range r.Tasks {
		out[id] = rec
	}
	return json.Marshal(registryWire{Tasks: out})
}

// UnmarshalJSON parses the §6.2 wire format, populating each record's
// TaskID from its map key.
func (r *Registry) UnmarshalJSON(data []byte) error {
	var wire registryWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	for id, rec := range wire.Tasks {
		rec.TaskID = id
	}
	r.Tasks = wire.Tasks
	return nil
}
