package models

import (
	"fmt"
	"time"
)

// Strategy tags how the Executor should dispatch a wave's tasks (spec
// §4.2/§4.6); it is strictly advisory — the core never spawns worker
// threads of its own for either value.
type Strategy string

const (
	Parallel   Strategy = "PARALLEL"
	Sequential Strategy = "SEQUENTIAL"
)

// CheckpointPolicy controls which Checkpoint Gate phases run after a wave.
type CheckpointPolicy struct {
	Enabled              bool `json:"enabled"`
	VerifyCompletion     bool `json:"verify_completion"`
	ValidateConstitution bool `json:"validate_constitution"`
	GitCommit            bool `json:"git_commit"`
	UpdateProgress       bool `json:"update_progress"`
}

// DefaultCheckpointPolicy is the policy the Planner attaches to every wave
// unless a caller overrides it.
func DefaultCheckpointPolicy() CheckpointPolicy {
	return CheckpointPolicy{
		Enabled:              true,
		VerifyCompletion:     true,
		ValidateConstitution: true,
		GitCommit:            true,
		UpdateProgress:       true,
	}
}

// Wave is a contiguous group of tasks with no mutual dependencies or file
// conflicts (spec §3).
type Wave struct {
	Index           int              `json:"wave_id"`
	Strategy        Strategy         `json:"strategy"`
	Rationale       string           `json:"rationale"`
	TaskIDs         []string         `json:"-"`
	Tasks           []Task           `json:"tasks"`
	CheckpointAfter CheckpointPolicy `json:"checkpoint_after"`
}

// Plan is the full ordered list of waves for a phase (spec §3).
type Plan struct {
	PhaseID   string    `json:"phase_id"`
	CreatedAt time.Time `json:"created_at"`
	Waves     []Wave    `json:"waves"`
}

// Validate checks Plan's own invariants: contiguous 1-based wave indices
// and every predecessor referenced by any task present somewhere in the
// plan (spec §3).
func (p *Plan) Validate() error {
	known := make(map[string]bool)
	for _, w := range p.Waves {
		for _, t := range w.Tasks {
			known[t.ID] = true
		}
	}
	for i, w := range p.Waves {
		if w.Index != i+1 {
			return fmt.Errorf("wave at position %d has index %d, expected %d", i, w.Index, i+1)
		}
		for _, t := range w.Tasks {
			for _, dep := range t.DependsOn {
				if !known[dep] {
					return fmt.Errorf("wave %d task %s: depends on unknown task %s", w.Index, t.ID, dep)
				}
			}
		}
	}
	return nil
}
