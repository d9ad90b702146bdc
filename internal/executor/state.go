// Package executor implements the Wave Executor and Checkpoint Gate
// (spec §4.6, §4.7, components F and G): it drives the plan wave-by-wave,
// dispatches register requests to the Watchdog, waits for the task-list
// handshake, and invokes the Checkpoint Gate between waves.
//
// Grounded on the teacher's internal/executor/wave.go for overall
// control-flow shape (per-wave structured logging gated on whether any
// task actually launched, skip-completed-wave resume logic, a pre-wave
// gate-check pattern), but the per-task dispatch is rewritten entirely:
// the teacher spawns and executes task goroutines in-process, while this
// executor never runs task code itself — it only registers with the
// watchdog and polls the shared task list for the checkbox handshake.
package executor

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/harrison/wavegate/internal/lock"
)

// State is the executor's own progress file (spec §4.6 pre-flight: "load
// or initialize the executor's own progress file wave_executor_state
// containing the last completed wave index and the list of completed
// wave indices").
type State struct {
	CurrentWave    int   `json:"current_wave"`
	CompletedWaves []int `json:"completed_waves"`
}

// IsCompleted reports whether waveIndex is already recorded as completed
// (spec L2/L3: safe re-execute, resume equivalence).
func (s *State) IsCompleted(waveIndex int) bool {
	for _, w := range s.CompletedWaves {
		if w == waveIndex {
			return true
		}
	}
	return false
}

// MarkCompleted appends waveIndex to CompletedWaves if not already
// present.
func (s *State) MarkCompleted(waveIndex int) {
	if !s.IsCompleted(waveIndex) {
		s.CompletedWaves = append(s.CompletedWaves, waveIndex)
	}
}

// LoadState reads the progress file, returning a fresh zero-value State
// if it does not yet exist (spec §4.6: "on resume, skip completed
// waves").
func LoadState(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &State{}, nil
		}
		return nil, fmt.Errorf("reading executor state %s: %w", path, err)
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		// A corrupt progress file is not one of the store errors named in
		// §7 (only plan/registry documents have that protocol); the safest
		// recovery here is to restart bookkeeping from empty rather than
		// block orchestration entirely, mirroring §7's "corrupt-state
		// preservation: move aside, continue with empty state" policy in
		// spirit even though this file has no backup of its own.
		return &State{}, nil
	}
	return &s, nil
}

// Save atomically persists s to path (spec §4.6 step 1: "Persist
// current_wave = w to the progress file (atomic write)").
func SaveState(path string, s *State) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling executor state: %w", err)
	}
	return lock.AtomicReplace(path, data, 0o644)
}
