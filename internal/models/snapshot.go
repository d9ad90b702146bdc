package models

import "time"

// Snapshot summarizes session state at a point in time (spec §3/§4.9).
type Snapshot struct {
	SessionID        string    `json:"session_id"`
	Timestamp        time.Time `json:"timestamp"`
	Phase            string    `json:"phase"`
	CurrentWave      int       `json:"current_wave"`
	RunningTaskIDs   []string  `json:"running_task_ids"`
	CompletedCount   int       `json:"completed_count"`
	TotalCount       int       `json:"total_count"`
	NextSteps        []string  `json:"next_steps"`
	Blockers         []string  `json:"blockers"`
	LastCommitHashes []string  `json:"last_commit_hashes"`
	ModifiedFiles    []string  `json:"modified_files"`
	LastValidation   *ValidationOutcome `json:"last_validation,omitempty"`
}

// ValidationOutcome is a terse record of the Rule Engine's last verdict,
// referenced by a Snapshot (spec §3).
type ValidationOutcome struct {
	Wave           int    `json:"wave"`
	ViolationCount int    `json:"violation_count"`
	Blocked        bool   `json:"blocked"`
	Summary        string `json:"summary"`
}
