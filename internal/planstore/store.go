// Package planstore implements the Plan Store (spec §4.3): atomic,
// schema-validated read/write of the wave plan document, with
// backup-before-overwrite and move-aside-on-corruption recovery.
//
// The atomic-write and backup idiom is grounded on the teacher's
// internal/filelock/filelock.go (reused via internal/lock) and on the
// directory-scan corruption tolerance in internal/budget/state.go; the
// backup-then-rename write protocol and the schema itself are specified
// fresh in spec §4.3/§6.2, which the teacher has no equivalent store for.
package planstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/harrison/wavegate/internal/lock"
	"github.com/harrison/wavegate/internal/models"
	"github.com/harrison/wavegate/internal/taxonomy"
)

// wirePlan mirrors spec §6.2's exact on-disk schema, wrapping the
// waves under "execution_plan" with an ISO-8601 string timestamp.
type wirePlan struct {
	ExecutionPlan struct {
		PhaseID   string        `json:"phase_id"`
		CreatedAt string        `json:"created_at"`
		Waves     []models.Wave `json:"waves"`
	} `json:"execution_plan"`
}

// Store owns a single plan document on disk at Path.
type Store struct {
	Path    string
	Timeout time.Duration
}

// New returns a Store for the plan file at path.
func New(path string) *Store {
	return &Store{Path: path, Timeout: lock.DefaultTimeout}
}

func (s *Store) backupPath() string { return s.Path + ".backup" }

// Write serializes plan to JSON with stable key ordering, validates it,
// backs up any prior plan, then atomically replaces the plan file (spec
// §4.3 write protocol, steps 1-5).
func (s *Store) Write(plan *models.Plan) error {
	if err := plan.Validate(); err != nil {
		return taxonomy.Newf(taxonomy.PlanCorrupted, "refusing to write invalid plan: %v", err).
			WithRemediation("fix the wave/task data before calling orchestrate again")
	}

	data, err := marshal(plan)
	if err != nil {
		return fmt.Errorf("marshaling plan: %w", err)
	}

	return lock.LockedFile(context.Background(), s.Path, s.Timeout, func() error {
		if _, err := os.Stat(s.Path); err == nil {
			if err := copyFile(s.Path, s.backupPath()); err != nil {
				return fmt.Errorf("backing up prior plan: %w", err)
			}
		}
		return lock.AtomicReplace(s.Path, data, 0o644)
	})
}

// Read parses and validates the plan document, falling back to the
// backup on validation failure, and moving the corrupted file aside with
// a timestamped suffix if the backup also fails to load (spec §4.3 read
// protocol).
func (s *Store) Read() (*models.Plan, error) {
	plan, err := s.readFrom(s.Path)
	if err == nil {
		return plan, nil
	}

	backupPlan, backupErr := s.readFrom(s.backupPath())
	if backupErr == nil {
		return backupPlan, nil
	}

	corruptPath := fmt.Sprintf("%s.corrupt-%s", s.Path, time.Now().UTC().Format("20060102T150405"))
	_ = os.Rename(s.Path, corruptPath)
	return nil, taxonomy.Newf(taxonomy.PlanCorrupted,
		"plan and backup both failed to parse; corrupt plan preserved at %s", corruptPath).
		WithCause(err)
}

func (s *Store) readFrom(path string) (*models.Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var wire wirePlan
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("parsing plan json: %w", err)
	}

	createdAt, err := time.Parse(time.RFC3339, wire.ExecutionPlan.CreatedAt)
	if err != nil {
		createdAt = time.Time{}
	}

	plan := &models.Plan{
		PhaseID:   wire.ExecutionPlan.PhaseID,
		CreatedAt: createdAt,
		Waves:     wire.ExecutionPlan.Waves,
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return plan, nil
}

func marshal(plan *models.Plan) ([]byte, error) {
	var wire wirePlan
	wire.ExecutionPlan.PhaseID = plan.PhaseID
	wire.ExecutionPlan.CreatedAt = plan.CreatedAt.UTC().Format(time.RFC3339)
	wire.ExecutionPlan.Waves = plan.Waves
	if wire.ExecutionPlan.Waves == nil {
		wire.ExecutionPlan.Waves = []models.Wave{}
	}
	return json.MarshalIndent(wire, "", "  ")
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
