// Package watchdog implements the Process Supervisor (spec §4.8, component
// H): registration, sweeping, orphan/zombie classification, rehydration,
// and kill/stop for both native process groups and containers.
//
// Grounded on the teacher's internal/budget/state.go for the
// directory-scan-tolerant-of-corruption persistence idiom (skip unreadable
// entries rather than fail the whole load), generalized from one-file-per-
// session to the single registry file spec §3/§6.2 names.
package watchdog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/harrison/wavegate/internal/lock"
	"github.com/harrison/wavegate/internal/models"
)

// Store owns the process registry's on-disk persistence (spec §3: "a
// cross-process advisory lock guards the daemon; the Executor writes into
// it only through the watchdog's command surface, never directly").
type Store struct {
	path string
}

// NewStore returns a Store bound to the registry file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// LockPath is the path handed to lock.LockedFile to guard the registry
// (spec §3); the advisory lock file itself is LockPath()+".lock".
func (s *Store) LockPath() string { return s.path }

// Load reads the registry. A missing file yields an empty registry. A
// corrupt file is moved aside (spec §4.8's "registry parse failure" failure
// mode) and warn (if non-nil) is called with a description of what
// happened; Load itself still returns a usable empty registry and a nil
// error in that case, since a corrupt registry is not a fatal condition.
func (s *Store) Load(warn func(string)) (*models.Registry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return models.NewRegistry(), nil
		}
		return nil, fmt.Errorf("reading registry %s: %w", s.path, err)
	}

	reg := models.NewRegistry()
	if err := json.Unmarshal(data, reg); err != nil {
		movedPath := s.path + fmt.Sprintf(".corrupt-%d", time.Now().UnixNano())
		if renameErr := os.Rename(s.path, movedPath); renameErr != nil {
			movedPath = ""
		}
		if warn != nil {
			if movedPath != "" {
				warn(fmt.Sprintf("registry %s is corrupt (%v); moved aside to %s, starting with an empty registry", s.path, err, movedPath))
			} else {
				warn(fmt.Sprintf("registry %s is corrupt (%v) and could not be moved aside; starting with an empty registry", s.path, err))
			}
		}
		return models.NewRegistry(), nil
	}
	if reg.Tasks == nil {
		reg.Tasks = make(map[string]*models.ProcessRecord)
	}
	return reg, nil
}

// Save persists the registry atomically under 0600 permissions (spec §3:
// "Stored as a single JSON file with 0600 permissions").
func (s *Store) Save(reg *models.Registry) error {
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling registry: %w", err)
	}
	return lock.AtomicReplace(s.path, data, 0o600)
}

// defaultRegistryPath is the conventional path under a state directory.
func defaultRegistryPath(stateDir string) string {
	return filepath.Join(stateDir, "watchdog", "registry.json")
}
