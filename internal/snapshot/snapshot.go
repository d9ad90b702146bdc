// Package snapshot implements Snapshot & Recall (spec §4.9, component J):
// capturing a session's mental model to a timestamped JSON file, keeping
// the N most recent, and reading the latest one back.
//
// Grounded on the teacher's internal/budget/state.go ExecutionState/
// StateManager shape (directory-scan listing, corrupt-file-tolerant
// skip-and-continue) and on internal/logger/file.go's latest.log
// indirection-file technique for the "latest indicator" requirement (a
// small indirection file is used here rather than a true symlink, for
// Windows-filesystem portability — the teacher's own logger already
// prefers this pattern in at least one code path). Rotation is changed
// from the teacher's calendar-age expiry to spec's count-based "keep N
// most recent, default 20" policy (a deliberate divergence, not an
// oversight).
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/harrison/wavegate/internal/lock"
	"github.com/harrison/wavegate/internal/models"
	"github.com/harrison/wavegate/internal/taxonomy"
)

// Store owns the snapshot directory: writing new snapshots, rotating old
// ones, and resolving/reading the latest.
type Store struct {
	Dir        string
	RetentionN int
}

// New returns a Store rooted at dir, retaining retentionN snapshots
// (spec default 20).
func New(dir string, retentionN int) *Store {
	if retentionN <= 0 {
		retentionN = 20
	}
	return &Store{Dir: dir, RetentionN: retentionN}
}

const latestIndirectionFile = "latest.json"

// filename derives a sortable, collision-resistant file name from a
// snapshot's timestamp and session ID.
func filename(s *models.Snapshot) string {
	return fmt.Sprintf("snapshot-%s-%s.json", s.Timestamp.UTC().Format("20060102T150405"), sanitizeID(s.SessionID))
}

func sanitizeID(id string) string {
	if id == "" {
		return "default"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, id)
}

// Write rotates first (spec §4.9: "rotation runs before write"), then
// persists s to a new timestamped file and updates the latest indicator.
func (st *Store) Write(s *models.Snapshot) (string, error) {
	if err := os.MkdirAll(st.Dir, 0o755); err != nil {
		return "", fmt.Errorf("creating snapshot directory %s: %w", st.Dir, err)
	}
	if err := st.rotate(); err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling snapshot: %w", err)
	}

	path := filepath.Join(st.Dir, filename(s))
	if err := lock.AtomicReplace(path, data, 0o644); err != nil {
		return "", err
	}

	latestPath := filepath.Join(st.Dir, latestIndirectionFile)
	if err := lock.AtomicReplace(latestPath, []byte(filepath.Base(path)), 0o644); err != nil {
		return "", fmt.Errorf("updating latest indicator: %w", err)
	}
	return path, nil
}

// listSnapshotFiles returns every snapshot-*.json file in the directory,
// oldest first, skipping anything that fails to stat (corrupt-tolerant,
// per the teacher's directory-scan idiom).
func (st *Store) listSnapshotFiles() ([]string, error) {
	entries, err := os.ReadDir(st.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading snapshot directory %s: %w", st.Dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), "snapshot-") && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names) // timestamp prefix sorts chronologically
	return names, nil
}

// rotate deletes the oldest snapshots beyond RetentionN.
func (st *Store) rotate() error {
	names, err := st.listSnapshotFiles()
	if err != nil {
		return err
	}
	if len(names) < st.RetentionN {
		return nil
	}
	excess := len(names) - st.RetentionN + 1 // +1 to make room for the new write
	for _, n := range names[:excess] {
		_ = os.Remove(filepath.Join(st.Dir, n))
	}
	return nil
}

// Latest resolves and parses the most recently written snapshot (spec
// §4.9: "recall is idempotent and read-only"). A missing snapshot
// directory or empty history yields a NoSuchTask-flavored error — spec
// §6.1's `recall` command exits 1 ("none") in that case.
func (st *Store) Latest() (*models.Snapshot, error) {
	latestPath := filepath.Join(st.Dir, latestIndirectionFile)
	if data, err := os.ReadFile(latestPath); err == nil {
		name := strings.TrimSpace(string(data))
		if snap, err := st.readFrom(filepath.Join(st.Dir, name)); err == nil {
			return snap, nil
		}
	}

	// The indirection file is itself just an optimization; fall back to a
	// directory scan if it is missing or stale.
	names, err := st.listSnapshotFiles()
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, taxonomy.New(taxonomy.NoSuchTask, "no snapshots found")
	}
	return st.readFrom(filepath.Join(st.Dir, names[len(names)-1]))
}

func (st *Store) readFrom(path string) (*models.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s models.Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing snapshot %s: %w", path, err)
	}
	return &s, nil
}

// BuildOptions carries the sources Capture reads from to assemble a
// Snapshot (spec §4.9 Capture: commit hashes, modified files, wave
// progress, running tasks, task-list counters, curated next-steps/
// blockers sections, last validation outcome).
type BuildOptions struct {
	SessionID        string
	Phase            string
	CurrentWave      int
	RunningTaskIDs   []string
	CompletedCount   int
	TotalCount       int
	NextSteps        []string
	Blockers         []string
	LastCommitHashes []string
	ModifiedFiles    []string
	LastValidation   *models.ValidationOutcome
	Now              time.Time
}

// Build assembles a Snapshot from already-gathered inputs (the actual
// gathering — reading executor state, running a VCS status, invoking the
// watchdog's rehydrate, re-parsing the task list — is the CLI's `finalize`
// command's job; this function is pure so it stays trivially testable).
func Build(opts BuildOptions) *models.Snapshot {
	now := opts.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return &models.Snapshot{
		SessionID:        opts.SessionID,
		Timestamp:        now,
		Phase:            opts.Phase,
		CurrentWave:      opts.CurrentWave,
		RunningTaskIDs:   opts.RunningTaskIDs,
		CompletedCount:   opts.CompletedCount,
		TotalCount:       opts.TotalCount,
		NextSteps:        opts.NextSteps,
		Blockers:         opts.Blockers,
		LastCommitHashes: opts.LastCommitHashes,
		ModifiedFiles:    opts.ModifiedFiles,
		LastValidation:   opts.LastValidation,
	}
}

// Summary renders a human-readable recall summary (spec §4.9: "print a
// human summary and return structured data the CLI may use to display
// next actions").
func Summary(s *models.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "session %s @ %s\n", s.SessionID, s.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(&b, "phase %s, wave %d, %d/%d tasks complete\n", s.Phase, s.CurrentWave, s.CompletedCount, s.TotalCount)
	if len(s.RunningTaskIDs) > 0 {
		fmt.Fprintf(&b, "running: %s\n", strings.Join(s.RunningTaskIDs, ", "))
	}
	if len(s.Blockers) > 0 {
		fmt.Fprintf(&b, "blockers:\n")
		for _, blk := range s.Blockers {
			fmt.Fprintf(&b, "  - %s\n", blk)
		}
	}
	if len(s.NextSteps) > 0 {
		fmt.Fprintf(&b, "next steps:\n")
		for _, n := range s.NextSteps {
			fmt.Fprintf(&b, "  - %s\n", n)
		}
	}
	if s.LastValidation != nil {
		fmt.Fprintf(&b, "last validation: wave %d, %d violation(s), blocked=%v\n",
			s.LastValidation.Wave, s.LastValidation.ViolationCount, s.LastValidation.Blocked)
	}
	return b.String()
}
