package executor

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/harrison/wavegate/internal/activitylog"
	"github.com/harrison/wavegate/internal/ingestor"
	"github.com/harrison/wavegate/internal/lock"
	"github.com/harrison/wavegate/internal/logger"
	"github.com/harrison/wavegate/internal/models"
	"github.com/harrison/wavegate/internal/ruleengine"
	"github.com/harrison/wavegate/internal/taxonomy"
	"github.com/harrison/wavegate/internal/vcs"
)

// GateResult is the Checkpoint Gate's successful outcome for one wave
// (spec §3's Checkpoint tuple: wave index, commit hash, validation
// result).
type GateResult struct {
	WaveIndex      int
	CommitHash     string
	Violations     []models.Violation
	ViolationsOnly bool // not set by Gate.Run; always false in the results it returns
}

// Gate implements the Checkpoint Gate (spec §4.7): completion
// verification, progress update, rule validation, checkpoint commit, and
// activity note, in that order, with a task-list lock held for the first
// two steps.
//
// Grounded on internal/executor/git_checkpointer.go (commit/diff
// operations via the narrow internal/vcs adapter) and on
// internal/executor/branch_guard.go's remediation-message register/style
// (not its branch-switching behavior, which the Gate never performs) for
// the IncompleteWave/ConstitutionViolation error text.
type Gate struct {
	TaskListPath     string
	ProgressPath     string
	ActivityLogPath  string
	VCS              *vcs.Adapter
	Rules            *ruleengine.Engine // nil if the rule document is absent
	Cache            *ValidationCache
	LockTimeout      time.Duration
	Log              logger.Logger
	lastCheckpointAt string // last successful checkpoint commit hash, "" before the first
}

// Run executes the full Checkpoint Gate protocol for wave (spec §4.7
// steps 1-5). message overrides the standardized commit message when
// non-empty (spec §6.1's `checkpoint [MSG]`).
func (g *Gate) Run(ctx context.Context, wave models.Wave, message string) (*GateResult, error) {
	var unfinished []string
	err := lock.LockedFile(ctx, g.TaskListPath, g.LockTimeout, func() error {
		tasks, err := g.readTaskList()
		if err != nil {
			return err
		}
		done := make(map[string]bool, len(tasks))
		for _, t := range tasks {
			done[t.ID] = t.Done
		}
		for _, t := range wave.Tasks {
			if !done[t.ID] {
				unfinished = append(unfinished, t.ID)
			}
		}
		if len(unfinished) > 0 {
			return nil
		}
		return g.updateProgress(wave, tasks)
	})
	if err != nil {
		return nil, err
	}
	if len(unfinished) > 0 {
		g.phase(wave.Index, "completion-verification: incomplete")
		sort.Strings(unfinished)
		return nil, taxonomy.Newf(taxonomy.IncompleteWave,
			"wave %d has unchecked tasks: %s", wave.Index, strings.Join(unfinished, ", ")).
			WithRemediation("have the worker toggle each task's checkbox to [x] in the task list, then re-run")
	}
	g.phase(wave.Index, "completion-verification: ok")
	g.phase(wave.Index, "progress-update")

	violations, err := g.validate(wave)
	if err != nil {
		return nil, fmt.Errorf("wave %d rule validation: %w", wave.Index, err)
	}
	g.phase(wave.Index, "rule-validation")
	for _, v := range violations {
		g.logViolation(v)
	}
	if models.AnyBlocking(violations) {
		return nil, taxonomy.Newf(taxonomy.ConstitutionViolation,
			"wave %d has %d rule violation(s), including at least one blocking error", wave.Index, len(violations)).
			WithRemediation("fix the flagged files (see violations above) and re-run checkpoint")
	}

	hash, err := g.commit(ctx, wave, message)
	if err != nil {
		return nil, err
	}
	g.phase(wave.Index, "checkpoint-commit")

	g.appendActivityNote(wave.Index, hash, violations)
	g.phase(wave.Index, "activity-note")

	g.lastCheckpointAt = hash
	return &GateResult{WaveIndex: wave.Index, CommitHash: hash, Violations: violations}, nil
}

func (g *Gate) phase(waveIndex int, phase string) {
	if g.Log != nil {
		g.Log.CheckpointPhase(waveIndex, phase)
	}
}

func (g *Gate) readTaskList() ([]models.Task, error) {
	f, err := os.Open(g.TaskListPath)
	if err != nil {
		return nil, fmt.Errorf("opening task list %s: %w", g.TaskListPath, err)
	}
	defer f.Close()
	tasks, _, err := ingestor.Ingest(f)
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// updateProgress writes the wave's completed/total summary into the
// progress Markdown artifact via atomic replace (spec §4.7 step 2).
func (g *Gate) updateProgress(wave models.Wave, allTasks []models.Task) error {
	if g.ProgressPath == "" {
		return nil
	}
	doneByID := make(map[string]bool, len(allTasks))
	for _, t := range allTasks {
		doneByID[t.ID] = t.Done
	}
	completed := 0
	for _, t := range allTasks {
		if t.Done {
			completed++
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# Progress\n\n")
	fmt.Fprintf(&b, "Wave %d: %d/%d tasks complete overall.\n\n", wave.Index, completed, len(allTasks))
	fmt.Fprintf(&b, "## Wave %d tasks\n\n", wave.Index)
	for _, t := range wave.Tasks {
		mark := " "
		if doneByID[t.ID] {
			mark = "x"
		}
		fmt.Fprintf(&b, "- [%s] %s\n", mark, t.ID)
	}
	return lock.AtomicReplace(g.ProgressPath, []byte(b.String()), 0o644)
}

// validate computes the set of files changed since the previous
// checkpoint, intersects it with the wave's declared file-write sets, and
// runs the Rule Engine on the result (spec §4.7 step 3).
func (g *Gate) validate(wave models.Wave) ([]models.Violation, error) {
	if g.VCS == nil {
		return nil, nil
	}

	changed, err := g.changedFiles(context.Background())
	if err != nil {
		return nil, err
	}

	waveFiles := make(map[string]bool)
	for _, t := range wave.Tasks {
		for _, f := range t.Files {
			waveFiles[f] = true
		}
	}
	var targets []string
	for _, f := range changed {
		if waveFiles[f] {
			targets = append(targets, f)
		}
	}
	sort.Strings(targets)

	if g.Rules == nil {
		return nil, nil
	}

	ruleTagSet := make(map[string]bool)
	for _, t := range wave.Tasks {
		for _, tag := range t.RuleTags {
			ruleTagSet[tag] = true
		}
	}
	var ruleTags []string
	for tag := range ruleTagSet {
		ruleTags = append(ruleTags, tag)
	}
	known, unknown := g.Rules.Resolve(ruleTags)
	for _, u := range unknown {
		if g.Log != nil {
			g.Log.Warnf("wave %d: unknown rule tag %q skipped", wave.Index, u)
		}
	}
	sort.Strings(known)

	var violations []models.Violation
	if len(known) == 0 {
		// No resolvable tags anywhere in the wave: run the default-
		// validator pass, every finding downgraded to warning (spec §4.4).
		v, err := g.Rules.ValidateDefault(targets)
		if err != nil {
			return nil, err
		}
		return v, nil
	}

	for _, file := range targets {
		for _, ruleID := range known {
			if cached, ok := g.cacheLookup(file, ruleID); ok {
				violations = append(violations, cached...)
				continue
			}
			v, err := g.Rules.Validate([]string{file}, []string{ruleID})
			if err != nil {
				return nil, err
			}
			g.cacheStore(file, ruleID, v)
			violations = append(violations, v...)
		}
	}
	if g.Cache != nil {
		if err := g.Cache.Save(); err != nil && g.Log != nil {
			g.Log.Warnf("failed to persist validation cache: %v", err)
		}
	}
	return violations, nil
}

func (g *Gate) cacheLookup(file, ruleID string) ([]models.Violation, bool) {
	if g.Cache == nil {
		return nil, false
	}
	return g.Cache.Lookup(file, ruleID)
}

func (g *Gate) cacheStore(file, ruleID string, v []models.Violation) {
	if g.Cache == nil {
		return
	}
	g.Cache.Store(file, ruleID, v)
}

// changedFiles returns the files changed since the previous checkpoint: a
// one-sided diff against the last checkpoint commit, or (before any
// checkpoint exists) the working-tree status.
func (g *Gate) changedFiles(ctx context.Context) ([]string, error) {
	if g.lastCheckpointAt == "" {
		statusLines, err := g.VCS.StatusShort(ctx)
		if err != nil {
			return nil, err
		}
		var files []string
		for _, line := range statusLines {
			fields := strings.Fields(line)
			if len(fields) >= 2 {
				files = append(files, fields[len(fields)-1])
			}
		}
		return files, nil
	}
	return g.VCS.DiffNameOnly(ctx, g.lastCheckpointAt)
}

func (g *Gate) logViolation(v models.Violation) {
	if g.Log != nil {
		g.Log.Violation(v.RuleID, v.File, v.Line, string(v.Severity), v.Message)
	}
}

// commit stages and commits the wave's changes with the standardized
// message (spec §4.7 step 4), rolling back staging on any failure (never
// force, amend, or hard-reset).
func (g *Gate) commit(ctx context.Context, wave models.Wave, message string) (string, error) {
	if g.VCS == nil {
		return "", nil
	}
	if err := g.VCS.AddAll(ctx); err != nil {
		return "", g.commitFailed(ctx, err)
	}
	msg := message
	if msg == "" {
		msg = fmt.Sprintf("[CHECKPOINT] Wave %d complete", wave.Index)
	}
	if err := g.VCS.Commit(ctx, msg); err != nil {
		return "", g.commitFailed(ctx, err)
	}
	hash, err := g.VCS.CurrentCommitHash(ctx)
	if err != nil {
		return "", fmt.Errorf("reading commit hash after successful commit: %w", err)
	}
	return hash, nil
}

func (g *Gate) commitFailed(ctx context.Context, cause error) error {
	if unstageErr := g.VCS.Unstage(ctx); unstageErr != nil && g.Log != nil {
		g.Log.Warnf("failed to unstage after commit failure: %v", unstageErr)
	}
	return taxonomy.Newf(taxonomy.CheckpointCommitFailed, "checkpoint commit failed: %v", cause).
		WithCause(cause).
		WithRemediation("working tree is untouched and staging has been reset; resolve the underlying VCS error and re-run checkpoint")
}

// appendActivityNote appends a one-line entry naming the wave, commit
// hash, and validation outcome to the activity log (spec §4.7 step 5).
// The activity log's own schema is out of THE CORE's scope (spec §1); the
// core only ever appends entries to it.
func (g *Gate) appendActivityNote(waveIndex int, commitHash string, violations []models.Violation) {
	line := fmt.Sprintf("[CHECKPOINT] wave %d complete, commit %s, %d violation(s)",
		waveIndex, commitHash, len(violations))
	if err := activitylog.Append(g.ActivityLogPath, line); err != nil && g.Log != nil {
		g.Log.Warnf("failed to append activity note: %v", err)
	}
}
