// Package models holds the typed data model shared between the Ingestor,
// Planner, Executor, Rule Engine, and Watchdog: Task, Wave, Plan, Rule,
// Violation, Process Record/Registry, and Snapshot (spec §3).
package models

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

var taskIDPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]*-\d+$|^T\d+$`)

// Task is the core's typed representation of a single checklist item.
type Task struct {
	ID          string   `json:"task_id"`
	Description string   `json:"instruction"`
	AgentRole   string   `json:"agent_role"`
	Done        bool     `json:"-"`
	Files       []string `json:"file_locks"`
	DependsOn   []string `json:"dependencies"`
	RuleTags    []string `json:"constitution_rules"`
}

// DefaultAgentRole is used when ingestion finds no role hint for a task.
const DefaultAgentRole = "Developer"

// Validate checks the invariants §3 attaches to Task in isolation (ID
// shape, normalized file paths). Cross-task invariants (uniqueness,
// predecessor existence) are checked by the Planner across a whole set.
func (t *Task) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("task has empty id")
	}
	if !taskIDPattern.MatchString(t.ID) {
		return fmt.Errorf("task %s: id does not match <PREFIX>-<NNN> or T### shape", t.ID)
	}
	for _, f := range t.Files {
		if strings.HasPrefix(f, "./") {
			return fmt.Errorf("task %s: file path %q is not normalized (leading ./)", t.ID, f)
		}
	}
	return nil
}

// NormalizeFile strips a leading "./" and cleans the path the way the
// Ingestor normalizes every captured file reference before storing it.
func NormalizeFile(path string) string {
	path = strings.TrimPrefix(path, "./")
	return filepath.ToSlash(filepath.Clean(path))
}

// FileSet returns t.Files as a set for conflict-intersection checks.
func (t *Task) FileSet() map[string]struct{} {
	set := make(map[string]struct{}, len(t.Files))
	for _, f := range t.Files {
		set[f] = struct{}{}
	}
	return set
}

// HasTag reports whether t declares the given rule tag.
func (t *Task) HasTag(tag string) bool {
	for _, rt := range t.RuleTags {
		if rt == tag {
			return true
		}
	}
	return false
}

// ValidateTaskSet checks the cross-task invariants spec §3/§4.1/§4.2
// require: unique IDs and every predecessor present in the set. It does
// not check for cycles; that is the Planner's job (spec §4.2).
func ValidateTaskSet(tasks []Task) error {
	seen := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		if seen[t.ID] {
			return fmt.Errorf("task %s: duplicate task id", t.ID)
		}
		seen[t.ID] = true
	}
	for _, t := range tasks {
		for _, dep := range t.DependsOn {
			if !seen[dep] {
				return fmt.Errorf("task %s: depends on unknown task %s", t.ID, dep)
			}
		}
	}
	return nil
}

// SortedIDs returns the task IDs sorted lexically (sort.Strings), so
// "T10" sorts before "T2".
func SortedIDs(tasks []Task) []string {
	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	sort.Strings(ids)
	return ids
}
