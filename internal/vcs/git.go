// Package vcs implements the narrow version-control adapter spec §6.3
// allows: status --short, diff --name-only <range>, add -A, commit -m
// <msg>, and log --format=... -n <k>, plus a mixed `reset` (Unstage) that
// only unstages after a failed commit. No other operations exist on this
// type; the Checkpoint Gate never force-pushes, amends, or resets hard.
//
// Grounded on the teacher's internal/executor/git_checkpointer.go
// CommandRunner-injectable-for-testing idiom (exec.CommandContext wrapped
// behind an interface), but deliberately narrower: branch creation,
// switching, and reset/rebase/amend — all present in the teacher's
// GitCheckpointer — are not ported, since §4.7 forbids them.
package vcs

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// CommandRunner abstracts subprocess execution so tests can substitute a
// fake without invoking a real VCS binary.
type CommandRunner interface {
	Run(ctx context.Context, dir string, name string, args ...string) (stdout string, err error)
}

// execRunner shells out via os/exec.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, dir, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

// Adapter drives a version-control tool for one project directory.
type Adapter struct {
	Runner  CommandRunner
	Dir     string
	Binary  string // defaults to "git"
}

// New returns an Adapter shelling out to the real VCS binary.
func New(dir string) *Adapter {
	return &Adapter{Runner: execRunner{}, Dir: dir, Binary: "git"}
}

// NewWithRunner returns an Adapter using a caller-supplied CommandRunner,
// for testing.
func NewWithRunner(dir string, runner CommandRunner) *Adapter {
	return &Adapter{Runner: runner, Dir: dir, Binary: "git"}
}

func (a *Adapter) binary() string {
	if a.Binary == "" {
		return "git"
	}
	return a.Binary
}

// StatusShort returns the porcelain short-format status lines.
func (a *Adapter) StatusShort(ctx context.Context) ([]string, error) {
	out, err := a.Runner.Run(ctx, a.Dir, a.binary(), "status", "--short")
	if err != nil {
		return nil, err
	}
	return splitNonEmptyLines(out), nil
}

// DiffNameOnly returns the list of files changed in rangeSpec (e.g.
// "HEAD~1..HEAD"), used by the Checkpoint Gate to compute the set of
// files changed since the previous checkpoint (spec §4.7 step 3).
func (a *Adapter) DiffNameOnly(ctx context.Context, rangeSpec string) ([]string, error) {
	out, err := a.Runner.Run(ctx, a.Dir, a.binary(), "diff", "--name-only", rangeSpec)
	if err != nil {
		return nil, err
	}
	return splitNonEmptyLines(out), nil
}

// AddAll stages every change in the working tree.
func (a *Adapter) AddAll(ctx context.Context) error {
	_, err := a.Runner.Run(ctx, a.Dir, a.binary(), "add", "-A")
	return err
}

// Commit commits staged changes with the given message.
func (a *Adapter) Commit(ctx context.Context, message string) error {
	_, err := a.Runner.Run(ctx, a.Dir, a.binary(), "commit", "-m", message)
	return err
}

// Unstage reverses a staged-but-uncommitted add, leaving the working tree
// untouched, used by the Checkpoint Gate's rollback-on-commit-failure path
// (spec §4.7 step 4). It uses "reset" (mixed, default), never "reset
// --hard".
func (a *Adapter) Unstage(ctx context.Context) error {
	_, err := a.Runner.Run(ctx, a.Dir, a.binary(), "reset")
	return err
}

// Log returns the last n commit hashes, most recent first, formatted with
// just the hash (format "%H").
func (a *Adapter) Log(ctx context.Context, n int) ([]string, error) {
	out, err := a.Runner.Run(ctx, a.Dir, a.binary(), "log", "--format=%H", "-n", fmt.Sprintf("%d", n))
	if err != nil {
		return nil, err
	}
	return splitNonEmptyLines(out), nil
}

// CurrentCommitHash returns the single most recent commit hash, or "" if
// the repository has no commits yet.
func (a *Adapter) CurrentCommitHash(ctx context.Context) (string, error) {
	hashes, err := a.Log(ctx, 1)
	if err != nil || len(hashes) == 0 {
		return "", err
	}
	return hashes[0], nil
}

func splitNonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}
