// Package activitylog implements the single append-only helper every
// component writes its human-readable activity notes through (spec §9's
// re-architecture note: "a single helper that enforces size-bounded
// rotation" rather than each component open-coding its own append).
//
// The activity log's own schema is out of THE CORE's scope (spec §1): the
// core only ever appends timestamped one-line entries to it, never reads
// or parses it back.
//
// Grounded on the teacher's internal/logger/file.go rotation idiom (stat
// the current file, rename to a numbered backup once it crosses a size
// threshold) applied to this much smaller single-file, append-only case.
package activitylog

import (
	"fmt"
	"os"
	"time"
)

// maxBytes is the size threshold a single activity log file rotates at.
// The teacher's own file logger rotates per run; this log is long-lived
// across runs, so it rotates by size instead.
const maxBytes = 5 * 1024 * 1024

// Append writes a single timestamped line to path, rotating the existing
// file to path+".1" first if it has crossed maxBytes. A missing or empty
// path is a silent no-op: the activity log is an optional sidecar (spec
// §1), never a required one.
func Append(path, line string) error {
	if path == "" {
		return nil
	}
	if err := rotateIfLarge(path); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening activity log %s: %w", path, err)
	}
	defer f.Close()
	_, err = fmt.Fprintf(f, "%s %s\n", time.Now().UTC().Format(time.RFC3339), line)
	return err
}

func rotateIfLarge(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return nil
	}
	if info.Size() < maxBytes {
		return nil
	}
	backup := path + ".1"
	if err := os.Rename(path, backup); err != nil {
		return fmt.Errorf("rotating activity log %s: %w", path, err)
	}
	return nil
}
