package watchdog

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// startTimeOf returns the kernel's reported process start time for pid as
// an opaque but stable string (spec §4.8's PID-recycling protection: "the
// kernel's reported process start time, an opaque but stable string for
// the lifetime of that PID"). On Linux this is field 22 of
// /proc/<pid>/stat (start time in clock ticks since boot); other platforms
// return an error and the caller falls back to liveness-only checks.
func startTimeOf(pid int) (string, error) {
	if runtime.GOOS != "linux" {
		return "", fmt.Errorf("start-time lookup unsupported on %s", runtime.GOOS)
	}
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return "", err
	}
	// Fields after the parenthesized comm name are space separated; the
	// comm name itself may contain spaces, so split on the closing paren.
	idx := strings.LastIndex(string(data), ")")
	if idx < 0 || idx+2 >= len(data) {
		return "", fmt.Errorf("unexpected /proc/%d/stat format", pid)
	}
	fields := strings.Fields(string(data[idx+2:]))
	const startTimeField = 19 // index into fields after state(3rd overall)
	if len(fields) <= startTimeField {
		return "", fmt.Errorf("unexpected /proc/%d/stat field count", pid)
	}
	return fields[startTimeField], nil
}

// isAlive reports whether pid currently exists, via signal 0 (the standard
// existence-check idiom; sends no actual signal).
func isAlive(pid int) bool {
	return unix.Kill(pid, 0) == nil
}

// killProcessGroup sends sig to pid's process group, used for both the
// graceful and forceful phases of the watchdog's kill operation (spec
// §4.8: "the kill operation signals the group, first with a graceful
// signal, then, after a grace period, with a forceful one").
func killProcessGroup(pgid int, sig unix.Signal) error {
	err := unix.Kill(-pgid, sig)
	if err != nil && err != unix.ESRCH {
		return fmt.Errorf("signaling process group %d: %w", pgid, err)
	}
	return nil
}

// killProcessGroupGraceful sends SIGTERM, waits grace, then sends SIGKILL
// if the group is still alive (checked via the representative pgid itself,
// since a process group's leader typically shares its PID with the PGID
// at registration time).
func killProcessGroupGraceful(pgid int, grace time.Duration) error {
	if err := killProcessGroup(pgid, unix.SIGTERM); err != nil {
		return err
	}
	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if !isAlive(pgid) {
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	if !isAlive(pgid) {
		return nil
	}
	return killProcessGroup(pgid, unix.SIGKILL)
}

// parsePID is a small helper for CLI/registry code that receives a PID as
// text (e.g. a register request from the CLI).
func parsePID(s string) (int, error) {
	return strconv.Atoi(s)
}

// readRSSBytes reads a process's resident set size from /proc/<pid>/status
// (the VmRSS line, reported in kB). CPU percentage is deliberately left
// unset by the caller: a single /proc/<pid>/stat sample gives cumulative
// ticks, not a percentage, without a prior sample and elapsed wall time to
// divide by — both memory-only is consistent with spec §4.8's "best-effort"
// framing.
func readRSSBytes(pid int) (int64, bool) {
	if runtime.GOOS != "linux" {
		return 0, false
	}
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/status", pid))
	if err != nil {
		return 0, false
	}
	for _, line := range strings.Split(string(data), "\n") {
		if !strings.HasPrefix(line, "VmRSS:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0, false
		}
		kb, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return 0, false
		}
		return kb * 1024, true
	}
	return 0, false
}
