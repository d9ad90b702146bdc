// Package logger implements wavegate's structured logging (SPEC_FULL
// §10/§6.7, ambient): a Logger interface with a colorized console
// implementation and a file implementation, grounded on the teacher's
// internal/logger/console.go and internal/logger/file.go. The interface
// itself is narrowed to the events this system actually emits (wave
// start/complete, task register/handshake, checkpoint phases, rule
// violations, watchdog sweep/orphan/zombie events, budget-zone
// transitions, pre-compaction hook invocations) rather than the teacher's
// much larger QC/budget/rate-limit-specific interface.
package logger

// Level is a log-message severity, matching the teacher's int-constant
// idiom (trace/debug/info/warn/error).
type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

// Logger is the event surface every core component reports through.
type Logger interface {
	WaveStart(index int, strategy, rationale string, taskIDs []string)
	WaveComplete(index int, durationMS int64)
	TaskRegistered(taskID string, ok bool)
	HandshakeWaiting(waveIndex int, pending []string)
	CheckpointPhase(waveIndex int, phase string)
	Violation(ruleID, file string, line int, severity, message string)
	WatchdogSweep(running, orphans, zombies int)
	BudgetZone(zone string, estimatedTokens, windowTokens int)
	PreCompactionHook(exitCode int, ok bool)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Infof(format string, args ...any)
}
