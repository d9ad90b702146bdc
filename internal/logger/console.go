package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// ConsoleLogger writes colorized, human-readable lines to a writer
// (normally stderr), gated on TTY detection and the NO_COLOR convention
// (spec §6.1's global flags). Grounded on the teacher's
// internal/logger/console.go.
type ConsoleLogger struct {
	mu      sync.Mutex
	w       io.Writer
	level   Level
	color   bool
	verbose bool
}

// NewConsoleLogger returns a ConsoleLogger writing to w. Color is enabled
// only when w looks like a TTY and NO_COLOR is unset.
func NewConsoleLogger(w io.Writer, level Level, verbose bool) *ConsoleLogger {
	useColor := false
	if f, ok := w.(*os.File); ok {
		useColor = isatty.IsTerminal(f.Fd()) && os.Getenv("NO_COLOR") == ""
	}
	return &ConsoleLogger{w: w, level: level, color: useColor, verbose: verbose}
}

func (c *ConsoleLogger) write(level Level, colorFn func(string, ...interface{}) string, format string, args ...any) {
	if level < c.level {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	msg := fmt.Sprintf(format, args...)
	if c.color && colorFn != nil {
		msg = colorFn(msg)
	}
	fmt.Fprintln(c.w, msg)
}

func (c *ConsoleLogger) WaveStart(index int, strategy, rationale string, taskIDs []string) {
	c.write(LevelInfo, color.New(color.FgCyan, color.Bold).SprintfFunc(),
		"wave %d [%s] starting: %s (%s)", index, strategy, rationale, strings.Join(taskIDs, ", "))
}

func (c *ConsoleLogger) WaveComplete(index int, durationMS int64) {
	c.write(LevelInfo, color.New(color.FgGreen).SprintfFunc(), "wave %d complete (%dms)", index, durationMS)
}

func (c *ConsoleLogger) TaskRegistered(taskID string, ok bool) {
	if ok {
		c.write(LevelInfo, nil, "task %s registered with watchdog", taskID)
		return
	}
	c.write(LevelWarn, color.New(color.FgYellow).SprintfFunc(), "task %s registration failed (continuing)", taskID)
}

func (c *ConsoleLogger) HandshakeWaiting(waveIndex int, pending []string) {
	c.write(LevelDebug, nil, "wave %d waiting on handshake: %s", waveIndex, strings.Join(pending, ", "))
}

func (c *ConsoleLogger) CheckpointPhase(waveIndex int, phase string) {
	c.write(LevelInfo, nil, "wave %d checkpoint: %s", waveIndex, phase)
}

func (c *ConsoleLogger) Violation(ruleID, file string, line int, severity, message string) {
	colorFn := color.New(color.FgYellow).SprintfFunc()
	if severity == "error" {
		colorFn = color.New(color.FgRed, color.Bold).SprintfFunc()
	}
	if line > 0 {
		c.write(LevelWarn, colorFn, "[%s] %s:%d %s: %s", severity, file, line, ruleID, message)
	} else {
		c.write(LevelWarn, colorFn, "[%s] %s %s: %s", severity, file, ruleID, message)
	}
}

func (c *ConsoleLogger) WatchdogSweep(running, orphans, zombies int) {
	c.write(LevelInfo, nil, "watchdog sweep: %d running, %d orphans, %d zombies", running, orphans, zombies)
}

func (c *ConsoleLogger) BudgetZone(zone string, estimatedTokens, windowTokens int) {
	c.write(LevelInfo, nil, "context budget: %s (%d/%d tokens)", zone, estimatedTokens, windowTokens)
}

func (c *ConsoleLogger) PreCompactionHook(exitCode int, ok bool) {
	if ok {
		c.write(LevelInfo, nil, "pre-compaction hook invoked (exit %d)", exitCode)
		return
	}
	c.write(LevelWarn, color.New(color.FgYellow).SprintfFunc(), "pre-compaction hook returned non-zero exit %d", exitCode)
}

func (c *ConsoleLogger) Warnf(format string, args ...any) {
	c.write(LevelWarn, color.New(color.FgYellow).SprintfFunc(), format, args...)
}

func (c *ConsoleLogger) Errorf(format string, args ...any) {
	c.write(LevelError, color.New(color.FgRed, color.Bold).SprintfFunc(), format, args...)
}

func (c *ConsoleLogger) Infof(format string, args ...any) {
	c.write(LevelInfo, nil, format, args...)
}
