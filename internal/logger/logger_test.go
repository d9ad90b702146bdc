package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsoleLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleLogger(&buf, LevelWarn, false)
	l.Infof("this should not appear")
	l.Warnf("this should appear: %d", 42)

	out := buf.String()
	assert.NotContains(t, out, "this should not appear")
	assert.Contains(t, out, "this should appear: 42")
}

func TestConsoleLoggerNoColorOnNonTTY(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleLogger(&buf, LevelTrace, false)
	l.Errorf("boom")
	assert.NotContains(t, buf.String(), "\x1b[")
}

func TestConsoleLoggerWaveEvents(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleLogger(&buf, LevelTrace, false)
	l.WaveStart(1, "parallel", "no shared files", []string{"T1", "T2"})
	l.WaveComplete(1, 1234)

	out := buf.String()
	assert.Contains(t, out, "wave 1")
	assert.Contains(t, out, "T1, T2")
	assert.Contains(t, out, "1234ms")
}

func TestFileLoggerWritesLatestIndirection(t *testing.T) {
	dir := t.TempDir()
	fl, err := NewFileLogger(dir, LevelTrace)
	require.NoError(t, err)
	defer fl.Close()

	fl.WaveStart(1, "sequential", "explicit predecessor", []string{"T1"})
	fl.Infof("hello")

	latestPath := filepath.Join(dir, "logs", "latest.log")
	data, err := os.ReadFile(latestPath)
	require.NoError(t, err)
	runName := strings.TrimSpace(string(data))
	assert.True(t, strings.HasPrefix(runName, "run-"))

	runPath := filepath.Join(dir, "logs", runName)
	_, err = os.Stat(runPath)
	assert.NoError(t, err)
}

func TestFileLoggerEmitsValidJSONLines(t *testing.T) {
	dir := t.TempDir()
	fl, err := NewFileLogger(dir, LevelTrace)
	require.NoError(t, err)

	fl.BudgetZone("warning", 60000, 200000)
	require.NoError(t, fl.Close())

	data, err := os.ReadFile(filepath.Join(dir, "logs", "latest.log"))
	require.NoError(t, err)
	runName := strings.TrimSpace(string(data))

	logData, err := os.ReadFile(filepath.Join(dir, "logs", runName))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(logData)), "\n")
	require.Len(t, lines, 1)

	var rec fileEvent
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "budget_zone", rec.Event)
	assert.Equal(t, "warning", rec.Data["zone"])
}

func TestFileLoggerTaskNoteFile(t *testing.T) {
	dir := t.TempDir()
	fl, err := NewFileLogger(dir, LevelTrace)
	require.NoError(t, err)
	defer fl.Close()

	fl.TaskRegistered("T1", true)

	notePath := filepath.Join(dir, "logs", "tasks", "T1.log")
	data, err := os.ReadFile(notePath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "registered ok=true")
}

func TestFileLoggerSanitizesTaskIDForFilename(t *testing.T) {
	dir := t.TempDir()
	fl, err := NewFileLogger(dir, LevelTrace)
	require.NoError(t, err)
	defer fl.Close()

	fl.TaskRegistered("../../etc/passwd", true)

	entries, err := os.ReadDir(filepath.Join(dir, "logs", "tasks"))
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.Contains(e.Name(), ".."))
		assert.False(t, strings.Contains(e.Name(), "/"))
	}
}

var _ Logger = (*ConsoleLogger)(nil)
var _ Logger = (*FileLogger)(nil)
