// Package budgetmonitor implements the Context-Budget Monitor (spec §4.5,
// component I): it estimates session context pressure from sidecar-file
// sizes and active-persona count, buckets the estimate into a named zone,
// and decides when to invoke the external pre-compaction hook between
// waves.
//
// Grounded on the teacher's internal/budget/tracker.go: the *shape* of
// "compute a ratio against a fixed window, bucket into named zones" is
// reused (its BlockStatus/zone idiom), but the dollar-cost/5-hour-
// billing-window specifics are teacher-domain and are not ported. The
// pre-compaction hook's subprocess-invocation contract (one JSON document
// on stdin, non-zero exit logged but non-fatal) is grounded on the
// CommandRunner-injection idiom in internal/executor/git_checkpointer.go.
package budgetmonitor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"

	"github.com/harrison/wavegate/internal/activitylog"
	"github.com/harrison/wavegate/internal/logger"
)

// Zone is one of the four named context-pressure buckets (spec §4.5).
type Zone string

const (
	ZoneOptimal  Zone = "optimal"
	ZoneWarning  Zone = "warning"
	ZoneCritical Zone = "critical"
	ZoneSevere   Zone = "severe"
)

// bytesPerToken is the fixed estimation constant spec §4.5 specifies
// ("tokens are estimated as bytes / 4").
const bytesPerToken = 4

// perPersonaOverheadTokens is the "small overhead constant per active
// persona" spec §4.5 mentions without naming a value; chosen small enough
// not to dominate the estimate for the common case of 1-2 personas.
const perPersonaOverheadTokens = 250

// Thresholds carries the configured zone boundaries and window size
// (spec's Warning/Critical/Severe percentages and token window, normally
// sourced from internal/config).
type Thresholds struct {
	WindowTokens     int
	WarningPct       int
	CriticalPct      int
	SeverePct        int
	PersonaThreshold int
}

// Estimate is the result of one budget computation.
type Estimate struct {
	SidecarBytes    int64
	ActivePersonas  int
	EstimatedTokens int
	WindowTokens    int
	Zone            Zone
}

// ShouldInvokeHook reports spec §4.5's decision rule: "between two waves,
// if in Warning or worse, or active personas >= 5, invoke the external
// hook".
func (e Estimate) ShouldInvokeHook(personaThreshold int) bool {
	if e.Zone != ZoneOptimal {
		return true
	}
	return e.ActivePersonas >= personaThreshold
}

// personaState is the shape of the JSON state file the monitor reads to
// estimate distinct active agents/personas (spec §4.5: "an optional count
// of distinct active agents/personas, estimated from a JSON state file it
// reads").
type personaState struct {
	ActivePersonas []string `json:"active_personas"`
}

// Monitor computes context-budget estimates by reading sidecar file sizes;
// it never writes them (spec §4.5's "the monitor never writes the
// sidecar files; it only reads sizes and invokes the hook").
type Monitor struct {
	SidecarPaths     []string
	PersonaStatePath string
	ActivityLogPath  string
	Thresholds       Thresholds
	HookPath         string // optional external pre-compaction executable
	Log              logger.Logger
}

// New returns a Monitor over the given sidecar files and persona-state
// file, using t for zone boundaries.
func New(sidecarPaths []string, personaStatePath, activityLogPath, hookPath string, t Thresholds, log logger.Logger) *Monitor {
	return &Monitor{
		SidecarPaths:     sidecarPaths,
		PersonaStatePath: personaStatePath,
		ActivityLogPath:  activityLogPath,
		Thresholds:       t,
		HookPath:         hookPath,
		Log:              log,
	}
}

// Estimate sums sidecar-file sizes, reads the persona count (best-effort,
// 1 if the state file is absent or unparseable), and buckets the result
// into a zone.
func (m *Monitor) Estimate() Estimate {
	var total int64
	for _, p := range m.SidecarPaths {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		total += info.Size()
	}

	personas := m.activePersonaCount()

	window := m.Thresholds.WindowTokens
	if window <= 0 {
		window = 200000
	}
	tokens := int(total/bytesPerToken) + personas*perPersonaOverheadTokens

	return Estimate{
		SidecarBytes:    total,
		ActivePersonas:  personas,
		EstimatedTokens: tokens,
		WindowTokens:    window,
		Zone:            zoneFor(tokens, window, m.Thresholds),
	}
}

func (m *Monitor) activePersonaCount() int {
	if m.PersonaStatePath == "" {
		return 1
	}
	data, err := os.ReadFile(m.PersonaStatePath)
	if err != nil {
		return 1
	}
	var state personaState
	if err := json.Unmarshal(data, &state); err != nil {
		return 1
	}
	if len(state.ActivePersonas) == 0 {
		return 1
	}
	return len(state.ActivePersonas)
}

func zoneFor(tokens, window int, t Thresholds) Zone {
	warning, critical, severe := t.WarningPct, t.CriticalPct, t.SeverePct
	if warning <= 0 {
		warning = 30
	}
	if critical <= 0 {
		critical = 40
	}
	if severe <= 0 {
		severe = 50
	}
	pct := float64(tokens) / float64(window) * 100
	switch {
	case pct >= float64(severe):
		return ZoneSevere
	case pct >= float64(critical):
		return ZoneCritical
	case pct >= float64(warning):
		return ZoneWarning
	default:
		return ZoneOptimal
	}
}

// hookRequest is the JSON document spec §6.5 requires on the hook's stdin.
type hookRequest struct {
	WaveIndex      int    `json:"wave_index"`
	ActivePersonas int    `json:"active_personas"`
	Reason         string `json:"reason"`
}

// MaybeInvokeHook evaluates est and, if warranted, invokes the configured
// pre-compaction hook with the wave index and a reason string on stdin
// (spec §6.5). A missing HookPath is a silent no-op (the hook is optional).
// A non-zero exit is logged but never returned as an error (spec §4.5:
// "best-effort: a non-zero return from the hook is logged and execution
// continues").
func (m *Monitor) MaybeInvokeHook(ctx context.Context, waveIndex int, est Estimate) {
	personaThreshold := m.Thresholds.PersonaThreshold
	if personaThreshold <= 0 {
		personaThreshold = 5
	}
	if !est.ShouldInvokeHook(personaThreshold) {
		return
	}
	if m.Log != nil {
		m.Log.BudgetZone(string(est.Zone), est.EstimatedTokens, est.WindowTokens)
	}
	if m.HookPath == "" {
		return
	}

	reason := fmt.Sprintf("context budget zone=%s personas=%d", est.Zone, est.ActivePersonas)
	req := hookRequest{WaveIndex: waveIndex, ActivePersonas: est.ActivePersonas, Reason: reason}
	payload, err := json.Marshal(req)
	if err != nil {
		if m.Log != nil {
			m.Log.Warnf("failed to marshal pre-compaction hook request: %v", err)
		}
		return
	}

	cmd := exec.CommandContext(ctx, m.HookPath)
	cmd.Stdin = bytes.NewReader(payload)
	out, runErr := cmd.CombinedOutput()
	exitCode := 0
	ok := true
	if runErr != nil {
		ok = false
		if exitErr, isExit := runErr.(*exec.ExitError); isExit {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}
	if m.Log != nil {
		m.Log.PreCompactionHook(exitCode, ok)
	}
	line := fmt.Sprintf("pre-compaction hook (wave %d, exit %d): %s", waveIndex, exitCode, string(out))
	if err := activitylog.Append(m.ActivityLogPath, line); err != nil && m.Log != nil {
		m.Log.Warnf("failed to append activity note: %v", err)
	}
}
