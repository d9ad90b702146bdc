package budgetmonitor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSidecar(t *testing.T, dir, name string, size int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	return path
}

func TestEstimateZones(t *testing.T) {
	dir := t.TempDir()

	th := Thresholds{WindowTokens: 10000, WarningPct: 30, CriticalPct: 40, SeverePct: 50, PersonaThreshold: 5}

	// Each estimate also carries one default persona's overhead
	// (perPersonaOverheadTokens), so e.g. "warning" is 3500+250 = 37.5%.
	cases := []struct {
		name     string
		bytes    int
		wantZone Zone
	}{
		{"optimal", 1000 * bytesPerToken, ZoneOptimal},
		{"warning", 3500 * bytesPerToken, ZoneWarning},
		{"critical", 4500 * bytesPerToken, ZoneCritical},
		{"severe", 6000 * bytesPerToken, ZoneSevere},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeSidecar(t, dir, tc.name+".md", tc.bytes)
			mon := New([]string{path}, "", "", "", th, nil)
			est := mon.Estimate()
			assert.Equal(t, tc.wantZone, est.Zone)
		})
	}
}

func TestShouldInvokeHookOnPersonaThreshold(t *testing.T) {
	est := Estimate{Zone: ZoneOptimal, ActivePersonas: 5}
	assert.True(t, est.ShouldInvokeHook(5))

	est2 := Estimate{Zone: ZoneOptimal, ActivePersonas: 1}
	assert.False(t, est2.ShouldInvokeHook(5))
}

func TestShouldInvokeHookOnZone(t *testing.T) {
	est := Estimate{Zone: ZoneWarning, ActivePersonas: 1}
	assert.True(t, est.ShouldInvokeHook(5))
}

func TestMaybeInvokeHookNoHookConfigured(t *testing.T) {
	mon := New(nil, "", "", "", Thresholds{WindowTokens: 1000}, nil)
	// Must not panic with no hook path configured.
	mon.MaybeInvokeHook(context.Background(), 1, Estimate{Zone: ZoneSevere})
}

func TestActivePersonaCountDefaultsToOne(t *testing.T) {
	mon := New(nil, "", "", "", Thresholds{}, nil)
	assert.Equal(t, 1, mon.activePersonaCount())
}

func TestActivePersonaCountFromStateFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "personas.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"active_personas":["a","b","c"]}`), 0o644))
	mon := New(nil, path, "", "", Thresholds{}, nil)
	assert.Equal(t, 3, mon.activePersonaCount())
}
