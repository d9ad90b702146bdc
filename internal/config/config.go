// Package config implements wavegate's layered configuration (SPEC_FULL
// §10/§6.6, ambient): compiled defaults, merged with a YAML file, then
// environment variables, then CLI flags.
//
// Grounded on the teacher's internal/config/config.go: same layering
// order (defaults, then file, then environment, then CLI flags) and the
// same explicit Validate() method style.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is wavegate's full effective configuration.
type Config struct {
	Wave struct {
		Timeout       time.Duration `yaml:"timeout"`
		PollInterval  time.Duration `yaml:"poll_interval"`
		QuietPeriod   time.Duration `yaml:"quiet_period"`
	} `yaml:"wave"`

	Lock struct {
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"lock"`

	EnforcementRequired bool `yaml:"enforcement_required"`

	Constitution struct {
		QualityThreshold int `yaml:"quality_threshold"`
	} `yaml:"constitution"`

	Snapshot struct {
		RetentionN int `yaml:"retention_n"`
	} `yaml:"snapshot"`

	Budget struct {
		WindowTokens     int    `yaml:"window_tokens"`
		WarningPct       int    `yaml:"warning_pct"`
		CriticalPct      int    `yaml:"critical_pct"`
		SeverePct        int    `yaml:"severe_pct"`
		PersonaThreshold int    `yaml:"persona_threshold"`
		PreCompactHook   string `yaml:"pre_compact_hook"`
	} `yaml:"budget"`

	Watchdog struct {
		SweepInterval     time.Duration `yaml:"sweep_interval"`
		KillGracePeriod   time.Duration `yaml:"kill_grace_period"`
		ContainerRuntime  string        `yaml:"container_runtime"`
	} `yaml:"watchdog"`
}

// Default returns the compiled-in default configuration (spec's stated
// defaults: 5s lock timeout, 5-minute sweep interval, 20 retained
// snapshots, 1s handshake poll interval, 200000-token budget window,
// Warning/Critical/Severe at 30/40/50%).
func Default() *Config {
	c := &Config{}
	c.Wave.Timeout = 30 * time.Minute
	c.Wave.PollInterval = 1 * time.Second
	c.Wave.QuietPeriod = 5 * time.Second
	c.Lock.Timeout = 5 * time.Second
	c.EnforcementRequired = false
	c.Constitution.QualityThreshold = 50
	c.Snapshot.RetentionN = 20
	c.Budget.WindowTokens = 200000
	c.Budget.WarningPct = 30
	c.Budget.CriticalPct = 40
	c.Budget.SeverePct = 50
	c.Budget.PersonaThreshold = 5
	c.Watchdog.SweepInterval = 5 * time.Minute
	c.Watchdog.KillGracePeriod = 10 * time.Second
	c.Watchdog.ContainerRuntime = "docker"
	return c
}

// Load reads path (if present) and merges it over the defaults, then
// applies environment overrides. A missing file is not an error; the
// defaults (plus env overrides) are returned as-is.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func truthy(v string) bool {
	return v == "true" || v == "1"
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("WAVEGATE_ENFORCEMENT_REQUIRED"); v != "" {
		cfg.EnforcementRequired = truthy(v)
	}
	if v := os.Getenv("WAVEGATE_WAVE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Wave.Timeout = d
		}
	}
	if v := os.Getenv("WAVEGATE_LOCK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Lock.Timeout = d
		}
	}
	if v := os.Getenv("WAVEGATE_SNAPSHOT_RETENTION_N"); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			cfg.Snapshot.RetentionN = n
		}
	}
	if v := os.Getenv("WAVEGATE_PRE_COMPACT_HOOK"); v != "" {
		cfg.Budget.PreCompactHook = v
	}
}

// Flags carries the subset of config fields overridable from the CLI
// (spec §6.1's global flags plus per-command overrides); nil pointers
// mean "unset, keep the layered value" (the teacher's own MergeWithFlags
// convention).
type Flags struct {
	EnforcementRequired *bool
	WaveTimeout          *time.Duration
	DryRun               *bool
	PreCompactHook       *string
}

// MergeWithFlags applies the final, highest-priority override layer.
func (c *Config) MergeWithFlags(f Flags) {
	if f.EnforcementRequired != nil {
		c.EnforcementRequired = *f.EnforcementRequired
	}
	if f.WaveTimeout != nil {
		c.Wave.Timeout = *f.WaveTimeout
	}
	if f.PreCompactHook != nil {
		c.Budget.PreCompactHook = *f.PreCompactHook
	}
}

// Validate checks range/enum invariants across the layered config.
func (c *Config) Validate() error {
	if c.Wave.Timeout <= 0 {
		return fmt.Errorf("wave.timeout must be positive")
	}
	if c.Lock.Timeout <= 0 {
		return fmt.Errorf("lock.timeout must be positive")
	}
	if c.Snapshot.RetentionN <= 0 {
		return fmt.Errorf("snapshot.retention_n must be positive")
	}
	if !(0 < c.Budget.WarningPct && c.Budget.WarningPct < c.Budget.CriticalPct &&
		c.Budget.CriticalPct < c.Budget.SeverePct && c.Budget.SeverePct <= 100) {
		return fmt.Errorf("budget zone thresholds must satisfy 0 < warning < critical < severe <= 100")
	}
	if c.Budget.WindowTokens <= 0 {
		return fmt.Errorf("budget.window_tokens must be positive")
	}
	if c.Watchdog.SweepInterval <= 0 {
		return fmt.Errorf("watchdog.sweep_interval must be positive")
	}
	return nil
}
