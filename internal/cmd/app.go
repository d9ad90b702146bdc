// Package cmd implements wavegate's command-line surface (spec §6.1),
// explicitly framed by §1 as an external collaborator to THE CORE rather
// than part of it: a thin cobra wrapper exposing exactly the subcommand
// table §6.1 names as direct calls into the library packages.
//
// Grounded on the teacher's internal/cmd/root.go and cmd/conductor/main.go
// for the thin cobra-wrapper idiom (spf13/cobra, ldflags-injected version
// var, ExitOnErr-style os.Exit(1) in main), kept deliberately lean: the
// teacher's learning/observe subtrees have no spec component and are not
// ported here.
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/harrison/wavegate/internal/budgetmonitor"
	"github.com/harrison/wavegate/internal/config"
	"github.com/harrison/wavegate/internal/executor"
	"github.com/harrison/wavegate/internal/logger"
	"github.com/harrison/wavegate/internal/planstore"
	"github.com/harrison/wavegate/internal/ruleengine"
	"github.com/harrison/wavegate/internal/snapshot"
	"github.com/harrison/wavegate/internal/vcs"
	"github.com/harrison/wavegate/internal/watchdog"
)

// Version is injected at build time via -ldflags.
var Version = "dev"

// Paths collects every on-disk location the core reads or writes,
// conventionally rooted at a single state directory (spec §9's Open
// Question resolution: plan and registry are separate, independently
// locked documents).
type Paths struct {
	ProjectDir      string
	TaskList        string
	RuleDoc         string
	StateDir        string
	Plan            string
	Registry        string
	WatchdogLock    string
	ExecutorState   string
	ValidationCache string
	Progress        string
	ActivityLog     string
	SnapshotDir     string
	PersonaState    string
	PreCompactHook  string
}

// DefaultPaths returns the conventional layout rooted at projectDir.
func DefaultPaths(projectDir string) Paths {
	state := filepath.Join(projectDir, ".wavegate")
	return Paths{
		ProjectDir:      projectDir,
		TaskList:        filepath.Join(projectDir, "TASKS.md"),
		RuleDoc:         filepath.Join(projectDir, "CONSTITUTION.md"),
		StateDir:        state,
		Plan:            filepath.Join(state, "plan.json"),
		Registry:        filepath.Join(state, "process_registry.json"),
		WatchdogLock:    filepath.Join(state, "watchdog.lock"),
		ExecutorState:   filepath.Join(state, "wave_executor_state.json"),
		ValidationCache: filepath.Join(state, "validation_cache.json"),
		Progress:        filepath.Join(state, "PROGRESS.md"),
		ActivityLog:     filepath.Join(state, "activity.log"),
		SnapshotDir:     filepath.Join(state, "snapshots"),
		PersonaState:    filepath.Join(state, "personas.json"),
		// PreCompactHook has no file-path convention; NewApp resolves it
		// from config/flags (SPEC_FULL.md §6.6).
		PreCompactHook: "",
	}
}

// App bundles every wired dependency a subcommand needs. Built fresh on
// every invocation (spec §5: "the CLI surface is stateless between
// invocations; it re-reads files").
type App struct {
	Paths  Paths
	Config *config.Config
	Log    logger.Logger
}

// GlobalFlags carries §6.1's global flags plus the config file path.
type GlobalFlags struct {
	Verbose        bool
	DryRun         bool
	ConfigPath     string
	ProjectDir     string
	PreCompactHook string
}

// NewApp loads configuration, builds the logger, and resolves the
// conventional path layout for one invocation.
func NewApp(flags GlobalFlags) (*App, error) {
	projectDir := flags.ProjectDir
	if projectDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolving working directory: %w", err)
		}
		projectDir = wd
	}

	paths := DefaultPaths(projectDir)

	configPath := flags.ConfigPath
	if configPath == "" {
		configPath = filepath.Join(projectDir, "wavegate.yaml")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	dryRun := flags.DryRun
	mergeFlags := config.Flags{DryRun: &dryRun}
	if flags.PreCompactHook != "" {
		mergeFlags.PreCompactHook = &flags.PreCompactHook
	}
	cfg.MergeWithFlags(mergeFlags)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	paths.PreCompactHook = cfg.Budget.PreCompactHook

	level := logger.LevelInfo
	if flags.Verbose {
		level = logger.LevelDebug
	}
	log := logger.NewConsoleLogger(os.Stderr, level, flags.Verbose)

	return &App{Paths: paths, Config: cfg, Log: log}, nil
}

// loadRuleEngine loads the rule document if present. A missing document
// is non-fatal here; callers decide fatality from EnforcementRequired
// (spec §4.6 pre-flight, §8's documented boundary behavior).
func (a *App) loadRuleEngine() (*ruleengine.Engine, error) {
	f, err := os.Open(a.Paths.RuleDoc)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening rule document %s: %w", a.Paths.RuleDoc, err)
	}
	defer f.Close()
	engine, _, err := ruleengine.Load(f)
	if err != nil {
		return nil, err
	}
	return engine, nil
}

func (a *App) planStore() *planstore.Store {
	return planstore.New(a.Paths.Plan)
}

func (a *App) vcsAdapter() *vcs.Adapter {
	return vcs.New(a.Paths.ProjectDir)
}

func (a *App) watchdogSupervisor() *watchdog.Supervisor {
	return watchdog.New(
		a.Paths.Registry,
		a.Paths.WatchdogLock,
		a.Config.Lock.Timeout,
		a.Config.Watchdog.KillGracePeriod,
		a.Config.Watchdog.ContainerRuntime,
		a.Paths.ActivityLog,
		a.Log,
	)
}

func (a *App) budgetMonitor() *budgetmonitor.Monitor {
	sidecars := []string{a.Paths.ActivityLog, a.Paths.Progress}
	th := budgetmonitor.Thresholds{
		WindowTokens:     a.Config.Budget.WindowTokens,
		WarningPct:       a.Config.Budget.WarningPct,
		CriticalPct:      a.Config.Budget.CriticalPct,
		SeverePct:        a.Config.Budget.SeverePct,
		PersonaThreshold: a.Config.Budget.PersonaThreshold,
	}
	return budgetmonitor.New(sidecars, a.Paths.PersonaState, a.Paths.ActivityLog, a.Paths.PreCompactHook, th, a.Log)
}

func (a *App) snapshotStore() *snapshot.Store {
	return snapshot.New(a.Paths.SnapshotDir, a.Config.Snapshot.RetentionN)
}

// buildExecutor wires an executor.Executor from the App's config and
// paths (spec §4.6 pre-flight).
func (a *App) buildExecutor() (*executor.Executor, error) {
	rules, err := a.loadRuleEngine()
	if err != nil {
		return nil, err
	}

	gate := &executor.Gate{
		TaskListPath:    a.Paths.TaskList,
		ProgressPath:    a.Paths.Progress,
		ActivityLogPath: a.Paths.ActivityLog,
		VCS:             a.vcsAdapter(),
		Rules:           rules,
		Cache:           executor.LoadValidationCache(a.Paths.ValidationCache),
		LockTimeout:     a.Config.Lock.Timeout,
		Log:             a.Log,
	}

	sup := a.watchdogSupervisor()
	budget := a.budgetMonitor()

	exec := &executor.Executor{
		PlanStore:           a.planStore(),
		StatePath:           a.Paths.ExecutorState,
		TaskListPath:        a.Paths.TaskList,
		Gate:                gate,
		Watchdog:            sup,
		EnforcementRequired: a.Config.EnforcementRequired,
		WaveTimeout:         a.Config.Wave.Timeout,
		PollInterval:        a.Config.Wave.PollInterval,
		QuietPeriod:         a.Config.Wave.QuietPeriod,
		Log:                 a.Log,
		OnWaveComplete: func(ctx context.Context, waveIndex int) {
			est := budget.Estimate()
			budget.MaybeInvokeHook(ctx, waveIndex, est)
		},
	}
	return exec, nil
}
