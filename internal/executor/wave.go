package executor

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/harrison/wavegate/internal/ingestor"
	"github.com/harrison/wavegate/internal/logger"
	"github.com/harrison/wavegate/internal/models"
	"github.com/harrison/wavegate/internal/planstore"
	"github.com/harrison/wavegate/internal/taxonomy"
	"github.com/harrison/wavegate/internal/watchdog"
)

// WatchdogClient is the narrow surface the Executor uses to reach the
// Watchdog (spec §4.6 step 3: "Invoke the Watchdog's register operation").
// The Executor treats the watchdog strictly as an observer: a failed
// register call is logged, never fatal to the wave.
type WatchdogClient interface {
	Register(ctx context.Context, req watchdog.RegisterRequest) error
}

// Executor drives the plan wave-by-wave (spec §4.6, component F).
type Executor struct {
	PlanStore           *planstore.Store
	StatePath           string
	TaskListPath        string
	Gate                *Gate
	Watchdog            WatchdogClient
	EnforcementRequired bool

	WaveTimeout  time.Duration
	PollInterval time.Duration
	QuietPeriod  time.Duration

	Log logger.Logger

	// OnWaveComplete, if set, is called after each successful checkpoint
	// (used to drive the Context-Budget Monitor without a hard dependency
	// cycle between the two packages).
	OnWaveComplete func(ctx context.Context, waveIndex int)
}

// Run executes every remaining wave of the plan (spec §4.6's main loop).
// It returns nil once every wave is checkpointed, or the first blocking
// error encountered (IncompleteWave, WaveTimeout, ConstitutionViolation,
// CheckpointCommitFailed — none of which advance the recorded state).
func (e *Executor) Run(ctx context.Context) error {
	if e.PlanStore == nil {
		return taxonomy.New(taxonomy.PlanCorrupted, "no plan store configured")
	}
	plan, err := e.PlanStore.Read()
	if err != nil {
		return err
	}

	if e.Gate != nil && e.Gate.Rules == nil && e.EnforcementRequired {
		return taxonomy.New(taxonomy.ConstitutionMissing,
			"enforcement_required is set but no rule document was loaded").
			WithRemediation("provide a rule document path, or set enforcement_required: false")
	}

	state, err := LoadState(e.StatePath)
	if err != nil {
		return err
	}

	for _, wave := range plan.Waves {
		if state.IsCompleted(wave.Index) {
			continue
		}

		select {
		case <-ctx.Done():
			// spec §4.6 cancellation: stop before dispatching the next
			// wave, preserving every progress file and leaving the plan
			// intact.
			return ctx.Err()
		default:
		}

		state.CurrentWave = wave.Index
		if err := SaveState(e.StatePath, state); err != nil {
			return err
		}

		if e.Log != nil {
			e.Log.WaveStart(wave.Index, string(wave.Strategy), wave.Rationale, models.SortedIDs(wave.Tasks))
		}
		start := time.Now()

		if wave.Strategy == models.Sequential {
			for _, t := range wave.Tasks {
				single := wave
				single.Tasks = []models.Task{t}
				e.dispatch(ctx, single)
				if err := e.awaitHandshake(ctx, single); err != nil {
					return err
				}
			}
		} else {
			e.dispatch(ctx, wave)
			if err := e.awaitHandshake(ctx, wave); err != nil {
				return err
			}
		}

		result, err := e.Gate.Run(ctx, wave, "")
		if err != nil {
			return err
		}

		state.MarkCompleted(wave.Index)
		state.CurrentWave = wave.Index
		if err := SaveState(e.StatePath, state); err != nil {
			return err
		}

		if e.Log != nil {
			e.Log.WaveComplete(wave.Index, time.Since(start).Milliseconds())
		}
		_ = result

		if e.OnWaveComplete != nil {
			e.OnWaveComplete(ctx, wave.Index)
		}
	}
	return nil
}

// dispatch issues register requests for every task in wave (spec §4.6
// step 3). Run calls it once with the whole wave under PARALLEL (all
// registrations, then one whole-wave handshake) and once per task under
// SEQUENTIAL (register one task, await its handshake, then the next).
func (e *Executor) dispatch(ctx context.Context, wave models.Wave) {
	if e.Watchdog == nil {
		return
	}
	for _, t := range wave.Tasks {
		req := watchdog.RegisterRequest{
			TaskID:   t.ID,
			Command:  t.Description,
			RuleTags: t.RuleTags,
			Native:   &models.NativeRecord{EnvTag: fmt.Sprintf("TASK_ID=%s", t.ID)},
		}
		err := e.Watchdog.Register(ctx, req)
		if e.Log != nil {
			e.Log.TaskRegistered(t.ID, err == nil)
		}
	}
}

// awaitHandshake waits until every task in wave is checked off in the
// task list and has seen no further toggles for a stable quiet period
// (spec §4.6 step 4).
func (e *Executor) awaitHandshake(ctx context.Context, wave models.Wave) error {
	timeout := e.WaveTimeout
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	poll := e.PollInterval
	if poll <= 0 {
		poll = time.Second
	}
	quiet := e.QuietPeriod
	if quiet <= 0 {
		quiet = 5 * time.Second
	}

	deadline := time.Now().Add(timeout)
	var quietSince time.Time
	var lastPendingKey string

	for {
		pending, err := e.pendingTasks(wave)
		if err != nil {
			return err
		}

		key := fmt.Sprintf("%v", pending)
		if len(pending) == 0 {
			if quietSince.IsZero() || key != lastPendingKey {
				quietSince = time.Now()
			}
			if time.Since(quietSince) >= quiet {
				return nil
			}
		} else {
			quietSince = time.Time{}
			if e.Log != nil {
				e.Log.HandshakeWaiting(wave.Index, pending)
			}
		}
		lastPendingKey = key

		if time.Now().After(deadline) {
			return taxonomy.Newf(taxonomy.WaveTimeout,
				"wave %d handshake timed out after %s with tasks still pending: %v", wave.Index, timeout, pending).
				WithRemediation("workers continue running under watchdog supervision; re-run execute once the task list is updated, or cancel via watchdog kill")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(poll):
		}
	}
}

func (e *Executor) pendingTasks(wave models.Wave) ([]string, error) {
	f, err := os.Open(e.TaskListPath)
	if err != nil {
		return nil, fmt.Errorf("opening task list %s: %w", e.TaskListPath, err)
	}
	defer f.Close()
	tasks, _, err := ingestor.Ingest(f)
	if err != nil {
		return nil, err
	}
	done := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		done[t.ID] = t.Done
	}
	var pending []string
	for _, t := range wave.Tasks {
		if !done[t.ID] {
			pending = append(pending, t.ID)
		}
	}
	return pending, nil
}
