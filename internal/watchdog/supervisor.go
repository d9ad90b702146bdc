package watchdog

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"time"

	"github.com/harrison/wavegate/internal/activitylog"
	"github.com/harrison/wavegate/internal/lock"
	"github.com/harrison/wavegate/internal/logger"
	"github.com/harrison/wavegate/internal/models"
	"github.com/harrison/wavegate/internal/taxonomy"
)

// RegisterRequest is the command surface's register operation input (spec
// §4.8, §6): exactly one of Native or Container is populated.
type RegisterRequest struct {
	TaskID    string
	Command   string
	RuleTags  []string
	Native    *models.NativeRecord
	Container *models.ContainerRecord
}

// SweepReport summarizes one sweep cycle (spec §4.8's orphan/zombie
// counters, surfaced through WatchdogSweep logging and `watchdog report`).
type SweepReport struct {
	Running int
	Orphans int
	Zombies int
}

// RehydrateEntry is one line of the rehydrate summary (spec §4.8:
// "a terse, human-readable summary of every RUNNING record").
type RehydrateEntry struct {
	TaskID  string
	Age     time.Duration
	Command string
	CPU     float64
	Memory  int64
}

// Supervisor implements the watchdog's command surface: register,
// update-pid, complete, kill, list, sweep, rehydrate, report (spec §4.8).
type Supervisor struct {
	store           *Store
	sweepLock       *lock.SingletonLock
	lockTimeout     time.Duration
	killGrace       time.Duration
	containerRT     *ContainerRuntime
	log             logger.Logger
	activityLogPath string
	warnedRuntime   bool
}

// New constructs a Supervisor. registryPath and sweepLockPath are
// conventionally under the same state directory but kept separate so the
// registry's per-write lock (registryPath+".lock") never collides with the
// daemon's singleton sweep lock. activityLogPath may be empty; orphan and
// zombie detections during Sweep are then simply not recorded anywhere
// besides the Logger.
func New(registryPath, sweepLockPath string, lockTimeout, killGrace time.Duration, containerBinary, activityLogPath string, log logger.Logger) *Supervisor {
	return &Supervisor{
		store:           NewStore(registryPath),
		sweepLock:       lock.NewSingletonLock(sweepLockPath),
		lockTimeout:     lockTimeout,
		killGrace:       killGrace,
		containerRT:     NewContainerRuntime(containerBinary),
		log:             log,
		activityLogPath: activityLogPath,
	}
}

// withRegistry loads the registry under its advisory lock, runs fn, and
// persists the (possibly mutated) registry unless fn errors.
func (s *Supervisor) withRegistry(ctx context.Context, fn func(*models.Registry) error) error {
	return lock.LockedFile(ctx, s.store.LockPath(), s.lockTimeout, func() error {
		reg, err := s.store.Load(func(msg string) {
			if s.log != nil {
				s.log.Warnf("%s", msg)
			}
		})
		if err != nil {
			return err
		}
		if err := fn(reg); err != nil {
			return err
		}
		return s.store.Save(reg)
	})
}

// Register creates a new RUNNING record (spec §4.8: "it is an error to
// register a task ID that already exists in RUNNING status").
func (s *Supervisor) Register(ctx context.Context, req RegisterRequest) error {
	return s.withRegistry(ctx, func(reg *models.Registry) error {
		if existing, ok := reg.Tasks[req.TaskID]; ok && existing.Status == models.StatusRunning {
			return taxonomy.Newf(taxonomy.AlreadyRegistered, "task %s is already registered and running", req.TaskID)
		}
		mode := models.ModeNative
		if req.Container != nil {
			mode = models.ModeContainer
		}
		reg.Tasks[req.TaskID] = &models.ProcessRecord{
			TaskID:    req.TaskID,
			Mode:      mode,
			Command:   req.Command,
			Status:    models.StatusRunning,
			StartedAt: walltime(),
			RuleTags:  req.RuleTags,
			Native:    req.Native,
			Container: req.Container,
		}
		return nil
	})
}

// UpdatePID updates the native PID/PGID/start-time on an existing record,
// used when the caller learns the real child PID after a fork/exec
// indirection (e.g. a shell wrapper).
func (s *Supervisor) UpdatePID(ctx context.Context, taskID string, pid, pgid int) error {
	return s.withRegistry(ctx, func(reg *models.Registry) error {
		rec, ok := reg.Tasks[taskID]
		if !ok {
			return taxonomy.Newf(taxonomy.NoSuchTask, "no registered task %s", taskID)
		}
		st, err := startTimeOf(pid)
		if err != nil {
			st = ""
		}
		envTag := ""
		if rec.Native != nil {
			envTag = rec.Native.EnvTag
		}
		rec.Native = &models.NativeRecord{PID: pid, PGID: pgid, StartTime: st, EnvTag: envTag}
		return nil
	})
}

// Complete transitions a record to COMPLETED.
func (s *Supervisor) Complete(ctx context.Context, taskID string) error {
	return s.withRegistry(ctx, func(reg *models.Registry) error {
		rec, ok := reg.Tasks[taskID]
		if !ok {
			return taxonomy.Newf(taxonomy.NoSuchTask, "no registered task %s", taskID)
		}
		now := walltime()
		rec.Status = models.StatusCompleted
		rec.CompletedAt = &now
		return nil
	})
}

// Kill sends the graceful-then-forceful signal sequence (native) or calls
// Stop (container) for taskID's record, regardless of its current status
// (an operator-initiated kill, spec §6.1's `watchdog kill`).
func (s *Supervisor) Kill(ctx context.Context, taskID string) error {
	return s.withRegistry(ctx, func(reg *models.Registry) error {
		rec, ok := reg.Tasks[taskID]
		if !ok {
			return taxonomy.Newf(taxonomy.NoSuchTask, "no registered task %s", taskID)
		}
		return s.killRecord(ctx, rec)
	})
}

func (s *Supervisor) killRecord(ctx context.Context, rec *models.ProcessRecord) error {
	switch rec.Mode {
	case models.ModeNative:
		if rec.Native == nil || runtime.GOOS != "linux" {
			return nil
		}
		return killProcessGroupGraceful(rec.Native.PGID, s.killGrace)
	case models.ModeContainer:
		if rec.Container == nil {
			return nil
		}
		return s.containerRT.Stop(ctx, rec.Container.ContainerID, s.killGrace)
	}
	return nil
}

// List returns every record, sorted by task ID for deterministic output.
func (s *Supervisor) List(ctx context.Context) ([]*models.ProcessRecord, error) {
	var out []*models.ProcessRecord
	err := s.withRegistry(ctx, func(reg *models.Registry) error {
		for _, rec := range reg.Tasks {
			out = append(out, rec)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].TaskID < out[j].TaskID })
	return out, err
}

// Sweep runs one sweep cycle (spec §4.8): verify liveness of every RUNNING
// record, reclassify orphans (FAILED) and zombies (kill + stay COMPLETED),
// record best-effort resource snapshots, and persist atomically.
func (s *Supervisor) Sweep(ctx context.Context) (SweepReport, error) {
	var report SweepReport
	err := s.withRegistry(ctx, func(reg *models.Registry) error {
		for _, rec := range reg.Tasks {
			switch rec.Status {
			case models.StatusRunning:
				alive, err := s.checkAlive(ctx, rec)
				if err != nil {
					rec.Status = models.StatusUnknown
					continue
				}
				if alive {
					report.Running++
					s.snapshotResources(rec)
				} else {
					rec.Status = models.StatusFailed
					report.Orphans++
					s.noteActivity(fmt.Sprintf("orphan detected: task %s (no live process matching its start time)", rec.TaskID))
				}
			case models.StatusUnknown:
				alive, err := s.checkAlive(ctx, rec)
				if err != nil {
					continue
				}
				if alive {
					rec.Status = models.StatusRunning
					report.Running++
				} else {
					rec.Status = models.StatusFailed
					report.Orphans++
					s.noteActivity(fmt.Sprintf("orphan detected: task %s (no live process matching its start time)", rec.TaskID))
				}
			case models.StatusCompleted:
				alive, err := s.checkAlive(ctx, rec)
				if err == nil && alive {
					report.Zombies++
					s.noteActivity(fmt.Sprintf("zombie detected: task %s marked completed but still running", rec.TaskID))
					if killErr := s.killRecord(ctx, rec); killErr != nil && s.log != nil {
						s.log.Warnf("zombie cleanup for %s failed: %v", rec.TaskID, killErr)
					}
				}
			}
		}
		return nil
	})
	if err == nil && s.log != nil {
		s.log.WatchdogSweep(report.Running, report.Orphans, report.Zombies)
	}
	return report, err
}

// checkAlive verifies liveness per spec §4.8's native/container rules,
// returning an error only for transient lookup failures that should
// classify the record UNKNOWN rather than FAILED ("do not punish
// transient errors").
func (s *Supervisor) checkAlive(ctx context.Context, rec *models.ProcessRecord) (bool, error) {
	switch rec.Mode {
	case models.ModeNative:
		if rec.Native == nil {
			return false, nil
		}
		if !isAlive(rec.Native.PID) {
			return false, nil
		}
		if rec.Native.StartTime == "" {
			return true, nil
		}
		cur, err := startTimeOf(rec.Native.PID)
		if err != nil {
			return false, fmt.Errorf("transient start-time lookup failure for pid %d: %w", rec.Native.PID, err)
		}
		return cur == rec.Native.StartTime, nil
	case models.ModeContainer:
		if rec.Container == nil {
			return false, nil
		}
		running, err := s.containerRT.IsRunning(ctx, rec.Container.ContainerID)
		if err != nil {
			if !s.warnedRuntime && s.log != nil {
				s.log.Warnf("container runtime unavailable, skipping container sweeps: %v", err)
				s.warnedRuntime = true
			}
			return false, fmt.Errorf("container runtime unavailable: %w", err)
		}
		return running, nil
	}
	return false, nil
}

// snapshotResources records a best-effort memory snapshot for a live
// native record by reading /proc/<pid>/status; CPU is not sampled, so
// LastCPUPercent is left unchanged. Absent on platforms without /proc
// (spec §4.8: "best-effort; absent on platforms that do not expose them").
func (s *Supervisor) snapshotResources(rec *models.ProcessRecord) {
	if rec.Mode != models.ModeNative || rec.Native == nil || runtime.GOOS != "linux" {
		return
	}
	if mem, ok := readRSSBytes(rec.Native.PID); ok {
		rec.LastMemoryBytes = mem
	}
}

// Rehydrate produces the terse RUNNING-record summary (spec §4.8).
func (s *Supervisor) Rehydrate(ctx context.Context) ([]RehydrateEntry, error) {
	recs, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	now := walltime()
	var out []RehydrateEntry
	for _, rec := range recs {
		if rec.Status != models.StatusRunning {
			continue
		}
		out = append(out, RehydrateEntry{
			TaskID:  rec.TaskID,
			Age:     now.Sub(rec.StartedAt),
			Command: rec.Command,
			CPU:     rec.LastCPUPercent,
			Memory:  rec.LastMemoryBytes,
		})
	}
	return out, nil
}

// StartSweepLoop acquires the singleton sweep lock (spec §4.8: "a second
// instance refuses to start") and runs Sweep on interval until ctx is
// canceled, releasing the lock on every exit path.
func (s *Supervisor) StartSweepLoop(ctx context.Context, interval time.Duration) error {
	ok, err := s.sweepLock.Acquire()
	if err != nil {
		return fmt.Errorf("acquiring sweep lock: %w", err)
	}
	if !ok {
		return taxonomy.New(taxonomy.LockTimeout, "another watchdog instance already holds the sweep lock")
	}
	defer s.sweepLock.Release()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil && s.log != nil {
				s.log.Warnf("sweep failed: %v", err)
			}
		}
	}
}

// StopSweepLoop releases this Supervisor's own hold on the singleton sweep
// lock (used by `watchdog stop`). It does not reach a sweep loop running in
// another process; that loop stops only on context cancellation in its own
// process, e.g. when the daemon receives an interrupt signal.
func (s *Supervisor) StopSweepLoop() error {
	return s.sweepLock.Release()
}

// noteActivity appends line to the shared activity log, logging (but
// never returning) a failure to do so.
func (s *Supervisor) noteActivity(line string) {
	if err := activitylog.Append(s.activityLogPath, line); err != nil && s.log != nil {
		s.log.Warnf("failed to append activity note: %v", err)
	}
}

// walltime is the one place this package needs the real wall clock; kept
// as its own function so tests can't accidentally depend on call ordering
// of time.Now() within a single sweep.
func walltime() time.Time { return time.Now().UTC() }
