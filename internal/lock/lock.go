// Package lock provides the locking and atomic-write primitives shared by
// every persistent store in the core (spec §4.10): locked_file, a bounded,
// timeout-aware exclusive advisory lock around a read or write;
// singleton_lock, a process-scoped exclusive lock that refuses a second
// instance; and atomic_replace, a temp-file-then-rename atomic write.
package lock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/harrison/wavegate/internal/taxonomy"
)

// DefaultTimeout is the default bound on lock acquisition (spec §5: "every
// advisory lock acquisition has a bounded timeout, default five seconds").
const DefaultTimeout = 5 * time.Second

const retryDelay = 25 * time.Millisecond

// FileLock wraps a gofrs/flock lock file with a bounded-timeout acquisition
// API. It is the building block behind both locked_file and singleton_lock.
type FileLock struct {
	flock *flock.Flock
	path  string
}

// NewFileLock returns a lock bound to the given lock-file path. The lock
// file itself is created on first acquisition if it does not exist.
func NewFileLock(path string) *FileLock {
	return &FileLock{flock: flock.New(path), path: path}
}

// Lock blocks until the exclusive lock is acquired or timeout elapses,
// returning a *taxonomy.CoreError of kind LockTimeout on exhaustion.
func (fl *FileLock) Lock(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ok, err := fl.flock.TryLockContext(ctx, retryDelay)
	if err != nil {
		return taxonomy.Newf(taxonomy.LockTimeout, "failed to acquire lock on %s: %v", fl.path, err)
	}
	if !ok {
		return taxonomy.Newf(taxonomy.LockTimeout, "timed out waiting for lock on %s", fl.path)
	}
	return nil
}

// Unlock releases the lock. Safe to call even if Lock failed.
func (fl *FileLock) Unlock() error {
	if err := fl.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock on %s: %w", fl.path, err)
	}
	return nil
}

// LockedFile acquires an exclusive advisory lock on path+".lock", runs fn,
// and releases the lock on every exit path (spec §4.10's locked_file).
func LockedFile(ctx context.Context, path string, timeout time.Duration, fn func() error) error {
	fl := NewFileLock(path + ".lock")
	if err := fl.Lock(ctx, timeout); err != nil {
		return err
	}
	defer fl.Unlock()
	return fn()
}

// SingletonLock is a process-scoped exclusive lock preventing a second
// instance of a long-running daemon (the watchdog's sweep loop, spec
// §4.8) from starting concurrently.
type SingletonLock struct {
	fl *FileLock
}

// NewSingletonLock returns a singleton lock bound to the given well-known
// lock-file path.
func NewSingletonLock(path string) *SingletonLock {
	return &SingletonLock{fl: NewFileLock(path)}
}

// Acquire attempts a non-blocking acquisition; ok is false (no error) if
// another instance already holds the lock.
func (s *SingletonLock) Acquire() (ok bool, err error) {
	acquired, err := s.fl.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to try singleton lock on %s: %w", s.fl.path, err)
	}
	return acquired, nil
}

// Release releases the singleton lock.
func (s *SingletonLock) Release() error {
	return s.fl.Unlock()
}

// AtomicReplace writes data to path atomically: a temp file is created in
// the same directory, written, synced, chmod'd, then renamed over path —
// the rename is the atomic commit (spec §4.10's atomic_replace).
func AtomicReplace(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	defer func() {
		if tmp != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if perm == 0 {
		perm = 0o644
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file to %s: %w", path, err)
	}

	tmp = nil
	return nil
}

// LockAndReplace acquires the advisory lock on path, then performs an
// atomic replace while holding it.
func LockAndReplace(ctx context.Context, path string, data []byte, perm os.FileMode, timeout time.Duration) error {
	return LockedFile(ctx, path, timeout, func() error {
		return AtomicReplace(path, data, perm)
	})
}
