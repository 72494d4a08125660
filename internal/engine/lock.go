package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	offerr "github.com/Aman-CERP/offsearch/internal/errors"
)

// LockFileName is created inside every index directory.
const LockFileName = ".build.lock"

// BuildLock serializes builds of one index across processes.
type BuildLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewBuildLock creates the lock for an index directory.
func NewBuildLock(indexDir string) *BuildLock {
	path := filepath.Join(indexDir, LockFileName)
	return &BuildLock{
		path:  path,
		flock: flock.New(path),
	}
}

// Acquire waits up to wait for the lock. It fails with a LockHeld error if
// another process still holds it, or with ctx's error if ctx ends first.
func (l *BuildLock) Acquire(ctx context.Context, wait time.Duration) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return offerr.New(offerr.ErrCodeDataDir, "cannot create index directory", err).
			WithDetail("path", filepath.Dir(l.path))
	}

	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	acquired, err := l.flock.TryLockContext(waitCtx, 50*time.Millisecond)
	if acquired {
		l.locked = true
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil && waitCtx.Err() == nil {
		return fmt.Errorf("failed to acquire build lock: %w", err)
	}
	return offerr.New(offerr.ErrCodeLockHeld, "another process is building this index", nil).
		WithDetail("lock", l.path).
		WithSuggestion("Wait for the other build to finish, then retry")
}

// TryAcquire attempts the lock without waiting.
func (l *BuildLock) TryAcquire() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return false, fmt.Errorf("failed to create lock directory: %w", err)
	}
	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	l.locked = acquired
	return acquired, nil
}

// Release unlocks. Safe to call when not held.
func (l *BuildLock) Release() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Path returns the lock file path.
func (l *BuildLock) Path() string {
	return l.path
}

// Held reports whether this BuildLock holds the lock.
func (l *BuildLock) Held() bool {
	return l.locked
}
