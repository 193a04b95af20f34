package jobs

import (
    "context"
    "errors"
    "testing"
    "time"

    "github.com/rs/zerolog"
)

type fakeLocker struct {
    busy         bool
    lockErr      error
    unlocked     bool
    unlockCtxErr error
}

func (f *fakeLocker) TryAdvisoryLock(ctx context.Context, key int64) (bool, error) {
    if f.lockErr != nil { return false, f.lockErr }
    return !f.busy, nil
}

func (f *fakeLocker) AdvisoryUnlock(ctx context.Context, key int64) error {
    f.unlocked = true
    f.unlockCtxErr = ctx.Err()
    return nil
}

type fakeSyncer struct {
    ran bool
    fn  func(ctx context.Context) error
}

func (f *fakeSyncer) RunSync(ctx context.Context) error {
    f.ran = true
    if f.fn != nil { return f.fn(ctx) }
    return nil
}

func TestRunnerRunsUnderLock(t *testing.T) {
    lock := &fakeLocker{}
    sync := &fakeSyncer{}
    r := NewRunner(lock, sync, zerolog.Nop())
    if err := r.Run(context.Background()); err != nil {
        t.Fatalf("run failed: %v", err)
    }
    if !sync.ran { t.Fatalf("sync did not run") }
    if !lock.unlocked { t.Fatalf("lock was not released") }
}

func TestRunnerSkipsWhenLockHeld(t *testing.T) {
    lock := &fakeLocker{busy: true}
    sync := &fakeSyncer{}
    r := NewRunner(lock, sync, zerolog.Nop())
    if err := r.Run(context.Background()); !errors.Is(err, ErrSyncRunning) {
        t.Fatalf("expected ErrSyncRunning, got %v", err)
    }
    if sync.ran { t.Fatalf("sync must not run while the lock is held elsewhere") }
    if lock.unlocked { t.Fatalf("must not release a lock it never took") }
}

func TestRunnerLockError(t *testing.T) {
    lock := &fakeLocker{lockErr: errors.New("db down")}
    sync := &fakeSyncer{}
    r := NewRunner(lock, sync, zerolog.Nop())
    if err := r.Run(context.Background()); err == nil {
        t.Fatalf("lock error must surface")
    }
    if sync.ran { t.Fatalf("sync must not run without the lock") }
}

func TestRunnerUnlocksAfterDeadline(t *testing.T) {
    // A sync that outlives its context must still release the lock.
    lock := &fakeLocker{}
    sync := &fakeSyncer{fn: func(ctx context.Context) error {
        <-ctx.Done()
        return ctx.Err()
    }}
    r := NewRunner(lock, sync, zerolog.Nop())
    ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
    defer cancel()
    if err := r.Run(ctx); err == nil {
        t.Fatalf("expected the sync's deadline error")
    }
    if !lock.unlocked { t.Fatalf("lock leaked after deadline") }
    if lock.unlockCtxErr != nil {
        t.Fatalf("unlock must use a live context, got %v", lock.unlockCtxErr)
    }
}
