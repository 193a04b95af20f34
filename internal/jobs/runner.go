package jobs

import (
    "context"
    "errors"
    "time"

    "github.com/rs/zerolog"
)

// syncLockKey guards the sync across replicas via a Postgres advisory lock.
const syncLockKey int64 = 0x4a495241 // "JIRA"

// ErrSyncRunning means another sync holds the advisory lock right now.
var ErrSyncRunning = errors.New("sync already running")

// Locker is the subset of the repository the runner needs to serialize syncs.
type Locker interface {
    TryAdvisoryLock(ctx context.Context, key int64) (bool, error)
    AdvisoryUnlock(ctx context.Context, key int64) error
}

type Syncer interface {
    RunSync(ctx context.Context) error
}

// Runner executes syncs under the advisory lock. Both the cron schedule and
// the manual admin endpoint go through it, so they can never overlap.
type Runner struct {
    lock Locker
    svc  Syncer
    log  zerolog.Logger
}

func NewRunner(lock Locker, svc Syncer, log zerolog.Logger) *Runner {
    return &Runner{lock: lock, svc: svc, log: log}
}

// Run takes the lock, syncs, and releases. The unlock uses a fresh context:
// the run context may already be expired when a long sync returns, and a
// skipped unlock would hold the lock until the connection drops.
func (r *Runner) Run(ctx context.Context) error {
    ok, err := r.lock.TryAdvisoryLock(ctx, syncLockKey)
    if err != nil { return err }
    if !ok { return ErrSyncRunning }
    defer func() {
        ctx2, cancel := context.WithTimeout(context.Background(), 10*time.Second); defer cancel()
        if err := r.lock.AdvisoryUnlock(ctx2, syncLockKey); err != nil {
            r.log.Error().Err(err).Msg("advisory unlock failed")
        }
    }()
    return r.svc.RunSync(ctx)
}
