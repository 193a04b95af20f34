package jobs

import (
    "context"
    "errors"
    "time"

    "github.com/robfig/cron/v3"
    "github.com/rs/zerolog"

    "github.com/omursimsek/JIRA-metrics/internal/config"
)

type Scheduler struct {
    cron *cron.Cron
    log  zerolog.Logger
}

// Start schedules the Jira sync on cfg.SyncCron in the configured timezone
// and runs one sync immediately so a fresh deployment is not empty until the
// first tick.
func Start(cfg config.Config, log zerolog.Logger, runner *Runner) *Scheduler {
    c := cron.New(cron.WithLocation(cfg.Location()))
    run := func() {
        ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
        defer cancel()
        switch err := runner.Run(ctx); {
        case errors.Is(err, ErrSyncRunning):
            log.Info().Msg("sync already running elsewhere, skipping")
        case err != nil:
            log.Error().Err(err).Msg("scheduled sync failed")
        }
    }
    if _, err := c.AddFunc(cfg.SyncCron, run); err != nil {
        log.Fatal().Err(err).Str("spec", cfg.SyncCron).Msg("bad cron spec")
    }
    c.Start()
    go run()
    return &Scheduler{cron: c, log: log}
}

// Stop waits for a running sync to finish.
func (s *Scheduler) Stop() {
    ctx := s.cron.Stop()
    <-ctx.Done()
}
