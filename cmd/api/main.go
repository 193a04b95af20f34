package main

import (
    "context"
    "errors"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/omursimsek/JIRA-metrics/internal/adapters/jira"
    "github.com/omursimsek/JIRA-metrics/internal/adapters/openai"
    "github.com/omursimsek/JIRA-metrics/internal/config"
    httpx "github.com/omursimsek/JIRA-metrics/internal/http"
    "github.com/omursimsek/JIRA-metrics/internal/jobs"
    "github.com/omursimsek/JIRA-metrics/internal/logger"
    "github.com/omursimsek/JIRA-metrics/internal/repo"
    "github.com/omursimsek/JIRA-metrics/internal/services"
    "github.com/omursimsek/JIRA-metrics/internal/workhours"
)

func main() {
    cfg := config.Load()
    log := logger.New(cfg)

    cal, err := workhours.New(cfg.WorkStart, cfg.WorkEnd, cfg.LunchStart, cfg.LunchEnd, cfg.Location(), cfg.Holidays)
    if err != nil { log.Fatal().Err(err).Msg("invalid working calendar") }

    ctx := context.Background()
    db := repo.MustOpen(ctx, cfg, log)
    defer db.Close()
    repository := repo.NewRepository(db, log)
    if err := repository.EnsureSchema(ctx); err != nil { log.Fatal().Err(err).Msg("schema migration failed") }

    jiraClient := jira.NewClient(cfg, log)
    llm := openai.NewClient(cfg, log)
    svc := services.New(cfg, log, repository, jiraClient, llm, cal)

    runner := jobs.NewRunner(repository, svc, log)
    sched := jobs.Start(cfg, log, runner)
    defer sched.Stop()

    handlers := httpx.NewHandlers(svc, runner, log)
    router := httpx.NewRouter(cfg, log, handlers)
    srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

    go func() {
        log.Info().Str("addr", cfg.HTTPAddr).Msg("http listening")
        if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
            log.Fatal().Err(err).Msg("http server failed")
        }
    }()

    stop := make(chan os.Signal, 1)
    signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
    <-stop
    log.Info().Msg("shutting down")

    ctx2, cancel := context.WithTimeout(ctx, 10*time.Second); defer cancel()
    if err := srv.Shutdown(ctx2); err != nil { log.Error().Err(err).Msg("http shutdown failed") }
}
