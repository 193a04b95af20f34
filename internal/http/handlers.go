package http

import (
    "context"
    "errors"
    "net/http"

    "github.com/gin-gonic/gin"
    "github.com/rs/zerolog"

    "github.com/omursimsek/JIRA-metrics/internal/domain"
    "github.com/omursimsek/JIRA-metrics/internal/jobs"
    "github.com/omursimsek/JIRA-metrics/internal/repo"
    "github.com/omursimsek/JIRA-metrics/internal/services"
    "github.com/omursimsek/JIRA-metrics/internal/timeline"
)

// MetricsService is what the handlers need from the service layer.
type MetricsService interface {
    TimeInStatusStories(ctx context.Context) ([]services.TimeInStatusRow, error)
    TimeInStatusBugs(ctx context.Context) ([]services.TimeInStatusRow, error)
    Summary(ctx context.Context, field domain.Field, value string, groupBy []timeline.Attr) ([]timeline.Row, error)
    ReviewHistory(ctx context.Context) ([]services.ReviewRow, error)
    BugsCreatedVsResolved(ctx context.Context, by, product string) (*services.CreatedVsResolved, error)
    BugsPriorityByProject(ctx context.Context) ([]repo.PriorityRow, error)
    BugRootCauses(ctx context.Context) ([]repo.RootCauseRow, error)
    GetLastRun(ctx context.Context) (*repo.LastRun, error)
}

// SyncRunner serializes syncs; the manual endpoint and cron share one.
type SyncRunner interface {
    Run(ctx context.Context) error
}

type Handlers struct {
    svc  MetricsService
    sync SyncRunner
    log  zerolog.Logger
}

func NewHandlers(svc MetricsService, sync SyncRunner, log zerolog.Logger) *Handlers {
    return &Handlers{svc: svc, sync: sync, log: log}
}

func (h *Handlers) Healthz(c *gin.Context) {
    c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handlers) TimeInStatusStories(c *gin.Context) {
    rows, err := h.svc.TimeInStatusStories(c.Request.Context())
    if err != nil { h.fail(c, err); return }
    c.JSON(http.StatusOK, rows)
}

func (h *Handlers) TimeInStatusBugs(c *gin.Context) {
    rows, err := h.svc.TimeInStatusBugs(c.Request.Context())
    if err != nil { h.fail(c, err); return }
    c.JSON(http.StatusOK, rows)
}

// Summary handles ?field=&value=&group_by= aggregation queries.
func (h *Handlers) Summary(c *gin.Context) {
    field, err := services.ParseField(c.Query("field"))
    if err != nil {
        c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
        return
    }
    groupBy, err := services.ParseGroupBy(c.Query("group_by"))
    if err != nil {
        c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
        return
    }
    rows, err := h.svc.Summary(c.Request.Context(), field, c.Query("value"), groupBy)
    if err != nil { h.fail(c, err); return }
    c.JSON(http.StatusOK, rows)
}

func (h *Handlers) ReviewHistory(c *gin.Context) {
    rows, err := h.svc.ReviewHistory(c.Request.Context())
    if err != nil { h.fail(c, err); return }
    c.JSON(http.StatusOK, rows)
}

func (h *Handlers) BugsCreatedVsResolved(c *gin.Context) {
    out, err := h.svc.BugsCreatedVsResolved(c.Request.Context(), c.Query("by"), c.Query("product"))
    if err != nil {
        c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
        return
    }
    c.JSON(http.StatusOK, out)
}

func (h *Handlers) BugsPriorityByProject(c *gin.Context) {
    rows, err := h.svc.BugsPriorityByProject(c.Request.Context())
    if err != nil { h.fail(c, err); return }
    c.JSON(http.StatusOK, rows)
}

func (h *Handlers) BugRootCauses(c *gin.Context) {
    rows, err := h.svc.BugRootCauses(c.Request.Context())
    if err != nil { h.fail(c, err); return }
    c.JSON(http.StatusOK, rows)
}

func (h *Handlers) LastRun(c *gin.Context) {
    lr, err := h.svc.GetLastRun(c.Request.Context())
    if err != nil {
        c.JSON(http.StatusNotFound, gin.H{"error": "no runs yet"})
        return
    }
    c.JSON(http.StatusOK, lr)
}

// RunSync kicks a sync in the background and returns immediately. The runner
// holds the same advisory lock as the cron schedule, so a manual run can
// never overlap a scheduled one.
func (h *Handlers) RunSync(c *gin.Context) {
    go func() {
        switch err := h.sync.Run(context.Background()); {
        case errors.Is(err, jobs.ErrSyncRunning):
            h.log.Info().Msg("manual sync skipped, one is already running")
        case err != nil:
            h.log.Error().Err(err).Msg("manual sync failed")
        }
    }()
    c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}

func (h *Handlers) fail(c *gin.Context, err error) {
    h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
    c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
