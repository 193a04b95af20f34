package http

import (
    "time"

    "github.com/gin-gonic/gin"
    "github.com/rs/zerolog"

    "github.com/omursimsek/JIRA-metrics/internal/config"
)

func NewRouter(cfg config.Config, log zerolog.Logger, h *Handlers) *gin.Engine {
    if cfg.AppEnv != "dev" { gin.SetMode(gin.ReleaseMode) }
    r := gin.New()
    r.Use(gin.Recovery(), requestLog(log))

    r.GET("/healthz", h.Healthz)

    api := r.Group("/api")
    {
        api.GET("/time-in-status/stories", h.TimeInStatusStories)
        api.GET("/time-in-status/bugs", h.TimeInStatusBugs)
        api.GET("/time-in-status/summary", h.Summary)
        api.GET("/reviews/history", h.ReviewHistory)
        api.GET("/bugs/created-vs-resolved", h.BugsCreatedVsResolved)
        api.GET("/bugs/priority-by-project", h.BugsPriorityByProject)
        api.GET("/bugs/root-causes", h.BugRootCauses)
    }

    admin := r.Group("/admin")
    {
        admin.GET("/last-run", h.LastRun)
        admin.POST("/run", h.RunSync)
    }
    return r
}

func requestLog(log zerolog.Logger) gin.HandlerFunc {
    return func(c *gin.Context) {
        start := time.Now()
        c.Next()
        log.Info().
            Str("method", c.Request.Method).
            Str("path", c.Request.URL.Path).
            Int("status", c.Writer.Status()).
            Dur("dur", time.Since(start)).
            Msg("http")
    }
}
