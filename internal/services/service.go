package services

import (
    "context"
    "fmt"
    "strings"
    "sync"
    "time"

    "github.com/rs/zerolog"

    "github.com/omursimsek/JIRA-metrics/internal/config"
    "github.com/omursimsek/JIRA-metrics/internal/domain"
    "github.com/omursimsek/JIRA-metrics/internal/repo"
    "github.com/omursimsek/JIRA-metrics/internal/timeline"
    "github.com/omursimsek/JIRA-metrics/internal/workhours"
)

type JiraClient interface {
    Search(ctx context.Context, jql string, startAt, max int) (map[string]any, error)
    Issue(ctx context.Context, key string) (map[string]any, error)
    Changelog(ctx context.Context, key string, startAt, max int) (map[string]any, error)
    Fields(ctx context.Context) ([]map[string]any, error)
}

type RootCauseClassifier interface {
    Enabled() bool
    ClassifyRootCause(ctx context.Context, key, summary, resolution string) (string, error)
}

// Capability names the ingestion boundary resolves to Jira field ids once;
// nothing downstream ever sees a customfield_XXXXX identifier.
const (
    capStoryPoints = "Story Points"
    capRootCause   = "Root Cause"
    capCodeReview  = "Code Review Status"
)

type Service struct {
    cfg   config.Config
    log   zerolog.Logger
    repo  *repo.Repository
    jira  JiraClient
    llm   RootCauseClassifier
    cal   *workhours.Calendar
    recon *timeline.Reconstructor

    mu       sync.Mutex
    fieldIDs map[string]string // capability name -> jira field id
}

func New(cfg config.Config, log zerolog.Logger, r *repo.Repository, jira JiraClient, llm RootCauseClassifier, cal *workhours.Calendar) *Service {
    return &Service{
        cfg:   cfg,
        log:   log,
        repo:  r,
        jira:  jira,
        llm:   llm,
        cal:   cal,
        recon: timeline.NewReconstructor(cfg.TerminalStatuses...),
    }
}

// RunSync pulls the configured projects from Jira and upserts issues plus
// their change history, then backfills missing bug root causes.
func (s *Service) RunSync(ctx context.Context) error {
    if err := s.ensureFieldIDs(ctx); err != nil {
        s.log.Error().Err(err).Msg("jira field discovery failed; custom fields may be missing")
    }
    runID, err := s.repo.StartJobRun(ctx)
    if err != nil { s.log.Error().Err(err).Msg("start job run failed") }

    var scanned int
    var syncErr error
    defer func() {
        if runID != 0 {
            errStr := ""
            if syncErr != nil { errStr = syncErr.Error() }
            _ = s.repo.FinishJobRun(ctx, runID, scanned, syncErr == nil, errStr)
        }
    }()

    for _, jql := range s.syncQueries() {
        n, err := s.syncJQL(ctx, jql)
        scanned += n
        if err != nil {
            syncErr = err
            s.log.Error().Err(err).Str("jql", jql).Msg("sync failed")
            return err
        }
    }
    s.classifyMissingRootCauses(ctx)
    s.log.Info().Int("issues", scanned).Msg("sync done")
    return nil
}

func (s *Service) syncQueries() []string {
    window := s.cfg.JiraDefaultJQL
    if len(s.cfg.JiraProjects) == 0 { return []string{window} }
    out := make([]string, 0, len(s.cfg.JiraProjects))
    for _, p := range s.cfg.JiraProjects {
        out = append(out, fmt.Sprintf("project=%s AND (issuetype=Story OR issuetype=Bug) AND (%s)", p, window))
    }
    return out
}

func (s *Service) syncJQL(ctx context.Context, jql string) (int, error) {
    count := 0
    startAt := 0
    for {
        page, err := s.jira.Search(ctx, jql, startAt, 50)
        if err != nil { return count, err }
        arr, _ := page["issues"].([]any)
        if len(arr) == 0 { break }

        // bounded worker pool per page
        workerCount := s.cfg.WorkersJira
        if workerCount <= 0 { workerCount = 6 }
        jobs := make(chan map[string]any)
        var wg sync.WaitGroup
        for w := 0; w < workerCount; w++ {
            wg.Add(1)
            go func() {
                defer wg.Done()
                for im := range jobs { s.syncIssue(ctx, im) }
            }()
        }
        for _, it := range arr {
            if im, _ := it.(map[string]any); im != nil { jobs <- im; count++ }
        }
        close(jobs)
        wg.Wait()
        if len(arr) < 50 { break }
        startAt += 50
    }
    return count, nil
}

// syncIssue upserts one search hit and its changelog.
func (s *Service) syncIssue(ctx context.Context, im map[string]any) {
    issueID := toStrAny(im["id"])
    key := toStrAny(im["key"])
    fields, _ := im["fields"].(map[string]any)
    if issueID == "" || key == "" || fields == nil { return }

    iss := domain.Issue{
        IssueID:    issueID,
        Key:        key,
        Summary:    toStrAny(fields["summary"]),
        Status:     nameOf(fields["status"]),
        Type:       nameOf(fields["issuetype"]),
        Priority:   nameOf(fields["priority"]),
        Owner:      displayNameOf(fields["assignee"]),
        Reporter:   displayNameOf(fields["reporter"]),
        Resolution: nameOf(fields["resolution"]),
        CreatedAt:  parseTimeUTC(fields["created"]),
        UpdatedAt:  parseTimeUTC(fields["updated"]),
        ResolvedAt: parseTimeUTC(fields["resolutiondate"]),
    }
    if p := strings.SplitN(key, "-", 2); len(p) == 2 { iss.Project = p[0] }
    if id := s.fieldID(capStoryPoints); id != "" {
        if v, ok := fields[id].(float64); ok { iss.StoryPoints = &v }
    }
    if id := s.fieldID(capRootCause); id != "" {
        iss.RootCause = optionToString(fields[id])
    }

    if _, err := s.repo.UpsertIssue(ctx, iss); err != nil {
        s.log.Error().Err(err).Str("key", key).Msg("upsert issue failed")
        return
    }

    events := s.collectChangeEvents(ctx, issueID, key, im)
    if err := s.repo.BulkInsertChangeEvents(ctx, events); err != nil {
        s.log.Error().Err(err).Str("key", key).Msg("insert change events failed")
    }
}

// collectChangeEvents reads the expanded changelog and pages the rest from
// the changelog endpoint when the server truncated the expand.
func (s *Service) collectChangeEvents(ctx context.Context, issueID, key string, im map[string]any) []domain.ChangeEvent {
    var out []domain.ChangeEvent
    have := 0
    total := 0
    if cl, ok := im["changelog"].(map[string]any); ok {
        if tf, ok := cl["total"].(float64); ok { total = int(tf) }
        hist, _ := cl["histories"].([]any)
        have = len(hist)
        out = append(out, s.changeEventsFromHistories(issueID, hist)...)
    }
    if total > have {
        startAt := have
        for {
            page, err := s.jira.Changelog(ctx, key, startAt, 100)
            if err != nil {
                s.log.Error().Err(err).Str("key", key).Msg("changelog page failed")
                break
            }
            var hist []any
            if vv, ok := page["values"].([]any); ok { hist = vv } else if vv, ok := page["histories"].([]any); ok { hist = vv }
            if len(hist) == 0 { break }
            out = append(out, s.changeEventsFromHistories(issueID, hist)...)
            startAt += len(hist)
            if startAt >= total { break }
        }
    }
    return out
}

func (s *Service) changeEventsFromHistories(issueID string, histories []any) []domain.ChangeEvent {
    var out []domain.ChangeEvent
    for _, h0 := range histories {
        hv, _ := h0.(map[string]any)
        if hv == nil { continue }
        at := parseTimeUTC(hv["created"])
        if at == nil { continue }
        items, _ := hv["items"].([]any)
        for _, it0 := range items {
            itm, _ := it0.(map[string]any)
            if itm == nil { continue }
            field, ok := s.eventField(toStrAny(itm["field"]))
            if !ok { continue }
            var from *string
            if v, ok := itm["fromString"].(string); ok && v != "" { from = &v }
            to := toStrAny(itm["toString"])
            out = append(out, domain.ChangeEvent{IssueID: issueID, Field: field, FromVal: from, ToVal: to, At: *at})
        }
    }
    return out
}

// eventField maps a changelog item's field label onto the dimensions we
// track; everything else is ignored.
func (s *Service) eventField(label string) (domain.Field, bool) {
    switch {
    case strings.EqualFold(label, "status"):
        return domain.FieldStatus, true
    case strings.EqualFold(label, "assignee"):
        return domain.FieldAssignee, true
    case strings.EqualFold(label, capCodeReview):
        return domain.FieldCodeReview, true
    }
    return "", false
}

// ensureFieldIDs resolves the named-field capability map once: config wins,
// Jira field discovery fills the gaps.
func (s *Service) ensureFieldIDs(ctx context.Context) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    if s.fieldIDs == nil { s.fieldIDs = map[string]string{} }
    for _, name := range []string{capStoryPoints, capRootCause, capCodeReview} {
        if id, ok := s.cfg.JiraFieldMap[name]; ok && id != "" { s.fieldIDs[name] = id }
    }
    if s.fieldIDs[capStoryPoints] != "" && s.fieldIDs[capRootCause] != "" && s.fieldIDs[capCodeReview] != "" {
        return nil
    }
    fields, err := s.jira.Fields(ctx)
    if err != nil { return err }
    for _, f := range fields {
        fname := strings.TrimSpace(toStrAny(f["name"]))
        id := toStrAny(f["id"])
        if fname == "" || id == "" { continue }
        for _, name := range []string{capStoryPoints, capRootCause, capCodeReview} {
            if strings.EqualFold(fname, name) && s.fieldIDs[name] == "" { s.fieldIDs[name] = id }
        }
    }
    if len(s.fieldIDs) > 0 {
        s.log.Info().Fields(map[string]any{"fields": s.fieldIDs}).Msg("jira custom fields resolved")
    }
    return nil
}

func (s *Service) fieldID(name string) string {
    s.mu.Lock()
    defer s.mu.Unlock()
    return s.fieldIDs[name]
}

// classifyMissingRootCauses fills root_cause on resolved bugs that have none,
// when a classifier is configured.
func (s *Service) classifyMissingRootCauses(ctx context.Context) {
    if s.llm == nil || !s.llm.Enabled() { return }
    bugs, err := s.repo.ListResolvedBugsMissingRootCause(ctx, 25)
    if err != nil {
        s.log.Error().Err(err).Msg("list unclassified bugs failed")
        return
    }
    for _, b := range bugs {
        cause, err := s.llm.ClassifyRootCause(ctx, b.Key, b.Summary, b.Resolution)
        if err != nil {
            s.log.Error().Err(err).Str("key", b.Key).Msg("root cause classification failed")
            continue
        }
        if err := s.repo.UpdateRootCause(ctx, b.IssueID, cause); err != nil {
            s.log.Error().Err(err).Str("key", b.Key).Msg("store root cause failed")
        }
    }
}

func (s *Service) GetLastRun(ctx context.Context) (*repo.LastRun, error) {
    return s.repo.GetLastRun(ctx)
}

// ---- payload helpers ----

func parseTimeUTC(v any) *time.Time {
    str, _ := v.(string)
    if str == "" { return nil }
    layouts := []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.000-0700", "2006-01-02T15:04:05-0700", "2006-01-02"}
    for _, l := range layouts {
        if t, err := time.Parse(l, str); err == nil {
            tt := t.UTC()
            return &tt
        }
    }
    return nil
}

func toStrAny(v any) string {
    if v == nil { return "" }
    if s, ok := v.(string); ok { return s }
    return fmt.Sprintf("%v", v)
}

func nameOf(v any) string {
    if m, ok := v.(map[string]any); ok { return toStrAny(m["name"]) }
    return ""
}

func displayNameOf(v any) string {
    if m, ok := v.(map[string]any); ok { return toStrAny(m["displayName"]) }
    return ""
}

// optionToString extracts Jira option value objects: map with keys like value/name
func optionToString(v any) string {
    if v == nil { return "" }
    switch t := v.(type) {
    case string:
        return t
    case map[string]any:
        if s, ok := t["value"].(string); ok { return s }
        if name, ok := t["name"].(string); ok { return name }
        return toStrAny(v)
    case []any:
        vals := make([]string, 0, len(t))
        for _, it := range t {
            switch m := it.(type) {
            case map[string]any:
                if s, ok := m["value"].(string); ok { vals = append(vals, s); continue }
                if name, ok := m["name"].(string); ok { vals = append(vals, name) }
            case string:
                vals = append(vals, m)
            }
        }
        return strings.Join(vals, ", ")
    default:
        return toStrAny(v)
    }
}
