package services

import (
    "context"
    "fmt"
    "math"
    "sort"
    "strings"
    "time"

    "github.com/omursimsek/JIRA-metrics/internal/domain"
    "github.com/omursimsek/JIRA-metrics/internal/repo"
    "github.com/omursimsek/JIRA-metrics/internal/timeline"
)

// TimeInStatusRow is one closed issue with its total in-progress business
// hours.
type TimeInStatusRow struct {
    IssueID       string   `json:"issue_id"`
    Key           string   `json:"key"`
    Project       string   `json:"project"`
    Product       string   `json:"product"`
    Owner         string   `json:"owner"`
    Status        string   `json:"status"`
    StoryPoints   *float64 `json:"story_points,omitempty"`
    BusinessHours float64  `json:"business_hours"`
}

// TimeInStatusStories reports in-progress business hours per closed story.
func (s *Service) TimeInStatusStories(ctx context.Context) ([]TimeInStatusRow, error) {
    return s.timeInStatus(ctx, "Story")
}

// TimeInStatusBugs reports in-progress business hours per closed bug.
func (s *Service) TimeInStatusBugs(ctx context.Context) ([]TimeInStatusRow, error) {
    return s.timeInStatus(ctx, "Bug")
}

func (s *Service) timeInStatus(ctx context.Context, issueType string) ([]TimeInStatusRow, error) {
    issues, err := s.repo.ListIssues(ctx, []string{issueType}, "")
    if err != nil { return nil, err }
    closed := make([]domain.Issue, 0, len(issues))
    ids := make([]string, 0, len(issues))
    for _, i := range issues {
        if !s.isTerminal(i.Status) { continue }
        closed = append(closed, i)
        ids = append(ids, i.IssueID)
    }
    if len(closed) == 0 { return []TimeInStatusRow{}, nil }
    events, err := s.repo.LoadChangeEvents(ctx, domain.FieldStatus, ids)
    if err != nil { return nil, err }
    agg := timeline.NewAggregator(s.cal, nil)
    return buildTimeInStatus(s.recon, agg, s.cfg.ProductFor, closed, events, s.cfg.InProgressStatus), nil
}

// buildTimeInStatus sums matching status intervals per issue. Issues with no
// owner or an unmapped project are excluded, as are issues that never entered
// the measured status.
func buildTimeInStatus(recon *timeline.Reconstructor, agg *timeline.Aggregator, productFor func(string) string, issues []domain.Issue, events []domain.ChangeEvent, status string) []TimeInStatusRow {
    byID := make(map[string]domain.Issue, len(issues))
    for _, i := range issues { byID[i.IssueID] = i }

    hours := map[string]float64{}
    for _, iv := range recon.Intervals(events, domain.FieldStatus) {
        if !strings.EqualFold(iv.Value, status) { continue }
        if _, ok := byID[iv.IssueID]; !ok { continue }
        hours[iv.IssueID] += agg.Duration(iv)
    }

    out := make([]TimeInStatusRow, 0, len(hours))
    for _, i := range issues {
        h, ok := hours[i.IssueID]
        if !ok || h <= 0 { continue }
        if i.Owner == "" { continue }
        product := productFor(i.Project)
        if product == "" { continue }
        out = append(out, TimeInStatusRow{
            IssueID:       i.IssueID,
            Key:           i.Key,
            Project:       i.Project,
            Product:       product,
            Owner:         i.Owner,
            Status:        i.Status,
            StoryPoints:   i.StoryPoints,
            BusinessHours: math.Round(h*100) / 100,
        })
    }
    sort.Slice(out, func(a, b int) bool { return out[a].Key < out[b].Key })
    return out
}

func (s *Service) isTerminal(status string) bool {
    for _, t := range s.cfg.TerminalStatuses {
        if strings.EqualFold(t, status) { return true }
    }
    return false
}

// Summary aggregates business hours spent holding one field value, grouped
// by the requested attributes. Value matching is case-insensitive.
func (s *Service) Summary(ctx context.Context, field domain.Field, value string, groupBy []timeline.Attr) ([]timeline.Row, error) {
    if value == "" { value = s.cfg.InProgressStatus }
    issues, err := s.repo.ListIssues(ctx, nil, "")
    if err != nil { return nil, err }
    events, err := s.repo.LoadChangeEvents(ctx, field, nil)
    if err != nil { return nil, err }

    meta := make(map[string]timeline.Meta, len(issues))
    for _, i := range issues {
        meta[i.IssueID] = timeline.Meta{
            Key:         i.Key,
            Project:     i.Project,
            Product:     s.cfg.ProductFor(i.Project),
            Owner:       i.Owner,
            Status:      i.Status,
            StoryPoints: i.StoryPoints,
        }
    }

    agg := timeline.NewAggregator(s.cal, nil)
    intervals := s.recon.Intervals(events, field)
    match := func(iv domain.StatusInterval) bool { return strings.EqualFold(iv.Value, value) }
    return agg.Aggregate(intervals, match, meta, groupBy), nil
}

// ParseField validates a query-string field name.
func ParseField(raw string) (domain.Field, error) {
    switch raw {
    case "", string(domain.FieldStatus):
        return domain.FieldStatus, nil
    case string(domain.FieldAssignee):
        return domain.FieldAssignee, nil
    case string(domain.FieldCodeReview):
        return domain.FieldCodeReview, nil
    }
    return "", fmt.Errorf("unknown field %q", raw)
}

// ParseGroupBy turns a comma-separated attribute list into grouping attrs,
// defaulting to owner.
func ParseGroupBy(raw string) ([]timeline.Attr, error) {
    if strings.TrimSpace(raw) == "" { return []timeline.Attr{timeline.AttrOwner}, nil }
    var out []timeline.Attr
    for _, p := range strings.Split(raw, ",") {
        p = strings.TrimSpace(p)
        switch timeline.Attr(p) {
        case timeline.AttrOwner, timeline.AttrProject, timeline.AttrProduct, timeline.AttrPointsBucket:
            out = append(out, timeline.Attr(p))
        default:
            return nil, fmt.Errorf("unknown group_by attribute %q", p)
        }
    }
    return out, nil
}

// ReviewRow is one code-review transition with its issue context.
type ReviewRow struct {
    IssueID   string    `json:"issue_id"`
    Key       string    `json:"key"`
    Project   string    `json:"project"`
    Product   string    `json:"product"`
    From      *string   `json:"from"`
    To        string    `json:"to"`
    ChangedAt time.Time `json:"changed_at"`
}

// ReviewHistory lists every code-review status transition, oldest first,
// joined with the owning issue.
func (s *Service) ReviewHistory(ctx context.Context) ([]ReviewRow, error) {
    events, err := s.repo.LoadChangeEvents(ctx, domain.FieldCodeReview, nil)
    if err != nil { return nil, err }
    if len(events) == 0 { return []ReviewRow{}, nil }
    issues, err := s.repo.ListIssues(ctx, nil, "")
    if err != nil { return nil, err }
    byID := make(map[string]domain.Issue, len(issues))
    for _, i := range issues { byID[i.IssueID] = i }

    out := make([]ReviewRow, 0, len(events))
    for _, e := range events {
        i, ok := byID[e.IssueID]
        if !ok { continue }
        out = append(out, ReviewRow{
            IssueID:   e.IssueID,
            Key:       i.Key,
            Project:   i.Project,
            Product:   s.cfg.ProductFor(i.Project),
            From:      e.FromVal,
            To:        e.ToVal,
            ChangedAt: e.At,
        })
    }
    sort.SliceStable(out, func(a, b int) bool { return out[a].ChangedAt.Before(out[b].ChangedAt) })
    return out, nil
}

// CreatedVsResolved pairs bug creation and resolution counts per bucket,
// optionally narrowed to one product's projects.
type CreatedVsResolved struct {
    By       string          `json:"by"`
    Product  string          `json:"product,omitempty"`
    Created  []repo.CountRow `json:"created"`
    Resolved []repo.CountRow `json:"resolved"`
}

// BugsCreatedVsResolved counts bugs per day or ISO week. A non-empty product
// restricts the counts to the projects mapped to it.
func (s *Service) BugsCreatedVsResolved(ctx context.Context, by, product string) (*CreatedVsResolved, error) {
    switch by {
    case "", "day", "week":
    default:
        return nil, fmt.Errorf("unknown bucket %q", by)
    }
    projects, err := s.projectsFor(product)
    if err != nil { return nil, err }
    byWeek := by == "week"
    if by == "" { by = "day" }
    created, err := s.repo.BugsCreatedPerBucket(ctx, byWeek, projects)
    if err != nil { return nil, err }
    resolved, err := s.repo.BugsResolvedPerBucket(ctx, byWeek, projects)
    if err != nil { return nil, err }
    if created == nil { created = []repo.CountRow{} }
    if resolved == nil { resolved = []repo.CountRow{} }
    return &CreatedVsResolved{By: by, Product: product, Created: created, Resolved: resolved}, nil
}

// projectsFor resolves a product name to its project keys, case-insensitive.
// Empty product means no filter; an unmapped product is a caller error.
func (s *Service) projectsFor(product string) ([]string, error) {
    if product == "" { return nil, nil }
    for name, projects := range s.cfg.ProductMap {
        if strings.EqualFold(name, product) { return projects, nil }
    }
    return nil, fmt.Errorf("unknown product %q", product)
}

// BugsPriorityByProject breaks open and resolved bugs down by project and
// priority.
func (s *Service) BugsPriorityByProject(ctx context.Context) ([]repo.PriorityRow, error) {
    rows, err := s.repo.BugsPriorityByProject(ctx)
    if err != nil { return nil, err }
    if rows == nil { rows = []repo.PriorityRow{} }
    return rows, nil
}

// BugRootCauses breaks bugs down by project, root cause and resolution day.
func (s *Service) BugRootCauses(ctx context.Context) ([]repo.RootCauseRow, error) {
    rows, err := s.repo.BugRootCauses(ctx)
    if err != nil { return nil, err }
    if rows == nil { rows = []repo.RootCauseRow{} }
    return rows, nil
}
