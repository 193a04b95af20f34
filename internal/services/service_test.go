package services

import (
    "testing"
    "time"

    "github.com/omursimsek/JIRA-metrics/internal/domain"
    "github.com/omursimsek/JIRA-metrics/internal/timeline"
    "github.com/omursimsek/JIRA-metrics/internal/workhours"
)

func TestParseTimeUTC(t *testing.T) {
    got := parseTimeUTC("2024-11-04T10:30:00.000+0300")
    if got == nil { t.Fatalf("expected parse") }
    want := time.Date(2024, 11, 4, 7, 30, 0, 0, time.UTC)
    if !got.Equal(want) { t.Fatalf("got %v want %v", got, want) }
    if parseTimeUTC("") != nil { t.Fatalf("empty string must yield nil") }
    if parseTimeUTC("not-a-time") != nil { t.Fatalf("garbage must yield nil") }
    if d := parseTimeUTC("2024-11-04"); d == nil || d.Hour() != 0 {
        t.Fatalf("date-only parse failed: %v", d)
    }
}

func TestOptionToString(t *testing.T) {
    cases := []struct {
        in   any
        want string
    }{
        {nil, ""},
        {"coding error", "coding error"},
        {map[string]any{"value": "design flaw"}, "design flaw"},
        {map[string]any{"name": "configuration"}, "configuration"},
        {[]any{map[string]any{"value": "a"}, map[string]any{"value": "b"}}, "a, b"},
        {float64(3), "3"},
    }
    for _, c := range cases {
        if got := optionToString(c.in); got != c.want {
            t.Fatalf("optionToString(%v)=%q want %q", c.in, got, c.want)
        }
    }
}

func TestChangeEventsFromHistories(t *testing.T) {
    s := &Service{}
    histories := []any{
        map[string]any{
            "created": "2024-11-04T09:00:00.000+0000",
            "items": []any{
                // first transition: Jira reports fromString null
                map[string]any{"field": "status", "fromString": nil, "toString": "In Progress"},
                map[string]any{"field": "description", "fromString": "x", "toString": "y"},
            },
        },
        map[string]any{
            "created": "2024-11-04T15:00:00.000+0000",
            "items": []any{
                map[string]any{"field": "status", "fromString": "In Progress", "toString": "Closed"},
                map[string]any{"field": "assignee", "fromString": "alice", "toString": "bob"},
                map[string]any{"field": "Code Review Status", "fromString": nil, "toString": "Approved"},
            },
        },
        map[string]any{"created": "garbage", "items": []any{map[string]any{"field": "status", "toString": "x"}}},
    }
    got := s.changeEventsFromHistories("10001", histories)
    if len(got) != 4 { t.Fatalf("expected 4 tracked events, got %d: %+v", len(got), got) }
    if got[0].FromVal != nil { t.Fatalf("first status transition must have nil from, got %v", *got[0].FromVal) }
    if got[0].Field != domain.FieldStatus || got[0].ToVal != "In Progress" {
        t.Fatalf("unexpected first event: %+v", got[0])
    }
    if got[1].FromVal == nil || *got[1].FromVal != "In Progress" {
        t.Fatalf("second status transition lost its from value: %+v", got[1])
    }
    if got[2].Field != domain.FieldAssignee { t.Fatalf("assignee event not tracked: %+v", got[2]) }
    if got[3].Field != domain.FieldCodeReview || got[3].ToVal != "Approved" {
        t.Fatalf("code review event not tracked: %+v", got[3])
    }
}

func TestSyncQueries(t *testing.T) {
    s := &Service{}
    s.cfg.JiraDefaultJQL = "updated >= -7d"
    if q := s.syncQueries(); len(q) != 1 || q[0] != "updated >= -7d" {
        t.Fatalf("no projects must fall back to the default jql: %v", q)
    }
    s.cfg.JiraProjects = []string{"FFF", "PB"}
    q := s.syncQueries()
    if len(q) != 2 { t.Fatalf("expected one query per project, got %v", q) }
    if q[0] != "project=FFF AND (issuetype=Story OR issuetype=Bug) AND (updated >= -7d)" {
        t.Fatalf("unexpected jql: %q", q[0])
    }
}

func TestBuildTimeInStatus(t *testing.T) {
    cal := workhours.MustNew(9, 17, 12, 13, time.UTC, nil)
    recon := timeline.NewReconstructor("Closed")
    now := func() time.Time { return time.Date(2024, 11, 5, 9, 0, 0, 0, time.UTC) }
    agg := timeline.NewAggregator(cal, now)
    productFor := func(project string) string {
        if project == "FFF" { return "RTMS" }
        return ""
    }
    pts := 3.0
    issues := []domain.Issue{
        {IssueID: "1", Key: "FFF-1", Project: "FFF", Owner: "alice", Status: "Closed", StoryPoints: &pts},
        {IssueID: "2", Key: "FFF-2", Project: "FFF", Owner: "", Status: "Closed"},
        {IssueID: "3", Key: "ZZZ-1", Project: "ZZZ", Owner: "bob", Status: "Closed"},
    }
    at := func(d, h int) time.Time { return time.Date(2024, 11, d, h, 0, 0, 0, time.UTC) }
    events := []domain.ChangeEvent{
        // Monday 9-13 in progress, one business hour eaten by lunch
        {IssueID: "1", Field: domain.FieldStatus, ToVal: "In Progress", At: at(4, 9)},
        {IssueID: "1", Field: domain.FieldStatus, ToVal: "Closed", At: at(4, 13)},
        {IssueID: "2", Field: domain.FieldStatus, ToVal: "In Progress", At: at(4, 9)},
        {IssueID: "2", Field: domain.FieldStatus, ToVal: "Closed", At: at(4, 13)},
        {IssueID: "3", Field: domain.FieldStatus, ToVal: "In Progress", At: at(4, 9)},
        {IssueID: "3", Field: domain.FieldStatus, ToVal: "Closed", At: at(4, 13)},
    }
    rows := buildTimeInStatus(recon, agg, productFor, issues, events, "in progress")
    if len(rows) != 1 { t.Fatalf("ownerless and unmapped issues must be excluded, got %+v", rows) }
    r := rows[0]
    if r.Key != "FFF-1" || r.Product != "RTMS" || r.Owner != "alice" {
        t.Fatalf("unexpected row: %+v", r)
    }
    if r.BusinessHours != 3.0 { t.Fatalf("business hours = %v, want 3.0", r.BusinessHours) }
    if r.StoryPoints == nil || *r.StoryPoints != 3.0 { t.Fatalf("story points lost: %+v", r) }
}

func TestParseGroupBy(t *testing.T) {
    got, err := ParseGroupBy("")
    if err != nil || len(got) != 1 || got[0] != timeline.AttrOwner {
        t.Fatalf("default must be owner: %v %v", got, err)
    }
    got, err = ParseGroupBy("owner, project")
    if err != nil || len(got) != 2 || got[1] != timeline.AttrProject {
        t.Fatalf("csv parse failed: %v %v", got, err)
    }
    if _, err := ParseGroupBy("owner,bogus"); err == nil {
        t.Fatalf("unknown attribute must be rejected")
    }
}

func TestProjectsFor(t *testing.T) {
    s := &Service{}
    s.cfg.ProductMap = map[string][]string{"RTMS": {"FFF", "SLY"}}
    if p, err := s.projectsFor(""); err != nil || p != nil {
        t.Fatalf("empty product must mean no filter: %v %v", p, err)
    }
    p, err := s.projectsFor("rtms")
    if err != nil || len(p) != 2 || p[0] != "FFF" {
        t.Fatalf("product lookup must be case-insensitive: %v %v", p, err)
    }
    if _, err := s.projectsFor("nope"); err == nil {
        t.Fatalf("unmapped product must be rejected")
    }
}

func TestParseField(t *testing.T) {
    if f, err := ParseField(""); err != nil || f != domain.FieldStatus {
        t.Fatalf("empty field must default to status: %v %v", f, err)
    }
    if f, err := ParseField("code_review_status"); err != nil || f != domain.FieldCodeReview {
        t.Fatalf("code review field not accepted: %v %v", f, err)
    }
    if _, err := ParseField("summary"); err == nil {
        t.Fatalf("untracked field must be rejected")
    }
}
