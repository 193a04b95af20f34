package domain

import "time"

// Field names the change-history dimensions the pipeline understands.
type Field string

const (
    FieldStatus     Field = "status"
    FieldAssignee   Field = "assignee"
    FieldCodeReview Field = "code_review_status"
)

type Issue struct {
    ID          int64
    IssueID     string
    Key         string
    Project     string
    Summary     string
    Type        string
    Priority    string
    Owner       string
    Reporter    string
    Status      string
    Resolution  string
    RootCause   string
    StoryPoints *float64
    CreatedAt   *time.Time
    UpdatedAt   *time.Time
    ResolvedAt  *time.Time
}

// ChangeEvent is one field transition from the issue changelog. FromVal is
// nil at the issue's very first transition of a field, never the string "None".
type ChangeEvent struct {
    ID      int64
    IssueID string
    Field   Field
    FromVal *string
    ToVal   string
    At      time.Time
}

// StatusInterval is a half-open interval [Start, End) during which the issue
// held Value for Field. End == nil means the interval is still open; the
// aggregation step substitutes its own "now", it is never persisted.
type StatusInterval struct {
    IssueID string
    Field   Field
    Value   string
    Start   time.Time
    End     *time.Time
}
