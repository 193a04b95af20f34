package timeline

import (
    "sort"

    "github.com/omursimsek/JIRA-metrics/internal/domain"
)

// Reconstructor rebuilds, from the append-only change history, the intervals
// during which each issue held each value of one field.
type Reconstructor struct {
    terminal map[string]struct{}
}

// NewReconstructor takes the set of field values considered terminal: when an
// issue's last recorded transition lands on one of them, no open trailing
// interval is emitted. Matching is exact and case-sensitive.
func NewReconstructor(terminal ...string) *Reconstructor {
    m := make(map[string]struct{}, len(terminal))
    for _, v := range terminal { m[v] = struct{}{} }
    return &Reconstructor{terminal: m}
}

// Intervals derives half-open [At_i, At_i+1) intervals per issue for the
// given field. Events are re-sorted stably by timestamp within each issue, so
// same-instant ties keep their capture order. Issues with no events of the
// field simply produce nothing. The last interval stays open (nil End)
// unless its value is terminal; empty intervals (consecutive events at the
// same instant) are dropped so Start < End always holds for resolved ends.
func (r *Reconstructor) Intervals(events []domain.ChangeEvent, field domain.Field) []domain.StatusInterval {
    byIssue := map[string][]domain.ChangeEvent{}
    var order []string
    for _, e := range events {
        if e.Field != field { continue }
        if _, seen := byIssue[e.IssueID]; !seen { order = append(order, e.IssueID) }
        byIssue[e.IssueID] = append(byIssue[e.IssueID], e)
    }

    var out []domain.StatusInterval
    for _, id := range order {
        seq := byIssue[id]
        sort.SliceStable(seq, func(i, j int) bool { return seq[i].At.Before(seq[j].At) })
        for i, e := range seq {
            if i+1 < len(seq) {
                end := seq[i+1].At
                if !e.At.Before(end) { continue }
                out = append(out, domain.StatusInterval{IssueID: id, Field: field, Value: e.ToVal, Start: e.At, End: &end})
                continue
            }
            if _, done := r.terminal[e.ToVal]; done { continue }
            out = append(out, domain.StatusInterval{IssueID: id, Field: field, Value: e.ToVal, Start: e.At})
        }
    }
    return out
}
