package timeline

import (
    "math"
    "sort"
    "strings"
    "time"

    "github.com/omursimsek/JIRA-metrics/internal/domain"
    "github.com/omursimsek/JIRA-metrics/internal/workhours"
)

// Attr is a grouping attribute for Aggregate.
type Attr string

const (
    AttrOwner        Attr = "owner"
    AttrProject      Attr = "project"
    AttrProduct      Attr = "product"
    AttrPointsBucket Attr = "points_bucket"
)

// Meta carries the per-issue attributes aggregation groups by; the interval
// stream itself only knows issue ids.
type Meta struct {
    Key         string
    Project     string
    Product     string
    Owner       string
    Status      string
    StoryPoints *float64
}

// Row is one output group: the grouping attribute values, total business
// hours (rounded to 2 decimals), and hours per story point when the group's
// issues carry a usable estimate.
type Row struct {
    Group         map[Attr]string `json:"group"`
    BusinessHours float64         `json:"business_hours"`
    StoryPoints   float64         `json:"story_points"`
    HoursPerPoint *float64        `json:"hours_per_point,omitempty"`
}

// Aggregator measures filtered status intervals in business hours and sums
// them per grouping key. The evaluation-time "now" closes open intervals, so
// repeated queries see elapsed time grow.
type Aggregator struct {
    cal *workhours.Calendar
    now func() time.Time
}

func NewAggregator(cal *workhours.Calendar, now func() time.Time) *Aggregator {
    if now == nil { now = time.Now }
    return &Aggregator{cal: cal, now: now}
}

// Duration is the business-hours length of one interval, open ends resolved
// against now.
func (a *Aggregator) Duration(iv domain.StatusInterval) float64 {
    end := a.now()
    if iv.End != nil { end = *iv.End }
    return a.cal.Hours(iv.Start, end)
}

// Aggregate filters intervals with match, measures each, and sums per the
// Cartesian key of groupBy attributes. Intervals whose issue has no metadata
// are skipped; groups with zero net duration are dropped.
func (a *Aggregator) Aggregate(intervals []domain.StatusInterval, match func(domain.StatusInterval) bool, meta map[string]Meta, groupBy []Attr) []Row {
    type bucket struct {
        group  map[Attr]string
        hours  float64
        issues map[string]*float64 // issue id → story points, deduplicated
    }
    buckets := map[string]*bucket{}

    for _, iv := range intervals {
        if match != nil && !match(iv) { continue }
        m, ok := meta[iv.IssueID]
        if !ok { continue }
        h := a.Duration(iv)
        if h <= 0 { continue }

        parts := make([]string, 0, len(groupBy))
        group := make(map[Attr]string, len(groupBy))
        for _, g := range groupBy {
            v := attrValue(g, m)
            group[g] = v
            parts = append(parts, v)
        }
        key := strings.Join(parts, "\x1f")
        b := buckets[key]
        if b == nil {
            b = &bucket{group: group, issues: map[string]*float64{}}
            buckets[key] = b
        }
        b.hours += h
        b.issues[iv.IssueID] = m.StoryPoints
    }

    keys := make([]string, 0, len(buckets))
    for k := range buckets { keys = append(keys, k) }
    sort.Strings(keys)

    out := make([]Row, 0, len(buckets))
    for _, k := range keys {
        b := buckets[k]
        points := 0.0
        for _, p := range b.issues {
            if p != nil { points += *p }
        }
        row := Row{Group: b.group, BusinessHours: round2(b.hours), StoryPoints: points}
        if points > 0 {
            hpp := round2(b.hours / points)
            row.HoursPerPoint = &hpp
        }
        out = append(out, row)
    }
    return out
}

func attrValue(g Attr, m Meta) string {
    switch g {
    case AttrOwner:
        return m.Owner
    case AttrProject:
        return m.Project
    case AttrProduct:
        return m.Product
    case AttrPointsBucket:
        return PointsBucket(m.StoryPoints)
    default:
        return ""
    }
}

// PointsBucket maps a story-point estimate onto the reporting buckets.
func PointsBucket(p *float64) string {
    switch {
    case p == nil || *p <= 0:
        return "unestimated"
    case *p <= 2:
        return "1-2"
    case *p <= 5:
        return "3-5"
    default:
        return "8+"
    }
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
