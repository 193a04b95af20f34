package workhours

import "time"

// Hours returns the elapsed business hours between start and end: the
// working window of each touched day, minus the lunch break, skipping
// weekends and holidays. Degenerate input (zero timestamps, end not after
// start) yields 0, never an error.
//
// The walk advances one calendar day at a time. Each day the pointer is
// clamped to the day's work start; the day's contribution is split into a
// pre-lunch and a post-lunch portion, both floored at zero so a span that
// dies inside lunch counts nothing after it. When end falls before a day's
// work start the walk stops: that day and everything after it contribute
// nothing.
func (c *Calendar) Hours(start, end time.Time) float64 {
    if start.IsZero() || end.IsZero() || !start.Before(end) { return 0 }
    start = start.In(c.loc)
    end = end.In(c.loc)

    total := 0.0
    cur := start
    for cur.Before(end) {
        if c.WorkingDay(cur) {
            dayStart := c.at(cur, c.workStart)
            dayEnd := c.at(cur, c.workEnd)
            lunchStart := c.at(cur, c.lunchStart)
            lunchEnd := c.at(cur, c.lunchEnd)

            if end.Before(dayStart) { break }
            if cur.Before(dayStart) { cur = dayStart }
            if !cur.Before(dayEnd) {
                cur = c.at(cur.AddDate(0, 0, 1), c.workStart)
                continue
            }

            effEnd := minTime(dayEnd, end)
            if cur.Before(lunchStart) {
                total += clamp0(minTime(lunchStart, effEnd).Sub(cur).Hours())
                cur = minTime(effEnd, lunchEnd)
            }
            total += clamp0(effEnd.Sub(maxTime(cur, lunchEnd)).Hours())
        }
        cur = c.at(cur.AddDate(0, 0, 1), c.workStart)
    }
    return total
}

// HoursPtr is Hours with the nullable timestamps the history store hands
// back; a missing endpoint is a defined zero, not an error.
func (c *Calendar) HoursPtr(start, end *time.Time) float64 {
    if start == nil || end == nil { return 0 }
    return c.Hours(*start, *end)
}

func minTime(a, b time.Time) time.Time { if a.Before(b) { return a }; return b }
func maxTime(a, b time.Time) time.Time { if a.After(b) { return a }; return b }
func clamp0(v float64) float64 { if v < 0 { return 0 }; return v }
