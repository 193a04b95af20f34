package workhours

import (
    "fmt"
    "time"
)

// Calendar is the single process-wide working schedule: a daily working
// window with a lunch break, weekends off, plus a fixed holiday list.
// It is immutable after New and safe for concurrent use.
type Calendar struct {
    workStart  int
    workEnd    int
    lunchStart int
    lunchEnd   int
    loc        *time.Location
    holidays   map[string]struct{} // keyed YYYY-MM-DD in loc
}

func New(workStart, workEnd, lunchStart, lunchEnd int, loc *time.Location, holidays []string) (*Calendar, error) {
    for _, h := range []int{workStart, workEnd, lunchStart, lunchEnd} {
        if h < 0 || h > 23 { return nil, fmt.Errorf("workhours: hour %d out of range 0-23", h) }
    }
    if !(workStart < lunchStart && lunchStart < lunchEnd && lunchEnd < workEnd) {
        return nil, fmt.Errorf("workhours: invalid schedule: work %d-%d lunch %d-%d", workStart, workEnd, lunchStart, lunchEnd)
    }
    if loc == nil { loc = time.UTC }
    hs := make(map[string]struct{}, len(holidays))
    for _, d := range holidays {
        if _, err := time.ParseInLocation("2006-01-02", d, loc); err != nil {
            return nil, fmt.Errorf("workhours: bad holiday date %q: %w", d, err)
        }
        hs[d] = struct{}{}
    }
    return &Calendar{workStart: workStart, workEnd: workEnd, lunchStart: lunchStart, lunchEnd: lunchEnd, loc: loc, holidays: hs}, nil
}

// MustNew is for tests and hardwired defaults that are known valid.
func MustNew(workStart, workEnd, lunchStart, lunchEnd int, loc *time.Location, holidays []string) *Calendar {
    c, err := New(workStart, workEnd, lunchStart, lunchEnd, loc, holidays)
    if err != nil { panic(err) }
    return c
}

func (c *Calendar) Location() *time.Location { return c.loc }

// DayHours is the net length of one full working day.
func (c *Calendar) DayHours() float64 {
    return float64(c.workEnd-c.workStart) - float64(c.lunchEnd-c.lunchStart)
}

// WorkingDay reports whether t falls on a working date: not Saturday or
// Sunday and not in the holiday list.
func (c *Calendar) WorkingDay(t time.Time) bool {
    t = t.In(c.loc)
    if wd := t.Weekday(); wd == time.Saturday || wd == time.Sunday { return false }
    _, off := c.holidays[t.Format("2006-01-02")]
    return !off
}

// WorkingInstant reports whether t is inside working time: a working day,
// within the working window and outside the lunch break.
func (c *Calendar) WorkingInstant(t time.Time) bool {
    if !c.WorkingDay(t) { return false }
    t = t.In(c.loc)
    if t.Before(c.at(t, c.workStart)) || !t.Before(c.at(t, c.workEnd)) { return false }
    if !t.Before(c.at(t, c.lunchStart)) && t.Before(c.at(t, c.lunchEnd)) { return false }
    return true
}

// NextWorkStart advances t forward to the next valid working instant: the
// same instant if already working, the end of lunch if inside the break,
// otherwise the work start of the next working day.
func (c *Calendar) NextWorkStart(t time.Time) time.Time {
    t = t.In(c.loc)
    for {
        if c.WorkingDay(t) {
            if t.Before(c.at(t, c.workStart)) { return c.at(t, c.workStart) }
            if t.Before(c.at(t, c.workEnd)) {
                if !t.Before(c.at(t, c.lunchStart)) && t.Before(c.at(t, c.lunchEnd)) { return c.at(t, c.lunchEnd) }
                return t
            }
        }
        t = c.at(t.AddDate(0, 0, 1), c.workStart)
    }
}

// at anchors an hour-of-day to t's calendar date.
func (c *Calendar) at(t time.Time, hour int) time.Time {
    return time.Date(t.Year(), t.Month(), t.Day(), hour, 0, 0, 0, c.loc)
}
