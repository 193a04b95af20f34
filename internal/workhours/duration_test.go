package workhours

import (
    "math"
    "testing"
    "time"
)

// 2024-11-01 is a Friday, 2024-11-04 a Monday.
func utc(d, h, m int) time.Time { return time.Date(2024, 11, d, h, m, 0, 0, time.UTC) }

func testCal(t *testing.T) *Calendar {
    t.Helper()
    cal, err := New(9, 17, 12, 13, time.UTC, nil)
    if err != nil { t.Fatalf("calendar: %v", err) }
    return cal
}

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestHours_DegenerateSpans(t *testing.T) {
    cal := testCal(t)
    at := utc(4, 10, 0)
    if got := cal.Hours(at, at); got != 0 {
        t.Fatalf("start == end should be 0, got %v", got)
    }
    if got := cal.Hours(utc(4, 15, 0), utc(4, 10, 0)); got != 0 {
        t.Fatalf("end before start should be 0, got %v", got)
    }
    if got := cal.Hours(time.Time{}, at); got != 0 {
        t.Fatalf("zero start should be 0, got %v", got)
    }
    if got := cal.HoursPtr(nil, &at); got != 0 {
        t.Fatalf("nil start should be 0, got %v", got)
    }
}

func TestHours_FullWorkingDay(t *testing.T) {
    cal := testCal(t)
    got := cal.Hours(utc(4, 9, 0), utc(4, 17, 0))
    if !almostEqual(got, cal.DayHours()) {
        t.Fatalf("full day = %v, want %v", got, cal.DayHours())
    }
    if !almostEqual(cal.DayHours(), 7.0) {
        t.Fatalf("DayHours = %v, want 7", cal.DayHours())
    }
}

func TestHours_OffHoursClampedSameDay(t *testing.T) {
    // Mon 08:00 → Mon 18:00 with work 9-17, lunch 12-13: 3h + 4h.
    cal := testCal(t)
    if got := cal.Hours(utc(4, 8, 0), utc(4, 18, 0)); !almostEqual(got, 7.0) {
        t.Fatalf("got %v, want 7.0", got)
    }
}

func TestHours_AcrossWeekend(t *testing.T) {
    // Fri 15:00 → Mon 12:00: Fri 15→17 = 2h, weekend 0, Mon 9→12 = 3h.
    cal := testCal(t)
    if got := cal.Hours(utc(1, 15, 0), utc(4, 12, 0)); !almostEqual(got, 5.0) {
        t.Fatalf("got %v, want 5.0", got)
    }
}

func TestHours_WeekendDaysContributeNothing(t *testing.T) {
    cal := testCal(t)
    if got := cal.Hours(utc(2, 8, 0), utc(2, 20, 0)); got != 0 { // Saturday
        t.Fatalf("saturday span = %v, want 0", got)
    }
    // A span crossing the weekend equals the same span with the weekend removed.
    across := cal.Hours(utc(1, 10, 0), utc(4, 15, 0))
    fri := cal.Hours(utc(1, 10, 0), utc(1, 17, 0))
    mon := cal.Hours(utc(4, 9, 0), utc(4, 15, 0))
    if !almostEqual(across, fri+mon) {
        t.Fatalf("across weekend = %v, want %v", across, fri+mon)
    }
}

func TestHours_HolidayContributesNothing(t *testing.T) {
    cal := MustNew(9, 17, 12, 13, time.UTC, []string{"2024-11-05"})
    if got := cal.Hours(time.Date(2024, 11, 5, 9, 0, 0, 0, time.UTC), time.Date(2024, 11, 5, 17, 0, 0, 0, time.UTC)); got != 0 {
        t.Fatalf("holiday span = %v, want 0", got)
    }
    // Mon 16:00 → Wed 10:00 with Tue a holiday: 1h + 1h.
    got := cal.Hours(utc(4, 16, 0), utc(6, 10, 0))
    if !almostEqual(got, 2.0) {
        t.Fatalf("got %v, want 2.0", got)
    }
}

func TestHours_LunchClamping(t *testing.T) {
    cal := testCal(t)
    cases := []struct {
        name       string
        start, end time.Time
        want       float64
    }{
        {"entirely before lunch", utc(4, 9, 0), utc(4, 11, 0), 2.0},
        {"entirely after lunch", utc(4, 14, 0), utc(4, 16, 0), 2.0},
        {"spanning lunch", utc(4, 11, 30), utc(4, 13, 30), 1.0},
        {"dies inside lunch", utc(4, 11, 0), utc(4, 12, 30), 1.0},
        {"starts inside lunch", utc(4, 12, 15), utc(4, 14, 0), 1.0},
        {"entirely inside lunch", utc(4, 12, 10), utc(4, 12, 50), 0.0},
    }
    for _, c := range cases {
        if got := cal.Hours(c.start, c.end); !almostEqual(got, c.want) {
            t.Errorf("%s: got %v, want %v", c.name, got, c.want)
        }
    }
}

func TestHours_EndBeforeDayStartTerminates(t *testing.T) {
    // Fri 16:00 → Mon 03:00: Monday's window never opens, only Friday counts.
    cal := testCal(t)
    if got := cal.Hours(utc(1, 16, 0), utc(4, 3, 0)); !almostEqual(got, 1.0) {
        t.Fatalf("got %v, want 1.0", got)
    }
}

func TestHours_MultiWeekSpan(t *testing.T) {
    // Mon Nov 4 09:00 → Fri Nov 15 17:00: ten working days.
    cal := testCal(t)
    got := cal.Hours(utc(4, 9, 0), utc(15, 17, 0))
    if !almostEqual(got, 10*cal.DayHours()) {
        t.Fatalf("got %v, want %v", got, 10*cal.DayHours())
    }
}

func TestHours_MonotoneInEnd(t *testing.T) {
    cal := testCal(t)
    start := utc(1, 10, 0)
    prev := 0.0
    for end := start.Add(time.Hour); end.Before(utc(8, 0, 0)); end = end.Add(37 * time.Minute) {
        got := cal.Hours(start, end)
        if got < prev {
            t.Fatalf("Hours decreased from %v to %v at end=%v", prev, got, end)
        }
        prev = got
    }
}

func TestHours_TimezoneNormalization(t *testing.T) {
    // The same instants expressed in another zone must yield the same hours.
    cal := testCal(t)
    off := time.FixedZone("UTC+3", 3*3600)
    a := cal.Hours(utc(4, 8, 0), utc(4, 18, 0))
    b := cal.Hours(utc(4, 8, 0).In(off), utc(4, 18, 0).In(off))
    if !almostEqual(a, b) {
        t.Fatalf("zone-shifted span differs: %v vs %v", a, b)
    }
}
