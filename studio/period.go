package studio

import (
	"fmt"
	"time"
)

// =============================================================================
// BILLING PERIOD - Window used to count monthly plan reservations
// =============================================================================

// Period is the half-open window [Start, End).
type Period struct {
	Start time.Time
	End   time.Time
}

// Contains returns true if t is within [Start, End).
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// Next returns the period that follows p.
func (p Period) Next(pt PeriodType, anchor time.Time) Period {
	return pt.PeriodFor(anchor, p.End)
}

func (p Period) String() string {
	return "[" + p.Start.Format("2006-01-02") + ", " + p.End.Format("2006-01-02") + ")"
}

// PeriodType defines how billing periods are calculated.
type PeriodType string

const (
	PeriodCalendarMonth PeriodType = "calendar_month" // 1st of month to 1st of next month
	PeriodAnniversary   PeriodType = "anniversary"    // monthly from the plan start day
)

// ParsePeriodType validates a configured period type.
func ParsePeriodType(s string) (PeriodType, error) {
	switch PeriodType(s) {
	case PeriodCalendarMonth, PeriodAnniversary:
		return PeriodType(s), nil
	case "":
		return PeriodAnniversary, nil
	}
	return "", fmt.Errorf("unknown billing period type %q", s)
}

// PeriodFor returns the billing period containing at for a plan that
// started on anchor. Both boundaries are midnight UTC.
func (pt PeriodType) PeriodFor(anchor, at time.Time) Period {
	at = at.UTC()
	if pt == PeriodCalendarMonth {
		start := time.Date(at.Year(), at.Month(), 1, 0, 0, 0, 0, time.UTC)
		return Period{Start: start, End: start.AddDate(0, 1, 0)}
	}

	day := anchor.UTC().Day()
	start := anniversaryIn(at.Year(), at.Month(), day)
	if start.After(at) {
		prev := time.Date(at.Year(), at.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
		start = anniversaryIn(prev.Year(), prev.Month(), day)
	}
	next := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	return Period{Start: start, End: anniversaryIn(next.Year(), next.Month(), day)}
}

// anniversaryIn returns day-of-month in the given month, clamped to the
// month's last day (a plan started on the 31st renews on Feb 28/29).
func anniversaryIn(year int, month time.Month, day int) time.Time {
	last := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1).Day()
	if day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
