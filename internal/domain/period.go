package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar date format used in query strings and CSV.
const DateLayout = "2006-01-02"

// Resolution is the length of one period in a series.
type Resolution string

const (
	ResolutionDaily   Resolution = "daily"
	ResolutionMonthly Resolution = "monthly"
	ResolutionAnnual  Resolution = "annual"
)

// ParseResolution accepts "daily", "monthly" or "annual" (case-insensitive).
func ParseResolution(s string) (Resolution, error) {
	switch r := Resolution(strings.ToLower(strings.TrimSpace(s))); r {
	case ResolutionDaily, ResolutionMonthly, ResolutionAnnual:
		return r, nil
	default:
		return "", fmt.Errorf("unknown resolution %q", s)
	}
}

// PeriodStart truncates t to the first day of its period at UTC midnight.
func (r Resolution) PeriodStart(t time.Time) time.Time {
	t = t.UTC()
	switch r {
	case ResolutionMonthly:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	case ResolutionAnnual:
		return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
}

// Next returns the start of the period after the one containing t.
func (r Resolution) Next(t time.Time) time.Time {
	start := r.PeriodStart(t)
	switch r {
	case ResolutionMonthly:
		return start.AddDate(0, 1, 0)
	case ResolutionAnnual:
		return start.AddDate(1, 0, 0)
	default:
		return start.AddDate(0, 0, 1)
	}
}

// Periodicity is the number of periods in one seasonal cycle: a week of days,
// a year of months. Annual series have no sub-cycle.
func (r Resolution) Periodicity() int {
	switch r {
	case ResolutionDaily:
		return 7
	case ResolutionMonthly:
		return 12
	default:
		return 1
	}
}

// finer reports whether r covers a shorter span than other.
func (r Resolution) finer(other Resolution) bool {
	return r.rank() < other.rank()
}

func (r Resolution) rank() int {
	switch r {
	case ResolutionDaily:
		return 0
	case ResolutionMonthly:
		return 1
	default:
		return 2
	}
}

// DateRange is an inclusive span of calendar days.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewDateRange builds a range from two dates, truncated to UTC midnight.
func NewDateRange(start, end time.Time) (DateRange, error) {
	r := DateRange{
		Start: ResolutionDaily.PeriodStart(start),
		End:   ResolutionDaily.PeriodStart(end),
	}
	if r.End.Before(r.Start) {
		return DateRange{}, fmt.Errorf("date range end %s before start %s",
			r.End.Format(DateLayout), r.Start.Format(DateLayout))
	}
	return r, nil
}

// ParseDateRange parses YYYY-MM-DD bounds.
func ParseDateRange(start, end string) (DateRange, error) {
	s, err := time.Parse(DateLayout, strings.TrimSpace(start))
	if err != nil {
		return DateRange{}, fmt.Errorf("parse start date: %w", err)
	}
	e, err := time.Parse(DateLayout, strings.TrimSpace(end))
	if err != nil {
		return DateRange{}, fmt.Errorf("parse end date: %w", err)
	}
	return NewDateRange(s, e)
}

// LookbackRange returns the range ending today that spans the given number of days.
func LookbackRange(days int) (DateRange, error) {
	if days <= 0 {
		return DateRange{}, errors.New("lookback must be positive")
	}
	end := Now()
	return NewDateRange(end.AddDate(0, 0, -days), end)
}

// Contains reports whether t falls on a day inside the range.
func (r DateRange) Contains(t time.Time) bool {
	d := ResolutionDaily.PeriodStart(t)
	return !d.Before(r.Start) && !d.After(r.End)
}

// Overlaps reports whether the period of resolution res starting at t shares
// at least one day with the range.
func (r DateRange) Overlaps(t time.Time, res Resolution) bool {
	start := res.PeriodStart(t)
	last := res.Next(start).AddDate(0, 0, -1)
	return !last.Before(r.Start) && !start.After(r.End)
}

func (r DateRange) String() string {
	return r.Start.Format(DateLayout) + ".." + r.End.Format(DateLayout)
}
