package models

import (
	"fmt"
	"time"
)

// DateRange is the half-open interval [Start, End) an export covers.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// InvalidRangeError is returned when a range does not satisfy Start < End.
type InvalidRangeError struct {
	Start time.Time
	End   time.Time
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid date range: start %s is not before end %s",
		e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339))
}

// Validate checks that the range is non-empty.
func (r DateRange) Validate() error {
	if !r.Start.Before(r.End) {
		return &InvalidRangeError{Start: r.Start, End: r.End}
	}
	return nil
}

// CurrentWeek returns the week containing now, starting at midnight of
// weekStart in loc and lasting seven days.
func CurrentWeek(now time.Time, loc *time.Location, weekStart time.Weekday) DateRange {
	local := now.In(loc)
	offset := (int(local.Weekday()) - int(weekStart) + 7) % 7
	start := time.Date(local.Year(), local.Month(), local.Day()-offset, 0, 0, 0, 0, loc)
	return DateRange{Start: start, End: start.AddDate(0, 0, 7)}
}

// Day returns the calendar day containing t in loc.
func Day(t time.Time, loc *time.Location) DateRange {
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return DateRange{Start: start, End: start.AddDate(0, 0, 1)}
}
