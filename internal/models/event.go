package models

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

const (
	// DefaultTitle is used for events that arrive without a summary.
	DefaultTitle = "Untitled Event"
	// DefaultCalendar is used for events whose calendar is unknown.
	DefaultCalendar = "Unknown Calendar"
)

// Event represents a single calendar entry after normalization.
// This is an internal representation, independent of the source that produced it.
type Event struct {
	Calendar string    // Name of the calendar the event belongs to
	Title    string    // Summary or title of the event
	Start    time.Time // Start of the event
	End      time.Time // End of the event, never before Start
	AllDay   bool      // Only the date part of Start/End is meaningful
	Location string    // Optional, empty when absent
	Notes    string    // Optional, empty when absent
}

// NewEvent fills in the defaults for missing names and checks the time invariant.
func NewEvent(calendar, title string, start, end time.Time, allDay bool) (Event, error) {
	if strings.TrimSpace(title) == "" {
		title = DefaultTitle
	}
	if strings.TrimSpace(calendar) == "" {
		calendar = DefaultCalendar
	}
	if end.Before(start) {
		return Event{}, fmt.Errorf("end %s is before start %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	return Event{
		Calendar: strings.TrimSpace(calendar),
		Title:    strings.TrimSpace(title),
		Start:    start,
		End:      end,
		AllDay:   allDay,
	}, nil
}

// SkippedEventWarning records an event that was dropped while building a batch.
// It is never fatal.
type SkippedEventWarning struct {
	Title    string
	Calendar string
	Reason   string
}

func (w SkippedEventWarning) String() string {
	return fmt.Sprintf("skipped event %q (%s): %s", w.Title, w.Calendar, w.Reason)
}

// Batch is the ordered set of events exported in one run.
type Batch struct {
	Range   DateRange
	Events  []Event
	Skipped []SkippedEventWarning
}

// NewBatch sorts events by start time. Events with equal start times keep
// the order in which the source returned them.
func NewBatch(r DateRange, events []Event, skipped []SkippedEventWarning) *Batch {
	sorted := slices.Clone(events)
	slices.SortStableFunc(sorted, func(a, b Event) int {
		return a.Start.Compare(b.Start)
	})
	return &Batch{
		Range:   r,
		Events:  sorted,
		Skipped: skipped,
	}
}

// Count returns the number of events in the batch.
func (b *Batch) Count() int {
	return len(b.Events)
}
