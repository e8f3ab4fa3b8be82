package ics

import (
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"

	"ical-share/internal/models"
)

// ContentType is the MIME type of generated documents.
const ContentType = "text/calendar"

// Formatter renders export batches as iCalendar documents.
type Formatter struct {
	productID    string
	namespace    string
	calendarName string
}

// NewFormatter creates a Formatter. namespace is the domain part of event
// UIDs; calendarName, if not empty, is written as X-WR-CALNAME.
func NewFormatter(productID, namespace, calendarName string) *Formatter {
	return &Formatter{
		productID:    productID,
		namespace:    namespace,
		calendarName: calendarName,
	}
}

// Format renders the batch. runAt seeds the event UIDs and DTSTAMP, so two
// runs never produce colliding UIDs. An empty batch yields a calendar with
// no events.
func (f *Formatter) Format(batch *models.Batch, runAt time.Time) []byte {
	runAt = runAt.UTC()

	cal := ical.NewCalendar()
	cal.SetProductId(f.productID)
	cal.SetCalscale("GREGORIAN")
	if f.calendarName != "" {
		cal.SetXWRCalName(f.calendarName)
	}

	for i, ev := range batch.Events {
		vevent := cal.AddEvent(UID(runAt, i, f.namespace))
		vevent.SetDtStampTime(runAt)
		vevent.SetSummary(ev.Title)
		if ev.AllDay {
			start, end := allDayDates(ev)
			vevent.SetAllDayStartAt(start)
			vevent.SetAllDayEndAt(end)
		} else {
			vevent.SetStartAt(ev.Start.UTC())
			vevent.SetEndAt(ev.End.UTC())
		}
		vevent.SetDescription(Description(ev))
		if ev.Location != "" {
			vevent.SetLocation(ev.Location)
		}
	}

	return []byte(cal.Serialize(ical.WithNewLineWindows))
}

// UID builds the identifier of the index-th event of a run.
func UID(runAt time.Time, index int, namespace string) string {
	return fmt.Sprintf("%d-%d@%s", runAt.UnixMilli(), index, namespace)
}

// Description is the calendar name, followed by the notes after a blank
// line when there are any.
func Description(ev models.Event) string {
	desc := descriptionPrefix + ev.Calendar
	if ev.Notes != "" {
		desc += "\n\n" + ev.Notes
	}
	return desc
}

const descriptionPrefix = "Calendar: "

// allDayDates returns the first day and the exclusive last day of an
// all-day event, in the event's own zone. An end with a time of day counts
// as covering that whole day.
func allDayDates(ev models.Event) (time.Time, time.Time) {
	start := dateOf(ev.Start)
	end := dateOf(ev.End)

	endLocal := ev.End
	if endLocal.Hour() != 0 || endLocal.Minute() != 0 || endLocal.Second() != 0 || endLocal.Nanosecond() != 0 {
		end = end.AddDate(0, 0, 1)
	}
	if !end.After(start) {
		end = start.AddDate(0, 0, 1)
	}
	return start, end
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
