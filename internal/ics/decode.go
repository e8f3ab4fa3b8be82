package ics

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"ical-share/internal/models"
)

// Decode parses an iCalendar document into events. Floating and date-only
// values are interpreted in loc.
func Decode(r io.Reader, loc *time.Location) ([]models.Event, error) {
	cal, err := ical.NewDecoder(r).Decode()
	if err != nil {
		return nil, fmt.Errorf("failed to decode calendar: %w", err)
	}

	var events []models.Event
	for _, ev := range cal.Events() {
		e, err := EventFromICal(ev, "", loc)
		if err != nil {
			uid, _ := ev.Props.Text(ical.PropUID)
			return nil, fmt.Errorf("event %s: %w", uid, err)
		}
		events = append(events, e)
	}
	return events, nil
}

// EventFromICal converts a VEVENT. When calendarName is empty the name is
// recovered from a "Calendar: <name>" description as written by Formatter.
func EventFromICal(ev ical.Event, calendarName string, loc *time.Location) (models.Event, error) {
	start, err := ev.DateTimeStart(loc)
	if err != nil {
		return models.Event{}, fmt.Errorf("invalid DTSTART: %w", err)
	}
	end, err := ev.DateTimeEnd(loc)
	if err != nil {
		return models.Event{}, fmt.Errorf("invalid DTEND: %w", err)
	}

	allDay := false
	if prop := ev.Props.Get(ical.PropDateTimeStart); prop != nil && prop.ValueType() == ical.ValueDate {
		allDay = true
	}

	summary, err := ev.Props.Text(ical.PropSummary)
	if err != nil {
		return models.Event{}, fmt.Errorf("invalid SUMMARY: %w", err)
	}
	description, err := ev.Props.Text(ical.PropDescription)
	if err != nil {
		return models.Event{}, fmt.Errorf("invalid DESCRIPTION: %w", err)
	}
	location, err := ev.Props.Text(ical.PropLocation)
	if err != nil {
		return models.Event{}, fmt.Errorf("invalid LOCATION: %w", err)
	}

	notes := description
	if calendarName == "" {
		calendarName, notes = splitDescription(description)
	}

	e, err := models.NewEvent(calendarName, summary, start, end, allDay)
	if err != nil {
		return models.Event{}, err
	}
	e.Location = location
	e.Notes = notes
	return e, nil
}

func splitDescription(desc string) (calendar, notes string) {
	if !strings.HasPrefix(desc, descriptionPrefix) {
		return "", desc
	}
	rest := strings.TrimPrefix(desc, descriptionPrefix)
	calendar, notes, _ = strings.Cut(rest, "\n\n")
	return calendar, notes
}
