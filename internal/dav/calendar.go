package dav

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"

	"ical-share/internal/config"
	"ical-share/internal/ics"
	"ical-share/internal/models"
)

// CalendarSource reads events from one calendar on a CalDAV server.
type CalendarSource struct {
	client       *caldav.Client
	logger       *slog.Logger
	loc          *time.Location
	calendarName string
	calendarPath string
}

// NewCalendarSource creates a source for the calendar named cfg.Calendar.
// The calendar is looked up on the first Fetch.
func NewCalendarSource(logger *slog.Logger, cfg config.CalDAVConfig, loc *time.Location) (*CalendarSource, error) {
	httpClient := NewHTTPClient(cfg.Username, cfg.Password)

	client, err := caldav.NewClient(httpClient, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav client: %w", err)
	}

	return &CalendarSource{
		client:       client,
		logger:       logger,
		loc:          loc,
		calendarName: cfg.Calendar,
	}, nil
}

func (s *CalendarSource) Name() string { return "caldav" }

// Fetch returns the events of the calendar that overlap rng. Recurring
// series are returned as stored and are not expanded into occurrences.
func (s *CalendarSource) Fetch(ctx context.Context, rng models.DateRange) (*models.Batch, error) {
	if err := rng.Validate(); err != nil {
		return nil, err
	}

	if s.calendarPath == "" {
		s.logger.Info("Finding CalDAV calendar", "calendarName", s.calendarName)
		p, err := s.findCalendar(ctx, s.calendarName)
		if err != nil {
			return nil, fmt.Errorf("could not find calendar '%s': %w", s.calendarName, err)
		}
		s.calendarPath = p
		s.logger.Info("Successfully found CalDAV calendar", "path", p)
	}

	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:     ical.CompCalendar,
			AllProps: true,
			AllComps: true,
		},
		CompFilter: caldav.CompFilter{
			Name: ical.CompCalendar,
			Comps: []caldav.CompFilter{{
				Name:  ical.CompEvent,
				Start: rng.Start.UTC(),
				End:   rng.End.UTC(),
			}},
		},
	}

	objects, err := s.client.QueryCalendar(ctx, s.calendarPath, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query calendar: %w", err)
	}

	events, skipped := eventsFromObjects(objects, s.calendarName, rng, s.loc)
	for _, w := range skipped {
		s.logger.Warn("Skipped event", "title", w.Title, "reason", w.Reason)
	}
	s.logger.Info("Fetched events from CalDAV", "count", len(events))

	return models.NewBatch(rng, events, skipped), nil
}

func eventsFromObjects(objects []caldav.CalendarObject, calendarName string, rng models.DateRange, loc *time.Location) ([]models.Event, []models.SkippedEventWarning) {
	var (
		events  []models.Event
		skipped []models.SkippedEventWarning
	)
	for _, obj := range objects {
		if obj.Data == nil {
			continue
		}
		for _, ev := range obj.Data.Events() {
			e, err := ics.EventFromICal(ev, calendarName, loc)
			if err != nil {
				summary, _ := ev.Props.Text(ical.PropSummary)
				skipped = append(skipped, models.SkippedEventWarning{
					Title:    summary,
					Calendar: calendarName,
					Reason:   err.Error(),
				})
				continue
			}
			if !e.Start.Before(rng.End) || e.End.Before(rng.Start) {
				reason := "outside range"
				if ev.Props.Get(ical.PropRecurrenceRule) != nil {
					reason = "recurring series starts outside range"
				}
				skipped = append(skipped, models.SkippedEventWarning{
					Title:    e.Title,
					Calendar: calendarName,
					Reason:   reason,
				})
				continue
			}
			events = append(events, e)
		}
	}
	return events, skipped
}

// findCalendar discovers the user's calendars and returns the path of the one
// with the matching name.
func (s *CalendarSource) findCalendar(ctx context.Context, name string) (string, error) {
	principalPath, err := s.client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to find principal path: %w", err)
	}

	homeSetPath, err := s.client.FindCalendarHomeSet(ctx, principalPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendar home set: %w", err)
	}

	calendars, err := s.client.FindCalendars(ctx, homeSetPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendars: %w", err)
	}

	for _, cal := range calendars {
		if cal.Name == name {
			return cal.Path, nil
		}
	}

	return "", fmt.Errorf("no calendar found with name '%s'", name)
}
