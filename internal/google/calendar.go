package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"ical-share/internal/config"
	"ical-share/internal/models"
)

const (
	credentialsFile = "credentials.json"
	dateLayout      = "2006-01-02"
)

// CalendarSource reads events from one or more Google calendars.
type CalendarSource struct {
	service     *calendar.Service
	logger      *slog.Logger
	calendarIDs []string
	loc         *time.Location
}

// NewCalendarSource creates a Google Calendar source using the token saved
// by the auth command.
func NewCalendarSource(ctx context.Context, logger *slog.Logger, cfg config.GoogleConfig, loc *time.Location) (*CalendarSource, error) {
	oauthConfig, err := getOAuthConfig(cfg.ClientID, cfg.ClientSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to get OAuth config: %w", err)
	}

	token, err := tokenFromFile(cfg.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("could not load token from %s: %w. Please run the 'auth' command first", cfg.TokenFile, err)
	}

	client := oauthConfig.Client(ctx, token)
	service, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	return &CalendarSource{
		service:     service,
		logger:      logger,
		calendarIDs: cfg.CalendarIDs,
		loc:         loc,
	}, nil
}

func (c *CalendarSource) Name() string { return "google" }

// Fetch returns the expanded occurrences of all configured calendars that
// overlap rng. A calendar that cannot be read fails the whole fetch.
func (c *CalendarSource) Fetch(ctx context.Context, rng models.DateRange) (*models.Batch, error) {
	if err := rng.Validate(); err != nil {
		return nil, err
	}

	var (
		events  []models.Event
		skipped []models.SkippedEventWarning
	)
	for _, calID := range c.calendarIDs {
		c.logger.Debug("Fetching events", "calendarID", calID, "start", rng.Start, "end", rng.End)

		n := 0
		err := c.service.Events.List(calID).
			ShowDeleted(false).
			SingleEvents(true).
			TimeMin(rng.Start.Format(time.RFC3339)).
			TimeMax(rng.End.Format(time.RFC3339)).
			OrderBy("startTime").
			Pages(ctx, func(page *calendar.Events) error {
				for _, item := range page.Items {
					ev, err := toEvent(item, page.Summary, c.loc)
					if err != nil {
						skipped = append(skipped, models.SkippedEventWarning{
							Title:    item.Summary,
							Calendar: page.Summary,
							Reason:   err.Error(),
						})
						continue
					}
					events = append(events, ev)
					n++
				}
				return nil
			})
		if err != nil {
			return nil, fmt.Errorf("failed to retrieve events for calendar %s: %w", calID, err)
		}

		c.logger.Info("Successfully fetched events from Google Calendar", "count", n, "calendarID", calID)
	}

	for _, w := range skipped {
		c.logger.Warn("Skipped event", "title", w.Title, "calendar", w.Calendar, "reason", w.Reason)
	}
	return models.NewBatch(rng, events, skipped), nil
}

// toEvent converts a Google Calendar event. All-day events carry a date
// instead of a date-time; their end date is exclusive.
func toEvent(item *calendar.Event, calendarName string, loc *time.Location) (models.Event, error) {
	if item.Start == nil || item.End == nil {
		return models.Event{}, errors.New("missing start or end")
	}

	var (
		start, end time.Time
		allDay     bool
		err        error
	)
	if item.Start.Date != "" {
		allDay = true
		if start, err = time.ParseInLocation(dateLayout, item.Start.Date, loc); err != nil {
			return models.Event{}, fmt.Errorf("invalid start date: %w", err)
		}
		if end, err = time.ParseInLocation(dateLayout, item.End.Date, loc); err != nil {
			return models.Event{}, fmt.Errorf("invalid end date: %w", err)
		}
	} else {
		if start, err = time.Parse(time.RFC3339, item.Start.DateTime); err != nil {
			return models.Event{}, fmt.Errorf("invalid start time: %w", err)
		}
		if end, err = time.Parse(time.RFC3339, item.End.DateTime); err != nil {
			return models.Event{}, fmt.Errorf("invalid end time: %w", err)
		}
		start, end = start.In(loc), end.In(loc)
	}

	ev, err := models.NewEvent(calendarName, item.Summary, start, end, allDay)
	if err != nil {
		return models.Event{}, err
	}
	ev.Location = item.Location
	ev.Notes = item.Description
	return ev, nil
}

// GetOAuthConfigForAuthFlow is used by the auth command to get the config for the web flow.
func GetOAuthConfigForAuthFlow(clientID, clientSecret string) (*oauth2.Config, error) {
	return getOAuthConfig(clientID, clientSecret)
}

// getOAuthConfig reads credentials and returns an OAuth2 config.
// It prioritizes explicit client credentials over a local credentials.json file.
func getOAuthConfig(clientID, clientSecret string) (*oauth2.Config, error) {
	if clientID != "" && clientSecret != "" {
		return &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  "urn:ietf:wg:oauth:2.0:oob",
			Scopes:       []string{calendar.CalendarReadonlyScope},
			Endpoint:     google.Endpoint,
		}, nil
	}

	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("credentials.json not found. Please provide GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET or place credentials.json in the working directory")
		}
		return nil, fmt.Errorf("unable to read client secret file: %w", err)
	}

	oauthConfig, err := google.ConfigFromJSON(b, calendar.CalendarReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}
	oauthConfig.RedirectURL = "urn:ietf:wg:oauth:2.0:oob" // For desktop app flow
	return oauthConfig, nil
}

// TokenFromWeb exchanges an authorization code for a token.
func TokenFromWeb(ctx context.Context, oauthConfig *oauth2.Config, authCode string) (*oauth2.Token, error) {
	return oauthConfig.Exchange(ctx, authCode)
}

// SaveToken saves a token to a file path, readable only by the owner.
func SaveToken(path string, token *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("unable to create token file: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}

// tokenFromFile retrieves a token from a local file.
func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}
