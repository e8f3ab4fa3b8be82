package google

import (
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
)

func TestToEventTimed(t *testing.T) {
	item := &calendar.Event{
		Summary:     "Team Sync",
		Location:    "Room 4",
		Description: "Agenda",
		Start:       &calendar.EventDateTime{DateTime: "2024-07-08T11:00:00+02:00"},
		End:         &calendar.EventDateTime{DateTime: "2024-07-08T11:30:00+02:00"},
	}

	ev, err := toEvent(item, "Work", time.UTC)
	if err != nil {
		t.Fatalf("toEvent failed: %v", err)
	}
	if ev.AllDay {
		t.Error("timed event marked all-day")
	}
	if !ev.Start.Equal(time.Date(2024, 7, 8, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("Start = %s", ev.Start)
	}
	if ev.End.Sub(ev.Start) != 30*time.Minute {
		t.Errorf("duration = %s", ev.End.Sub(ev.Start))
	}
	if ev.Calendar != "Work" || ev.Title != "Team Sync" || ev.Location != "Room 4" || ev.Notes != "Agenda" {
		t.Errorf("event = %+v", ev)
	}
}

func TestToEventAllDay(t *testing.T) {
	loc := time.FixedZone("EST", -5*60*60)
	item := &calendar.Event{
		Summary: "Holiday",
		Start:   &calendar.EventDateTime{Date: "2024-07-10"},
		End:     &calendar.EventDateTime{Date: "2024-07-11"},
	}

	ev, err := toEvent(item, "Home", loc)
	if err != nil {
		t.Fatalf("toEvent failed: %v", err)
	}
	if !ev.AllDay {
		t.Error("all-day event not marked all-day")
	}
	if !ev.Start.Equal(time.Date(2024, 7, 10, 0, 0, 0, 0, loc)) {
		t.Errorf("Start = %s", ev.Start)
	}
}

func TestToEventDefaultsAndErrors(t *testing.T) {
	item := &calendar.Event{
		Start: &calendar.EventDateTime{DateTime: "2024-07-08T09:00:00Z"},
		End:   &calendar.EventDateTime{DateTime: "2024-07-08T10:00:00Z"},
	}
	ev, err := toEvent(item, "", time.UTC)
	if err != nil {
		t.Fatalf("toEvent failed: %v", err)
	}
	if ev.Title != "Untitled Event" || ev.Calendar != "Unknown Calendar" {
		t.Errorf("defaults not applied: %+v", ev)
	}

	if _, err := toEvent(&calendar.Event{Summary: "x"}, "Work", time.UTC); err == nil {
		t.Error("expected error for event without start")
	}

	bad := &calendar.Event{
		Start: &calendar.EventDateTime{DateTime: "yesterday"},
		End:   &calendar.EventDateTime{DateTime: "2024-07-08T10:00:00Z"},
	}
	if _, err := toEvent(bad, "Work", time.UTC); err == nil {
		t.Error("expected error for unparseable start")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	want := &oauth2.Token{AccessToken: "access", RefreshToken: "refresh", TokenType: "Bearer"}

	if err := SaveToken(path, want); err != nil {
		t.Fatalf("SaveToken failed: %v", err)
	}
	got, err := tokenFromFile(path)
	if err != nil {
		t.Fatalf("tokenFromFile failed: %v", err)
	}
	if got.AccessToken != want.AccessToken || got.RefreshToken != want.RefreshToken {
		t.Errorf("token = %+v", got)
	}
}

func TestOAuthConfigFromClientCredentials(t *testing.T) {
	cfg, err := GetOAuthConfigForAuthFlow("id", "secret")
	if err != nil {
		t.Fatalf("GetOAuthConfigForAuthFlow failed: %v", err)
	}
	if cfg.ClientID != "id" || len(cfg.Scopes) != 1 || cfg.Scopes[0] != calendar.CalendarReadonlyScope {
		t.Errorf("config = %+v", cfg)
	}
}
