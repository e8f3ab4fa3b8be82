package ics

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"ical-share/internal/models"
)

var testRange = models.DateRange{
	Start: time.Date(2024, 7, 8, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC),
}

var (
	runAt      = time.Date(2024, 7, 8, 6, 0, 0, 0, time.UTC)
	timedLine  = regexp.MustCompile(`^DT(START|END):\d{8}T\d{6}Z$`)
	allDayLine = regexp.MustCompile(`^DT(START|END);VALUE=DATE:\d{8}$`)
)

func newFormatter() *Formatter {
	return NewFormatter("-//ical-share//EN", "ical-share", "")
}

func lines(doc []byte) []string {
	return strings.Split(strings.TrimSuffix(string(doc), "\r\n"), "\r\n")
}

func countLines(doc []byte, want string) int {
	n := 0
	for _, l := range lines(doc) {
		if l == want {
			n++
		}
	}
	return n
}

func hasLine(doc []byte, want string) bool {
	return countLines(doc, want) > 0
}

func sampleEvents() []models.Event {
	base := time.Date(2024, 7, 8, 9, 0, 0, 0, time.UTC)
	return []models.Event{
		{Calendar: "Work", Title: "Team Sync", Start: base, End: base.Add(30 * time.Minute)},
		{Calendar: "Home", Title: "Holiday", Start: time.Date(2024, 7, 10, 0, 0, 0, 0, time.UTC), End: time.Date(2024, 7, 10, 23, 59, 59, 0, time.UTC), AllDay: true},
		{Calendar: "Work", Title: "Planning", Start: base.Add(26 * time.Hour), End: base.Add(28 * time.Hour), Location: "Room 4"},
	}
}

func TestFormatTeamSync(t *testing.T) {
	start := time.Date(2024, 7, 8, 9, 0, 0, 0, time.UTC)
	batch := models.NewBatch(testRange, []models.Event{
		{Calendar: "Work", Title: "Team Sync", Start: start, End: start.Add(30 * time.Minute)},
	}, nil)

	doc := newFormatter().Format(batch, runAt)

	for _, want := range []string{
		"BEGIN:VEVENT",
		"SUMMARY:Team Sync",
		"DTSTART:20240708T090000Z",
		"DTEND:20240708T093000Z",
		"DESCRIPTION:Calendar: Work",
		"UID:" + UID(runAt, 0, "ical-share"),
		"END:VEVENT",
	} {
		if !hasLine(doc, want) {
			t.Errorf("document is missing line %q:\n%s", want, doc)
		}
	}
	if bytes.Contains(doc, []byte("LOCATION:")) {
		t.Error("LOCATION written for an event without location")
	}
}

func TestFormatConvertsLocalTimesToUTC(t *testing.T) {
	loc := time.FixedZone("CEST", 2*60*60)
	start := time.Date(2024, 7, 8, 11, 0, 0, 0, loc)
	batch := models.NewBatch(testRange, []models.Event{
		{Calendar: "Work", Title: "Team Sync", Start: start, End: start.Add(30 * time.Minute)},
	}, nil)

	doc := newFormatter().Format(batch, runAt)
	if !hasLine(doc, "DTSTART:20240708T090000Z") || !hasLine(doc, "DTEND:20240708T093000Z") {
		t.Errorf("times not converted to UTC:\n%s", doc)
	}
}

func TestFormatEmptyBatch(t *testing.T) {
	doc := newFormatter().Format(models.NewBatch(testRange, nil, nil), runAt)

	if !bytes.HasPrefix(doc, []byte("BEGIN:VCALENDAR\r\n")) {
		t.Errorf("document does not start with BEGIN:VCALENDAR:\n%s", doc)
	}
	if !bytes.HasSuffix(doc, []byte("END:VCALENDAR\r\n")) {
		t.Errorf("document does not end with END:VCALENDAR:\n%s", doc)
	}
	for _, want := range []string{"VERSION:2.0", "PRODID:-//ical-share//EN", "CALSCALE:GREGORIAN"} {
		if !hasLine(doc, want) {
			t.Errorf("header line %q missing", want)
		}
	}
	if bytes.Contains(doc, []byte("BEGIN:VEVENT")) {
		t.Error("empty batch produced an event")
	}
}

func TestFormatUsesCRLF(t *testing.T) {
	doc := newFormatter().Format(models.NewBatch(testRange, sampleEvents(), nil), runAt)

	if n, crlf := bytes.Count(doc, []byte("\n")), bytes.Count(doc, []byte("\r\n")); n != crlf {
		t.Errorf("%d of %d line breaks are not CRLF:\n%q", n-crlf, n, doc)
	}
	if !bytes.HasSuffix(doc, []byte("\r\n")) {
		t.Error("document does not end with CRLF")
	}
}

func TestFormatStructure(t *testing.T) {
	batch := models.NewBatch(testRange, sampleEvents(), nil)
	doc := newFormatter().Format(batch, runAt)

	if n := countLines(doc, "BEGIN:VCALENDAR"); n != 1 {
		t.Errorf("BEGIN:VCALENDAR count = %d, want 1", n)
	}
	if n := countLines(doc, "END:VCALENDAR"); n != 1 {
		t.Errorf("END:VCALENDAR count = %d, want 1", n)
	}
	if n := countLines(doc, "BEGIN:VEVENT"); n != batch.Count() {
		t.Errorf("BEGIN:VEVENT count = %d, want %d", n, batch.Count())
	}
	if n := countLines(doc, "END:VEVENT"); n != batch.Count() {
		t.Errorf("END:VEVENT count = %d, want %d", n, batch.Count())
	}

	uids := map[string]bool{}
	for _, l := range lines(doc) {
		if strings.HasPrefix(l, "UID:") {
			uids[l] = true
		}
	}
	if len(uids) != batch.Count() {
		t.Errorf("distinct UIDs = %d, want %d", len(uids), batch.Count())
	}
}

func TestFormatDateForms(t *testing.T) {
	batch := models.NewBatch(testRange, sampleEvents(), nil)
	doc := newFormatter().Format(batch, runAt)

	// Walk the events in order and check the DTSTART/DTEND form of each.
	idx := -1
	for _, l := range lines(doc) {
		switch {
		case l == "BEGIN:VEVENT":
			idx++
		case strings.HasPrefix(l, "DTSTART") || strings.HasPrefix(l, "DTEND"):
			if batch.Events[idx].AllDay {
				if !allDayLine.MatchString(l) {
					t.Errorf("event %d (all-day): %q is not a date-only value", idx, l)
				}
			} else if !timedLine.MatchString(l) {
				t.Errorf("event %d (timed): %q is not a UTC date-time", idx, l)
			}
		}
	}
	if idx != batch.Count()-1 {
		t.Errorf("walked %d events, want %d", idx+1, batch.Count())
	}

	if !hasLine(doc, "DTSTART;VALUE=DATE:20240710") || !hasLine(doc, "DTEND;VALUE=DATE:20240711") {
		t.Errorf("all-day dates wrong:\n%s", doc)
	}
	if !hasLine(doc, "LOCATION:Room 4") {
		t.Error("LOCATION missing")
	}
}

func TestAllDayDates(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2024, 7, d, 0, 0, 0, 0, time.UTC) }

	tests := []struct {
		name      string
		start     time.Time
		end       time.Time
		wantStart time.Time
		wantEnd   time.Time
	}{
		{"end of day", day(10), time.Date(2024, 7, 10, 23, 59, 59, 0, time.UTC), day(10), day(11)},
		{"exclusive midnight", day(10), day(11), day(10), day(11)},
		{"multi day", day(10), time.Date(2024, 7, 12, 23, 59, 59, 0, time.UTC), day(10), day(13)},
		{"zero length", day(10), day(10), day(10), day(11)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := allDayDates(models.Event{Start: tt.start, End: tt.end, AllDay: true})
			if !start.Equal(tt.wantStart) || !end.Equal(tt.wantEnd) {
				t.Errorf("allDayDates = %s..%s, want %s..%s", start, end, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestDescription(t *testing.T) {
	ev := models.Event{Calendar: "Work"}
	if got := Description(ev); got != "Calendar: Work" {
		t.Errorf("Description = %q", got)
	}
	ev.Notes = "Agenda in doc"
	if got := Description(ev); got != "Calendar: Work\n\nAgenda in doc" {
		t.Errorf("Description with notes = %q", got)
	}
}

func TestFormatCalendarName(t *testing.T) {
	f := NewFormatter("-//ical-share//EN", "ical-share", "My Week")
	doc := f.Format(models.NewBatch(testRange, nil, nil), runAt)
	if !hasLine(doc, "X-WR-CALNAME:My Week") {
		t.Errorf("X-WR-CALNAME missing:\n%s", doc)
	}
}

func TestWriteFileReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "shared.ics")

	if err := WriteFile(path, []byte("first")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := WriteFile(path, []byte("second")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "second" {
		t.Errorf("content = %q, want second", data)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want only the output file", len(entries))
	}
}
