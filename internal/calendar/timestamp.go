package calendar

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"ical-share/internal/models"
)

// ToolTimeLayout is the locale-independent format the tool expects for its
// date arguments.
const ToolTimeLayout = "01/02/2006 15:04:05"

var (
	isoPrefix      = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T`)
	weekdayPrefix  = regexp.MustCompile(`^[A-Za-z]+,\s*`)
	meridiemSuffix = regexp.MustCompile(`(?i)\s(am|pm)$`)
	spaces         = regexp.MustCompile(`\s+`)
)

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
}

type localeLayout struct {
	layout  string
	hasYear bool
}

var localeLayouts = []localeLayout{
	{"January 2, 2006 3:04:05 PM", true},
	{"January 2, 2006 3:04 PM", true},
	{"January 2, 2006 15:04:05", true},
	{"January 2, 2006 15:04", true},
	{"January 2, 2006", true},
	{"Jan 2, 2006 3:04:05 PM", true},
	{"Jan 2, 2006 15:04:05", true},
	{"2 January 2006 15:04:05", true},
	{"2 January 2006 15:04", true},
	{"2 January 2006", true},
	{"1/2/2006 15:04:05", true},
	{"1/2/2006 3:04:05 PM", true},
	{"1/2/2006 15:04", true},
	{"1/2/2006", true},
	{"2006-01-02 15:04:05", true},
	{"2006-01-02", true},
	{"January 2 3:04:05 PM", false},
	{"January 2 3:04 PM", false},
	{"January 2 15:04:05", false},
	{"January 2 15:04", false},
	{"January 2", false},
	{"2 January 15:04:05", false},
	{"2 January 15:04", false},
}

// ParseTimestamp accepts the two encodings the tool produces: ISO-8601
// instants and locale text such as "Monday, July 8, 2024 at 9:00:00 AM".
// Values without an offset are read in loc. Values without a year get the
// year that puts them inside rng, or closest to it.
func ParseTimestamp(s string, loc *time.Location, rng models.DateRange) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	if isoPrefix.MatchString(s) {
		for _, layout := range isoLayouts {
			if t, err := time.ParseInLocation(layout, s, loc); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognized ISO-8601 timestamp %q", s)
	}

	cleaned := cleanLocaleTimestamp(s)
	for _, l := range localeLayouts {
		t, err := time.ParseInLocation(l.layout, cleaned, loc)
		if err != nil {
			continue
		}
		if !l.hasYear {
			t = withYear(t, loc, rng)
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// withYear places a yearless time in the year around rng that it fits best.
// A range crossing New Year needs the later year for January dates.
func withYear(t time.Time, loc *time.Location, rng models.DateRange) time.Time {
	first := rng.Start.In(loc).Year() - 1
	last := rng.End.In(loc).Year() + 1

	var (
		best     time.Time
		bestDist time.Duration = -1
	)
	for year := first; year <= last; year++ {
		c := time.Date(year, t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc)
		var dist time.Duration
		switch {
		case c.Before(rng.Start):
			dist = rng.Start.Sub(c)
		case !c.Before(rng.End):
			dist = c.Sub(rng.End)
		}
		if bestDist < 0 || dist < bestDist {
			best, bestDist = c, dist
		}
	}
	return best
}

// cleanLocaleTimestamp removes the weekday name and the literal "at" that
// locale-formatted dates carry.
func cleanLocaleTimestamp(s string) string {
	s = strings.NewReplacer("\u202f", " ", "\u00a0", " ").Replace(s)
	s = weekdayPrefix.ReplaceAllString(s, "")
	s = strings.Replace(s, " at ", " ", 1)
	s = spaces.ReplaceAllString(strings.TrimSpace(s), " ")
	return meridiemSuffix.ReplaceAllStringFunc(s, strings.ToUpper)
}
