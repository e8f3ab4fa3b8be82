package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"ical-share/internal/config"
	"ical-share/internal/models"
)

const dateFlagLayout = "2006-01-02"

// configFlags returns the flags shared by every command. Each one can also
// be set through its environment variable.
func configFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "config", Value: "ical-share.yaml", EnvVars: []string{"ICAL_SHARE_CONFIG"}, Usage: "Path to the YAML configuration file."},
		&cli.StringFlag{Name: "log-level", Value: "info", EnvVars: []string{"LOG_LEVEL"}, Usage: "Log level: debug, info, warn or error."},
		&cli.StringFlag{Name: "timezone", EnvVars: []string{"TIMEZONE"}, Usage: "IANA timezone for the week and for tool timestamps."},
		&cli.StringFlag{Name: "week-start", EnvVars: []string{"WEEK_START"}, Usage: "First day of the week: monday or sunday."},
		&cli.StringFlag{Name: "source", EnvVars: []string{"CALENDAR_SOURCE"}, Usage: "Event source: tool, google or caldav."},
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, EnvVars: []string{"ICS_OUTPUT_PATH"}, Usage: "Path of the generated .ics file."},
		&cli.StringFlag{Name: "calendar-name", EnvVars: []string{"CALENDAR_NAME"}, Usage: "Display name written into the calendar."},

		&cli.StringFlag{Name: "tool-path", EnvVars: []string{"CALENDAR_TOOL_PATH"}, Usage: "Path to the calendar export tool."},
		&cli.StringFlag{Name: "tool-format", EnvVars: []string{"CALENDAR_TOOL_FORMAT"}, Usage: "Tool output format: json or legacy."},

		&cli.StringFlag{Name: "google-client-id", EnvVars: []string{"GOOGLE_CLIENT_ID"}},
		&cli.StringFlag{Name: "google-client-secret", EnvVars: []string{"GOOGLE_CLIENT_SECRET"}},
		&cli.StringFlag{Name: "google-token-file", EnvVars: []string{"GOOGLE_TOKEN_FILE"}},
		&cli.StringFlag{Name: "google-calendar-ids", EnvVars: []string{"GOOGLE_CALENDAR_IDS"}, Usage: "Comma-separated Google calendar IDs."},

		&cli.StringFlag{Name: "caldav-url", EnvVars: []string{"CALDAV_URL"}},
		&cli.StringFlag{Name: "caldav-username", EnvVars: []string{"CALDAV_USERNAME"}},
		&cli.StringFlag{Name: "caldav-password", EnvVars: []string{"CALDAV_PASSWORD"}},
		&cli.StringFlag{Name: "caldav-calendar", EnvVars: []string{"CALDAV_CALENDAR"}},

		&cli.StringFlag{Name: "publish-id", EnvVars: []string{"CALENDAR_PERMA_KEY"}, Usage: "Stable identifier of the published calendar."},
		&cli.StringFlag{Name: "backend", EnvVars: []string{"PUBLISH_BACKEND"}, Usage: "Publish backend: gcs, webdav, local or none."},
		&cli.StringFlag{Name: "public-base-url", EnvVars: []string{"PUBLIC_BASE_URL"}, Usage: "Base of the shared URL."},
		&cli.StringFlag{Name: "gcs-bucket", EnvVars: []string{"GCS_BUCKET"}},
		&cli.StringFlag{Name: "gcs-credentials", EnvVars: []string{"GCS_CREDENTIALS_FILE"}},
		&cli.BoolFlag{Name: "gcs-public-acl", EnvVars: []string{"GCS_PUBLIC_ACL"}, Usage: "Upload with the publicRead ACL."},
		&cli.StringFlag{Name: "webdav-url", EnvVars: []string{"WEBDAV_URL"}},
		&cli.StringFlag{Name: "webdav-username", EnvVars: []string{"WEBDAV_USERNAME"}},
		&cli.StringFlag{Name: "webdav-password", EnvVars: []string{"WEBDAV_PASSWORD"}},
		&cli.StringFlag{Name: "local-dir", EnvVars: []string{"LOCAL_PUBLISH_DIR"}},
	}
}

func rangeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "start", Usage: "First day to export (YYYY-MM-DD). Defaults to the start of the current week."},
		&cli.StringFlag{Name: "end", Usage: "Day after the last day to export (YYYY-MM-DD). Defaults to start + 7 days."},
	}
}

func runFlags() []cli.Flag {
	flags := append(configFlags(), rangeFlags()...)
	return append(flags, &cli.BoolFlag{Name: "dry-run", Usage: "Write the file but do not publish it."})
}

// setIn returns the nearest context in c's lineage where the flag was set,
// or nil. Subcommands declare the same flags as the app, so a value given
// before the subcommand name lives in a parent context.
func setIn(c *cli.Context, name string) *cli.Context {
	for _, ctx := range c.Lineage() {
		if ctx.IsSet(name) {
			return ctx
		}
	}
	return nil
}

// flagString returns the flag's value from the context where it was set,
// falling back to its default.
func flagString(c *cli.Context, name string) string {
	if ctx := setIn(c, name); ctx != nil {
		return ctx.String(name)
	}
	return c.String(name)
}

// loadConfig builds the configuration from the YAML file and then applies
// every flag or environment variable that was set.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(flagString(c, "config"))
	if err != nil {
		return nil, err
	}

	strs := map[string]*string{
		"timezone":             &cfg.Timezone,
		"week-start":           &cfg.WeekStart,
		"source":               &cfg.Source,
		"output":               &cfg.Output,
		"calendar-name":        &cfg.CalendarName,
		"tool-path":            &cfg.Tool.Path,
		"tool-format":          &cfg.Tool.Format,
		"google-client-id":     &cfg.Google.ClientID,
		"google-client-secret": &cfg.Google.ClientSecret,
		"google-token-file":    &cfg.Google.TokenFile,
		"caldav-url":           &cfg.CalDAV.URL,
		"caldav-username":      &cfg.CalDAV.Username,
		"caldav-password":      &cfg.CalDAV.Password,
		"caldav-calendar":      &cfg.CalDAV.Calendar,
		"publish-id":           &cfg.Publish.ID,
		"backend":              &cfg.Publish.Backend,
		"public-base-url":      &cfg.Publish.PublicBaseURL,
		"gcs-bucket":           &cfg.Publish.GCS.Bucket,
		"gcs-credentials":      &cfg.Publish.GCS.CredentialsFile,
		"webdav-url":           &cfg.Publish.WebDAV.URL,
		"webdav-username":      &cfg.Publish.WebDAV.Username,
		"webdav-password":      &cfg.Publish.WebDAV.Password,
		"local-dir":            &cfg.Publish.Local.Dir,
	}
	for name, dst := range strs {
		if ctx := setIn(c, name); ctx != nil {
			*dst = strings.TrimSpace(ctx.String(name))
		}
	}
	if ctx := setIn(c, "gcs-public-acl"); ctx != nil {
		cfg.Publish.GCS.PublicACL = ctx.Bool("gcs-public-acl")
	}
	if ctx := setIn(c, "google-calendar-ids"); ctx != nil {
		cfg.Google.CalendarIDs = splitList(ctx.String("google-calendar-ids"))
	}

	cfg.Normalize()
	return cfg, nil
}

// resolveRange returns the range selected by --start/--end, or the current
// week.
func resolveRange(c *cli.Context, cfg *config.Config, loc *time.Location, now time.Time) (models.DateRange, error) {
	rng := models.CurrentWeek(now, loc, cfg.FirstWeekday())

	if s := flagString(c, "start"); s != "" {
		start, err := time.ParseInLocation(dateFlagLayout, s, loc)
		if err != nil {
			return models.DateRange{}, fmt.Errorf("invalid --start '%s': want YYYY-MM-DD", s)
		}
		rng = models.DateRange{Start: start, End: start.AddDate(0, 0, 7)}
	}
	if s := flagString(c, "end"); s != "" {
		end, err := time.ParseInLocation(dateFlagLayout, s, loc)
		if err != nil {
			return models.DateRange{}, fmt.Errorf("invalid --end '%s': want YYYY-MM-DD", s)
		}
		rng.End = end
	}

	if err := rng.Validate(); err != nil {
		return models.DateRange{}, err
	}
	return rng, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
