package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Source names.
const (
	SourceTool   = "tool"
	SourceGoogle = "google"
	SourceCalDAV = "caldav"
)

// Publish backend names.
const (
	BackendGCS    = "gcs"
	BackendWebDAV = "webdav"
	BackendLocal  = "local"
	BackendNone   = "none"
)

// Tool output formats.
const (
	FormatJSON   = "json"
	FormatLegacy = "legacy"
)

// ToolConfig describes the external calendar-access tool.
type ToolConfig struct {
	// Path to the executable. Empty means "calendar-export" next to the
	// running binary.
	Path string `yaml:"path"`
	// Format is "json" (default) or "legacy" (delimited lines).
	Format string `yaml:"format"`
}

// GoogleConfig holds the Google Calendar source settings.
type GoogleConfig struct {
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	TokenFile    string   `yaml:"token_file"`
	CalendarIDs  []string `yaml:"calendar_ids"`
}

// CalDAVConfig holds the CalDAV source settings.
type CalDAVConfig struct {
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Calendar string `yaml:"calendar"`
}

// GCSConfig holds the Cloud Storage backend settings.
type GCSConfig struct {
	Bucket          string `yaml:"bucket"`
	CredentialsFile string `yaml:"credentials_file"`
	// PublicACL applies the publicRead predefined ACL on upload. Leave it off
	// for buckets with uniform bucket-level access.
	PublicACL bool `yaml:"public_acl"`
}

// WebDAVConfig holds the WebDAV backend settings.
type WebDAVConfig struct {
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// LocalConfig holds the local directory backend settings.
type LocalConfig struct {
	Dir string `yaml:"dir"`
}

// PublishConfig selects and configures the upload backend.
type PublishConfig struct {
	// ID is the stable identifier the published object is stored under.
	ID string `yaml:"id"`
	// Backend is one of gcs, webdav, local or none.
	Backend string `yaml:"backend"`
	// PublicBaseURL is prepended to the object key to build the shared URL.
	PublicBaseURL string `yaml:"public_base_url"`
	// Uploader is recorded in object metadata.
	Uploader string `yaml:"uploader"`

	GCS    GCSConfig    `yaml:"gcs"`
	WebDAV WebDAVConfig `yaml:"webdav"`
	Local  LocalConfig  `yaml:"local"`
}

// Config is the top-level application configuration.
type Config struct {
	// Timezone is the IANA zone used for the default range and for local
	// timestamps reported by the calendar tool. "Local" uses the system zone.
	Timezone string `yaml:"timezone"`

	// WeekStart is "monday" (default) or "sunday".
	WeekStart string `yaml:"week_start"`

	// Source is one of tool, google or caldav.
	Source string `yaml:"source"`

	// Output is the path of the generated .ics file.
	Output string `yaml:"output"`

	// ProductID is written as the calendar PRODID.
	ProductID string `yaml:"product_id"`

	// UIDNamespace is the domain part of generated event UIDs.
	UIDNamespace string `yaml:"uid_namespace"`

	// CalendarName, if set, is written as X-WR-CALNAME.
	CalendarName string `yaml:"calendar_name"`

	Tool    ToolConfig    `yaml:"tool"`
	Google  GoogleConfig  `yaml:"google"`
	CalDAV  CalDAVConfig  `yaml:"caldav"`
	Publish PublishConfig `yaml:"publish"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Timezone:     "Local",
		WeekStart:    "monday",
		Source:       SourceTool,
		Output:       "./shared.ics",
		ProductID:    "-//ical-share//EN",
		UIDNamespace: "ical-share",
		Tool: ToolConfig{
			Format: FormatJSON,
		},
		Google: GoogleConfig{
			TokenFile:   "token.json",
			CalendarIDs: []string{"primary"},
		},
		Publish: PublishConfig{
			Backend:  BackendGCS,
			Uploader: "ical-share",
			Local: LocalConfig{
				Dir: "./public",
			},
		},
	}
}

// Normalize fills in missing values so that partially-filled files behave
// like the defaults.
func (c *Config) Normalize() {
	def := DefaultConfig()

	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	c.WeekStart = strings.ToLower(strings.TrimSpace(c.WeekStart))
	if c.WeekStart != "monday" && c.WeekStart != "sunday" {
		c.WeekStart = def.WeekStart
	}
	c.Source = strings.ToLower(strings.TrimSpace(c.Source))
	if c.Source == "" {
		c.Source = def.Source
	}
	if c.Output == "" {
		c.Output = def.Output
	}
	if c.ProductID == "" {
		c.ProductID = def.ProductID
	}
	if c.UIDNamespace == "" {
		c.UIDNamespace = def.UIDNamespace
	}
	c.Tool.Format = strings.ToLower(strings.TrimSpace(c.Tool.Format))
	if c.Tool.Format == "" {
		c.Tool.Format = def.Tool.Format
	}
	if c.Google.TokenFile == "" {
		c.Google.TokenFile = def.Google.TokenFile
	}
	if len(c.Google.CalendarIDs) == 0 {
		c.Google.CalendarIDs = def.Google.CalendarIDs
	}
	c.Publish.Backend = strings.ToLower(strings.TrimSpace(c.Publish.Backend))
	if c.Publish.Backend == "" {
		c.Publish.Backend = def.Publish.Backend
	}
	if c.Publish.Uploader == "" {
		c.Publish.Uploader = def.Publish.Uploader
	}
	if c.Publish.Local.Dir == "" {
		c.Publish.Local.Dir = def.Publish.Local.Dir
	}
}

// Load reads configuration from the given YAML path.
//
// An empty path or a missing file yields the defaults; the file is optional
// because every setting can also come from flags or the environment.
func Load(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	cfg.Normalize()

	return cfg, nil
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone '%s': %w", c.Timezone, err)
	}
	return loc, nil
}

// FirstWeekday returns the configured first day of the week.
func (c *Config) FirstWeekday() time.Weekday {
	if c.WeekStart == "sunday" {
		return time.Sunday
	}
	return time.Monday
}

// MissingError names a required setting that was not supplied.
type MissingError struct {
	Setting string // config file key
	Env     string // environment variable that can supply it
}

func (e *MissingError) Error() string {
	if e.Env == "" {
		return fmt.Sprintf("missing required configuration: %s", e.Setting)
	}
	return fmt.Sprintf("missing required configuration: %s (set %s)", e.Setting, e.Env)
}

// ValidateSource checks the settings needed to read events.
func (c *Config) ValidateSource() error {
	if _, err := c.Location(); err != nil {
		return err
	}

	switch c.Source {
	case SourceTool:
		if c.Tool.Format != FormatJSON && c.Tool.Format != FormatLegacy {
			return fmt.Errorf("unknown tool format '%s' (want %s or %s)", c.Tool.Format, FormatJSON, FormatLegacy)
		}
	case SourceGoogle:
		if len(c.Google.CalendarIDs) == 0 {
			return &MissingError{Setting: "google.calendar_ids", Env: "GOOGLE_CALENDAR_IDS"}
		}
	case SourceCalDAV:
		if c.CalDAV.URL == "" {
			return &MissingError{Setting: "caldav.url", Env: "CALDAV_URL"}
		}
		if c.CalDAV.Username == "" {
			return &MissingError{Setting: "caldav.username", Env: "CALDAV_USERNAME"}
		}
		if c.CalDAV.Password == "" {
			return &MissingError{Setting: "caldav.password", Env: "CALDAV_PASSWORD"}
		}
		if c.CalDAV.Calendar == "" {
			return &MissingError{Setting: "caldav.calendar", Env: "CALDAV_CALENDAR"}
		}
	default:
		return fmt.Errorf("unknown source '%s' (want %s, %s or %s)", c.Source, SourceTool, SourceGoogle, SourceCalDAV)
	}
	return nil
}

// ValidatePublish checks the settings needed to upload the calendar.
func (c *Config) ValidatePublish() error {
	if c.Publish.Backend == BackendNone {
		return nil
	}
	if c.Publish.ID == "" {
		return &MissingError{Setting: "publish.id", Env: "CALENDAR_PERMA_KEY"}
	}

	switch c.Publish.Backend {
	case BackendGCS:
		if c.Publish.GCS.Bucket == "" {
			return &MissingError{Setting: "publish.gcs.bucket", Env: "GCS_BUCKET"}
		}
	case BackendWebDAV:
		if c.Publish.WebDAV.URL == "" {
			return &MissingError{Setting: "publish.webdav.url", Env: "WEBDAV_URL"}
		}
	case BackendLocal:
		if c.Publish.Local.Dir == "" {
			return &MissingError{Setting: "publish.local.dir", Env: "LOCAL_PUBLISH_DIR"}
		}
	default:
		return fmt.Errorf("unknown publish backend '%s' (want %s, %s, %s or %s)",
			c.Publish.Backend, BackendGCS, BackendWebDAV, BackendLocal, BackendNone)
	}
	return nil
}
