package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"

	"ical-share/internal/calendar"
	"ical-share/internal/config"
	"ical-share/internal/dav"
	"ical-share/internal/exporter"
	"ical-share/internal/google"
	"ical-share/internal/ics"
	"ical-share/internal/models"
	"ical-share/internal/publish"
)

// runAction is the default command: export the range and publish it.
func runAction(c *cli.Context) error {
	return runExport(c, true)
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Write the .ics file without publishing it.",
		Flags: append(configFlags(), rangeFlags()...),
		Action: func(c *cli.Context) error {
			return runExport(c, false)
		},
	}
}

func runExport(c *cli.Context, publishFile bool) error {
	logger := setupLogger(flagString(c, "log-level"))

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := cfg.ValidateSource(); err != nil {
		return err
	}
	if ctx := setIn(c, "dry-run"); publishFile && ctx != nil && ctx.Bool("dry-run") {
		logger.Info("Performing a dry run. The calendar will not be published.")
		publishFile = false
	}
	if publishFile {
		if err := cfg.ValidatePublish(); err != nil {
			return err
		}
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	rng, err := resolveRange(c, cfg, loc, time.Now())
	if err != nil {
		return err
	}

	src, err := newSource(c.Context, logger, cfg, loc)
	if err != nil {
		return err
	}

	var pub publish.Publisher
	if publishFile {
		pub, err = publish.New(c.Context, logger, cfg.Publish)
		if err != nil {
			return err
		}
		if pub != nil {
			defer pub.Close()
		}
	}

	exp := exporter.New(logger, src, newFormatter(cfg), pub, cfg.Output, cfg.Publish.ID)
	res, err := exp.Run(c.Context, rng)
	if err != nil {
		return err
	}

	if res.Skipped > 0 {
		fmt.Fprintf(os.Stderr, "%d event(s) skipped, see warnings above\n", res.Skipped)
	}
	if res.Published != nil {
		fmt.Fprintln(c.App.Writer, res.Published.URL)
	} else {
		fmt.Fprintln(c.App.Writer, res.Path)
	}
	return nil
}

func publishCommand() *cli.Command {
	return &cli.Command{
		Name:  "publish",
		Usage: "Publish the existing .ics file.",
		Flags: configFlags(),
		Action: func(c *cli.Context) error {
			logger := setupLogger(flagString(c, "log-level"))

			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if cfg.Publish.Backend == config.BackendNone {
				return fmt.Errorf("publish backend is 'none', nothing to do")
			}
			if err := cfg.ValidatePublish(); err != nil {
				return err
			}

			pub, err := publish.New(c.Context, logger, cfg.Publish)
			if err != nil {
				return err
			}
			defer pub.Close()

			exp := exporter.New(logger, nil, nil, pub, cfg.Output, cfg.Publish.ID)
			res, err := exp.Publish(c.Context)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, res.URL)
			return nil
		},
	}
}

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "Check that today's events can be read.",
		Flags: configFlags(),
		Action: func(c *cli.Context) error {
			logger := setupLogger(flagString(c, "log-level"))

			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if err := cfg.ValidateSource(); err != nil {
				return err
			}
			loc, err := cfg.Location()
			if err != nil {
				return err
			}

			var batch *models.Batch
			if cfg.Source == config.SourceTool {
				reader, err := calendar.NewToolReader(logger, cfg.Tool, loc)
				if err != nil {
					return err
				}
				batch, err = reader.Check(c.Context)
				if err != nil {
					return err
				}
			} else {
				src, err := newSource(c.Context, logger, cfg, loc)
				if err != nil {
					return err
				}
				ctx, cancel := context.WithTimeout(c.Context, calendar.CheckTimeout)
				defer cancel()
				batch, err = src.Fetch(ctx, models.Day(time.Now(), loc))
				if err != nil {
					return err
				}
			}

			fmt.Fprintf(c.App.Writer, "OK: %d event(s) today, %d skipped\n", batch.Count(), len(batch.Skipped))
			return nil
		},
	}
}

func showCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "List the events of an .ics file.",
		ArgsUsage: "[file]",
		Flags:     configFlags(),
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			loc, err := cfg.Location()
			if err != nil {
				return err
			}

			path := cfg.Output
			if c.Args().Present() {
				path = c.Args().First()
			}
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", path, err)
			}
			defer f.Close()

			events, err := ics.Decode(f, loc)
			if err != nil {
				return err
			}
			return printEvents(c.App.Writer, events, loc)
		},
	}
}

func printEvents(w io.Writer, events []models.Event, loc *time.Location) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, ev := range events {
		when := ev.Start.In(loc).Format("Mon 2006-01-02 15:04") + "-" + ev.End.In(loc).Format("15:04")
		if ev.AllDay {
			when = ev.Start.Format("Mon 2006-01-02") + " all day"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", when, ev.Title, ev.Calendar, ev.Location)
	}
	fmt.Fprintf(tw, "%d event(s)\n", len(events))
	return tw.Flush()
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authenticate with a Google account to get an API token.",
		Flags: configFlags(),
		Action: func(c *cli.Context) error {
			logger := setupLogger(flagString(c, "log-level"))
			logger.Info("Starting Google authentication flow.")

			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}

			oauthConfig, err := google.GetOAuthConfigForAuthFlow(cfg.Google.ClientID, cfg.Google.ClientSecret)
			if err != nil {
				return fmt.Errorf("failed to get google oauth config: %w", err)
			}

			authURL := oauthConfig.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
			fmt.Printf("Go to the following link in your browser then type the "+
				"authorization code: \n%v\n", authURL)

			fmt.Print("Enter Authorization Code: ")
			reader := bufio.NewReader(os.Stdin)
			authCode, _ := reader.ReadString('\n')
			authCode = strings.TrimSpace(authCode)

			token, err := google.TokenFromWeb(c.Context, oauthConfig, authCode)
			if err != nil {
				return fmt.Errorf("unable to retrieve token from web: %w", err)
			}

			if err := google.SaveToken(cfg.Google.TokenFile, token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			logger.Info("Successfully authenticated and saved token.", "file", cfg.Google.TokenFile)
			return nil
		},
	}
}

func newSource(ctx context.Context, logger *slog.Logger, cfg *config.Config, loc *time.Location) (exporter.Source, error) {
	switch cfg.Source {
	case config.SourceGoogle:
		src, err := google.NewCalendarSource(ctx, logger, cfg.Google, loc)
		if err != nil {
			return nil, err
		}
		return src, nil
	case config.SourceCalDAV:
		src, err := dav.NewCalendarSource(logger, cfg.CalDAV, loc)
		if err != nil {
			return nil, err
		}
		return src, nil
	default:
		src, err := calendar.NewToolReader(logger, cfg.Tool, loc)
		if err != nil {
			return nil, err
		}
		return src, nil
	}
}

func newFormatter(cfg *config.Config) *ics.Formatter {
	return ics.NewFormatter(cfg.ProductID, cfg.UIDNamespace, cfg.CalendarName)
}
