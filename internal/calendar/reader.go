package calendar

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"ical-share/internal/config"
	"ical-share/internal/models"
)

// CheckTimeout bounds the diagnostic run of the tool.
const CheckTimeout = 10 * time.Second

// Reader turns calendar tool output into an export batch.
type Reader struct {
	logger *slog.Logger
	runner Runner
	path   string
	legacy bool
	loc    *time.Location
	now    func() time.Time
}

// NewReader creates a Reader around an arbitrary Runner. path is only used
// in messages.
func NewReader(logger *slog.Logger, runner Runner, path string, legacy bool, loc *time.Location) *Reader {
	return &Reader{
		logger: logger,
		runner: runner,
		path:   path,
		legacy: legacy,
		loc:    loc,
		now:    time.Now,
	}
}

// NewToolReader resolves the configured tool and returns a Reader that
// executes it.
func NewToolReader(logger *slog.Logger, cfg config.ToolConfig, loc *time.Location) (*Reader, error) {
	path, err := ResolveToolPath(cfg.Path)
	if err != nil {
		return nil, err
	}

	runner := &ExecRunner{Path: path}
	legacy := cfg.Format == config.FormatLegacy
	if isScript(path) {
		// Scripts only take the start date and print delimited lines.
		runner.Interpreter = "osascript"
		legacy = true
	}

	logger.Debug("Using calendar tool", "path", path, "format", cfg.Format, "interpreter", runner.Interpreter)
	return NewReader(logger, runner, path, legacy, loc), nil
}

// Name identifies the source in logs.
func (r *Reader) Name() string {
	return "calendar-tool"
}

// Fetch runs the tool for the range and returns the normalized events.
func (r *Reader) Fetch(ctx context.Context, rng models.DateRange) (*models.Batch, error) {
	if err := rng.Validate(); err != nil {
		return nil, err
	}

	args := []string{rng.Start.In(r.loc).Format(ToolTimeLayout)}
	if !r.legacy {
		args = append(args, rng.End.In(r.loc).Format(ToolTimeLayout))
	}

	r.logger.Info("Running calendar tool.", "path", r.path, "start", args[0])
	stdout, stderr, err := r.runner.Run(ctx, args...)
	if err != nil {
		return nil, r.classify(ctx, stderr, err)
	}
	if msg := strings.TrimSpace(string(stderr)); msg != "" {
		r.logger.Warn("Calendar tool wrote to stderr", "stderr", msg)
	}

	payload, err := DecodePayload(stdout, r.legacy)
	if err != nil {
		return nil, err
	}
	if payload.Format == FormatJSON && payload.TotalCount != len(payload.Records) {
		r.logger.Warn("Calendar tool count mismatch", "totalCount", payload.TotalCount, "received", len(payload.Records))
	}
	if payload.Ignored > 0 {
		r.logger.Debug("Ignored malformed legacy lines", "count", payload.Ignored)
	}

	events, skipped := Normalize(payload.Records, r.loc, rng)
	for _, w := range skipped {
		r.logger.Warn("Skipping event", "title", w.Title, "calendar", w.Calendar, "reason", w.Reason)
	}

	r.logger.Info("Fetched events from calendar tool.", "count", len(events), "skipped", len(skipped), "format", payload.Format)
	return models.NewBatch(rng, events, skipped), nil
}

// Check runs the tool for the current day with a short timeout.
func (r *Reader) Check(ctx context.Context) (*models.Batch, error) {
	ctx, cancel := context.WithTimeout(ctx, CheckTimeout)
	defer cancel()
	return r.Fetch(ctx, models.Day(r.now(), r.loc))
}

func (r *Reader) classify(ctx context.Context, stderr []byte, err error) error {
	detail := strings.TrimSpace(string(stderr))

	if ctxErr := ctx.Err(); ctxErr != nil {
		return &ToolError{Path: r.path, ExitCode: -1, Stderr: detail, Err: ctxErr}
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if isAccessDenied(detail) {
			return &AccessDeniedError{Detail: detail}
		}
		return &ToolError{Path: r.path, ExitCode: exitErr.Code, Stderr: detail, Err: err}
	}
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return &ToolNotFoundError{Path: r.path}
	}
	return &ToolError{Path: r.path, ExitCode: -1, Stderr: detail, Err: err}
}

func isAccessDenied(stderr string) bool {
	s := strings.ToLower(stderr)
	for _, marker := range []string{"access denied", "permission denied", "not granted", "not authorized"} {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

// Normalize parses the timestamps of each record. Records that cannot be
// turned into a valid event are returned as warnings instead.
func Normalize(records []Record, loc *time.Location, rng models.DateRange) ([]models.Event, []models.SkippedEventWarning) {
	var (
		events  []models.Event
		skipped []models.SkippedEventWarning
	)

	for _, rec := range records {
		skip := func(reason string) {
			title := strings.TrimSpace(rec.Title)
			if title == "" {
				title = models.DefaultTitle
			}
			skipped = append(skipped, models.SkippedEventWarning{Title: title, Calendar: rec.Calendar, Reason: reason})
		}

		start, err := ParseTimestamp(rec.Start, loc, rng)
		if err != nil {
			skip(fmt.Sprintf("start: %v", err))
			continue
		}
		end, err := ParseTimestamp(rec.End, loc, rng)
		if err != nil {
			skip(fmt.Sprintf("end: %v", err))
			continue
		}

		ev, err := models.NewEvent(rec.Calendar, rec.Title, start, end, rec.AllDay)
		if err != nil {
			skip(err.Error())
			continue
		}
		if rec.Location != nil {
			ev.Location = strings.TrimSpace(*rec.Location)
		}
		if rec.Notes != nil {
			ev.Notes = strings.TrimSpace(*rec.Notes)
		}
		events = append(events, ev)
	}
	return events, skipped
}
