package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"ical-share/internal/ics"
	"ical-share/internal/models"
	"ical-share/internal/publish"
)

// Source provides the events of a date range.
type Source interface {
	Name() string
	Fetch(ctx context.Context, rng models.DateRange) (*models.Batch, error)
}

// Result summarizes one run.
type Result struct {
	RunID   string
	Path    string
	Events  int
	Skipped int
	// Published is nil when nothing was uploaded.
	Published *publish.Result
}

// Exporter runs the fetch, format, write and publish steps.
type Exporter struct {
	logger    *slog.Logger
	source    Source
	formatter *ics.Formatter
	publisher publish.Publisher
	output    string
	publishID string
	now       func() time.Time
}

// New creates an Exporter. A nil publisher makes Run stop after writing the
// file.
func New(logger *slog.Logger, source Source, formatter *ics.Formatter, publisher publish.Publisher, output, publishID string) *Exporter {
	return &Exporter{
		logger:    logger,
		source:    source,
		formatter: formatter,
		publisher: publisher,
		output:    output,
		publishID: publishID,
		now:       time.Now,
	}
}

// Run exports rng to the output file and publishes it.
func (e *Exporter) Run(ctx context.Context, rng models.DateRange) (*Result, error) {
	res, body, err := e.export(ctx, rng)
	if err != nil {
		return nil, err
	}
	if e.publisher == nil {
		e.logger.Info("No publisher configured, skipping upload.", "runID", res.RunID)
		return res, nil
	}

	published, err := e.publish(ctx, res.RunID, body)
	if err != nil {
		return nil, err
	}
	res.Published = published
	return res, nil
}

// Export writes rng to the output file without publishing.
func (e *Exporter) Export(ctx context.Context, rng models.DateRange) (*Result, error) {
	res, _, err := e.export(ctx, rng)
	return res, err
}

// Publish uploads the existing output file.
func (e *Exporter) Publish(ctx context.Context) (*publish.Result, error) {
	if e.publisher == nil {
		return nil, fmt.Errorf("no publish backend configured")
	}
	body, err := os.ReadFile(e.output)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", e.output, err)
	}
	return e.publish(ctx, uuid.NewString(), body)
}

func (e *Exporter) export(ctx context.Context, rng models.DateRange) (*Result, []byte, error) {
	runAt := e.now()
	runID := uuid.NewString()
	logger := e.logger.With("runID", runID)

	logger.Info("Starting export.", "source", e.source.Name(), "start", rng.Start, "end", rng.End)

	batch, err := e.source.Fetch(ctx, rng)
	if err != nil {
		return nil, nil, err
	}
	if len(batch.Skipped) > 0 {
		logger.Warn("Some events were skipped.", "skipped", len(batch.Skipped))
	}

	body := e.formatter.Format(batch, runAt)
	if err := ics.WriteFile(e.output, body); err != nil {
		return nil, nil, fmt.Errorf("failed to write calendar: %w", err)
	}
	logger.Info("Wrote calendar file.", "path", e.output, "events", batch.Count(), "bytes", len(body))

	return &Result{
		RunID:   runID,
		Path:    e.output,
		Events:  batch.Count(),
		Skipped: len(batch.Skipped),
	}, body, nil
}

func (e *Exporter) publish(ctx context.Context, runID string, body []byte) (*publish.Result, error) {
	res, err := e.publisher.Publish(ctx, publish.Object{
		ID:          e.publishID,
		Name:        e.output,
		Body:        body,
		ContentType: ics.ContentType,
		RunID:       runID,
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("Published calendar.", "runID", runID, "backend", res.Backend, "url", res.URL)
	return res, nil
}
