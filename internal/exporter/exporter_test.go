package exporter

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ical-share/internal/calendar"
	"ical-share/internal/ics"
	"ical-share/internal/models"
	"ical-share/internal/publish"
)

// MockSource is a mock implementation of Source.
type MockSource struct {
	batch *models.Batch
	err   error
	calls int
}

func (m *MockSource) Name() string { return "mock" }

func (m *MockSource) Fetch(ctx context.Context, rng models.DateRange) (*models.Batch, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.batch, nil
}

// MockPublisher records published objects.
type MockPublisher struct {
	objects []publish.Object
	err     error
}

func (m *MockPublisher) Name() string { return "mock" }

func (m *MockPublisher) Publish(ctx context.Context, obj publish.Object) (*publish.Result, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.objects = append(m.objects, obj)
	return &publish.Result{Backend: "mock", Key: obj.ID + ".ics", URL: "https://example.com/" + obj.ID + ".ics"}, nil
}

func (m *MockPublisher) Close() error { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var week = models.DateRange{
	Start: time.Date(2024, 7, 8, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC),
}

func newTestExporter(t *testing.T, src Source, pub publish.Publisher) (*Exporter, string) {
	t.Helper()
	out := filepath.Join(t.TempDir(), "shared.ics")
	e := New(testLogger(), src, ics.NewFormatter("-//ical-share//EN", "ical-share", ""), pub, out, "abc123")
	e.now = func() time.Time { return time.Date(2024, 7, 8, 6, 0, 0, 0, time.UTC) }
	return e, out
}

func TestRunPublishesFile(t *testing.T) {
	start := time.Date(2024, 7, 8, 9, 0, 0, 0, time.UTC)
	src := &MockSource{batch: models.NewBatch(week, []models.Event{
		{Calendar: "Work", Title: "Team Sync", Start: start, End: start.Add(30 * time.Minute)},
	}, nil)}
	pub := &MockPublisher{}
	e, out := newTestExporter(t, src, pub)

	res, err := e.Run(context.Background(), week)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.Events != 1 || res.Published == nil || res.Published.URL != "https://example.com/abc123.ics" {
		t.Errorf("result = %+v", res)
	}
	if len(pub.objects) != 1 {
		t.Fatalf("published %d objects, want 1", len(pub.objects))
	}
	obj := pub.objects[0]
	if obj.ID != "abc123" || obj.ContentType != "text/calendar" || obj.RunID != res.RunID || obj.RunID == "" {
		t.Errorf("object = %+v", obj)
	}

	written, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("output not written: %v", err)
	}
	if !bytes.Equal(written, obj.Body) {
		t.Error("published body differs from written file")
	}
	if !bytes.Contains(written, []byte("SUMMARY:Team Sync")) {
		t.Errorf("output missing event:\n%s", written)
	}
}

func TestRunEmptyBatchStillPublishes(t *testing.T) {
	src := &MockSource{batch: models.NewBatch(week, nil, nil)}
	pub := &MockPublisher{}
	e, _ := newTestExporter(t, src, pub)

	res, err := e.Run(context.Background(), week)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Events != 0 || len(pub.objects) != 1 {
		t.Errorf("events = %d, published = %d; want 0, 1", res.Events, len(pub.objects))
	}
	if !bytes.HasPrefix(pub.objects[0].Body, []byte("BEGIN:VCALENDAR\r\n")) {
		t.Error("empty calendar not published")
	}
	if bytes.Contains(pub.objects[0].Body, []byte("BEGIN:VEVENT")) {
		t.Error("empty batch produced events")
	}
}

func TestRunFetchFailureWritesNothing(t *testing.T) {
	denied := &calendar.AccessDeniedError{Detail: "not authorized"}
	src := &MockSource{err: denied}
	pub := &MockPublisher{}
	e, out := newTestExporter(t, src, pub)

	_, err := e.Run(context.Background(), week)

	var accessErr *calendar.AccessDeniedError
	if !errors.As(err, &accessErr) {
		t.Fatalf("expected *AccessDeniedError, got %T: %v", err, err)
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Error("output file written after fetch failure")
	}
	if len(pub.objects) != 0 {
		t.Error("publish attempted after fetch failure")
	}
}

func TestRunSkippedEventsAreCounted(t *testing.T) {
	start := time.Date(2024, 7, 9, 9, 0, 0, 0, time.UTC)
	src := &MockSource{batch: models.NewBatch(week,
		[]models.Event{
			{Calendar: "Work", Title: "A", Start: start, End: start.Add(time.Hour)},
			{Calendar: "Work", Title: "B", Start: start.Add(2 * time.Hour), End: start.Add(3 * time.Hour)},
		},
		[]models.SkippedEventWarning{{Title: "Broken", Calendar: "Work", Reason: "invalid start"}},
	)}
	e, _ := newTestExporter(t, src, &MockPublisher{})

	res, err := e.Run(context.Background(), week)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Events != 2 || res.Skipped != 1 {
		t.Errorf("events = %d, skipped = %d; want 2, 1", res.Events, res.Skipped)
	}
}

func TestRunPublishFailure(t *testing.T) {
	src := &MockSource{batch: models.NewBatch(week, nil, nil)}
	uploadErr := &publish.UploadError{Backend: "mock", Op: "upload", Err: errors.New("boom")}
	e, out := newTestExporter(t, src, &MockPublisher{err: uploadErr})

	_, err := e.Run(context.Background(), week)
	if !errors.Is(err, uploadErr) {
		t.Fatalf("expected upload error, got %v", err)
	}
	if _, statErr := os.Stat(out); statErr != nil {
		t.Error("output file should still be written when upload fails")
	}
}

func TestRunWithoutPublisher(t *testing.T) {
	src := &MockSource{batch: models.NewBatch(week, nil, nil)}
	e, out := newTestExporter(t, src, nil)

	res, err := e.Run(context.Background(), week)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Published != nil {
		t.Error("result has a publish result without publisher")
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("output not written: %v", err)
	}
}

func TestPublishExistingFile(t *testing.T) {
	pub := &MockPublisher{}
	e, out := newTestExporter(t, &MockSource{}, pub)

	if _, err := e.Publish(context.Background()); err == nil {
		t.Error("expected error when output file is missing")
	}

	if err := os.WriteFile(out, []byte("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	res, err := e.Publish(context.Background())
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if res.Key != "abc123.ics" || len(pub.objects) != 1 {
		t.Errorf("result = %+v, objects = %d", res, len(pub.objects))
	}
}
