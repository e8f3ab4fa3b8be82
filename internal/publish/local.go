package publish

import (
	"context"
	"log/slog"
	"path/filepath"

	"ical-share/internal/config"
	"ical-share/internal/ics"
)

// Local publishes into a directory, for static hosting or dry runs.
type Local struct {
	logger  *slog.Logger
	dir     string
	baseURL string
}

func NewLocal(logger *slog.Logger, cfg config.PublishConfig) *Local {
	return &Local{
		logger:  logger,
		dir:     cfg.Local.Dir,
		baseURL: cfg.PublicBaseURL,
	}
}

func (l *Local) Name() string { return config.BackendLocal }

func (l *Local) Publish(ctx context.Context, obj Object) (*Result, error) {
	key, err := ObjectKey(obj.ID)
	if err != nil {
		return nil, &UploadError{Backend: l.Name(), Op: "upload", Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, &UploadError{Backend: l.Name(), Op: "upload", Err: err}
	}

	path := filepath.Join(l.dir, key)
	if err := ics.WriteFile(path, obj.Body); err != nil {
		return nil, &UploadError{Backend: l.Name(), Op: "upload", Err: err}
	}

	url := "file://" + path
	if abs, err := filepath.Abs(path); err == nil {
		url = "file://" + filepath.ToSlash(abs)
	}
	if l.baseURL != "" {
		url = joinURL(l.baseURL, key)
	}

	l.logger.Info("Published calendar to directory", "path", path)
	return &Result{Backend: l.Name(), Key: key, URL: url}, nil
}

func (l *Local) Close() error { return nil }
