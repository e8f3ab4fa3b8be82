package publish

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ical-share/internal/config"
)

// Object is a document to publish under a stable identifier.
type Object struct {
	// ID is the publish identifier; the remote key is ID + ".ics".
	ID string
	// Name is the local file the body was read from, for logging.
	Name        string
	Body        []byte
	ContentType string
	// RunID tags the upload in object metadata.
	RunID string
}

// Result describes a published object.
type Result struct {
	Backend string
	Key     string
	URL     string
}

// Publisher uploads a document so it can be fetched at a stable URL.
// Publishing the same ID twice replaces the earlier object.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, obj Object) (*Result, error)
	Close() error
}

// UploadError reports a failed backend operation.
type UploadError struct {
	Backend string
	Op      string
	Err     error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Backend, e.Op, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// ObjectKey returns the remote key for a publish ID.
func ObjectKey(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("publish id is empty")
	}
	if strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", fmt.Errorf("publish id %q must not contain path separators", id)
	}
	return id + ".ics", nil
}

// New creates the publisher selected by cfg.Backend. The "none" backend
// yields a nil Publisher.
func New(ctx context.Context, logger *slog.Logger, cfg config.PublishConfig) (Publisher, error) {
	switch cfg.Backend {
	case config.BackendGCS:
		p, err := NewGCS(ctx, logger, cfg)
		if err != nil {
			return nil, err
		}
		return p, nil
	case config.BackendWebDAV:
		p, err := NewWebDAV(logger, cfg)
		if err != nil {
			return nil, err
		}
		return p, nil
	case config.BackendLocal:
		return NewLocal(logger, cfg), nil
	case config.BackendNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown publish backend '%s'", cfg.Backend)
	}
}

func joinURL(base, key string) string {
	return strings.TrimSuffix(base, "/") + "/" + key
}

func uploadedAt() string {
	return time.Now().UTC().Format(time.RFC3339)
}
