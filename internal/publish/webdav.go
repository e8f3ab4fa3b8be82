package publish

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/emersion/go-webdav"

	"ical-share/internal/config"
	"ical-share/internal/dav"
)

// WebDAV publishes into a WebDAV collection. The old object is deleted
// before the new one is uploaded, and the upload is confirmed with a
// PROPFIND.
type WebDAV struct {
	client     *webdav.Client
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   *url.URL
	baseURL    string
}

// NewWebDAV creates a WebDAV publisher for the collection at cfg.WebDAV.URL.
func NewWebDAV(logger *slog.Logger, cfg config.PublishConfig) (*WebDAV, error) {
	raw := cfg.WebDAV.URL
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	endpoint, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid webdav url '%s': %w", cfg.WebDAV.URL, err)
	}

	httpClient := dav.NewHTTPClient(cfg.WebDAV.Username, cfg.WebDAV.Password)
	client, err := webdav.NewClient(httpClient, endpoint.String())
	if err != nil {
		return nil, fmt.Errorf("failed to create webdav client: %w", err)
	}

	baseURL := cfg.PublicBaseURL
	if baseURL == "" {
		baseURL = endpoint.String()
	}

	return &WebDAV{
		client:     client,
		httpClient: httpClient,
		logger:     logger,
		endpoint:   endpoint,
		baseURL:    baseURL,
	}, nil
}

func (w *WebDAV) Name() string { return config.BackendWebDAV }

// Publish deletes {id}.ics, uploads the new body and checks its size on the
// server. A failed delete aborts the run before anything is uploaded.
func (w *WebDAV) Publish(ctx context.Context, obj Object) (*Result, error) {
	key, err := ObjectKey(obj.ID)
	if err != nil {
		return nil, &UploadError{Backend: w.Name(), Op: "upload", Err: err}
	}

	if err := w.remove(ctx, key); err != nil {
		return nil, &UploadError{Backend: w.Name(), Op: "delete", Err: err}
	}

	w.logger.Info("Uploading calendar to WebDAV", "url", w.objectURL(key), "bytes", len(obj.Body))
	wc, err := w.client.Create(ctx, key)
	if err != nil {
		return nil, &UploadError{Backend: w.Name(), Op: "upload", Err: err}
	}
	if _, err := io.Copy(wc, bytes.NewReader(obj.Body)); err != nil {
		wc.Close()
		return nil, &UploadError{Backend: w.Name(), Op: "upload", Err: err}
	}
	if err := wc.Close(); err != nil {
		return nil, &UploadError{Backend: w.Name(), Op: "upload", Err: err}
	}

	fi, err := w.client.Stat(ctx, key)
	if err != nil {
		return nil, &UploadError{Backend: w.Name(), Op: "verify", Err: err}
	}
	if fi.Size != int64(len(obj.Body)) {
		return nil, &UploadError{
			Backend: w.Name(),
			Op:      "verify",
			Err:     fmt.Errorf("server reports %d bytes, uploaded %d", fi.Size, len(obj.Body)),
		}
	}

	res := &Result{Backend: w.Name(), Key: key, URL: joinURL(w.baseURL, key)}
	w.logger.Info("Successfully uploaded calendar", "url", res.URL)
	return res, nil
}

// remove deletes the object. A missing object is not an error.
func (w *WebDAV) remove(ctx context.Context, key string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, w.objectURL(key), nil)
	if err != nil {
		return err
	}
	resp, err := w.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		w.logger.Debug("Deleted previous calendar", "key", key)
		return nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		w.logger.Debug("No previous calendar to delete", "key", key)
		return nil
	default:
		return fmt.Errorf("DELETE %s: %s", w.objectURL(key), resp.Status)
	}
}

func (w *WebDAV) objectURL(key string) string {
	return w.endpoint.ResolveReference(&url.URL{Path: key}).String()
}

func (w *WebDAV) Close() error { return nil }
