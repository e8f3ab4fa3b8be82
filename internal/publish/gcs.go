package publish

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"ical-share/internal/config"
)

const gcsPublicBase = "https://storage.googleapis.com"

// GCS publishes to a Cloud Storage bucket.
type GCS struct {
	client   *storage.Client
	logger   *slog.Logger
	bucket   string
	baseURL  string
	uploader string
	public   bool
}

// NewGCS creates a GCS publisher. Credentials come from
// cfg.GCS.CredentialsFile when set, otherwise from the application default
// credentials.
func NewGCS(ctx context.Context, logger *slog.Logger, cfg config.PublishConfig) (*GCS, error) {
	var opts []option.ClientOption
	if cfg.GCS.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.GCS.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, &UploadError{Backend: config.BackendGCS, Op: "connect", Err: err}
	}

	baseURL := cfg.PublicBaseURL
	if baseURL == "" {
		baseURL = gcsPublicBase + "/" + cfg.GCS.Bucket
	}

	g := &GCS{
		client:   client,
		logger:   logger,
		bucket:   cfg.GCS.Bucket,
		baseURL:  baseURL,
		uploader: cfg.Uploader,
		public:   cfg.GCS.PublicACL,
	}
	g.warnIfPrivate()
	return g, nil
}

// warnIfPrivate logs when uploads carry no ACL. The shared URL then only
// works if the bucket itself is readable by everyone.
func (g *GCS) warnIfPrivate() {
	if g.public {
		return
	}
	g.logger.Warn("Public ACL is off; the bucket must grant allUsers:objectViewer for the shared URL to be readable",
		"bucket", g.bucket)
}

func (g *GCS) Name() string { return config.BackendGCS }

// Publish overwrites {id}.ics in the bucket with a single upload.
func (g *GCS) Publish(ctx context.Context, obj Object) (*Result, error) {
	key, err := ObjectKey(obj.ID)
	if err != nil {
		return nil, &UploadError{Backend: g.Name(), Op: "upload", Err: err}
	}

	g.logger.Info("Uploading calendar to Cloud Storage", "bucket", g.bucket, "key", key, "bytes", len(obj.Body))

	w := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
	g.prepare(w, obj)

	if _, err := w.Write(obj.Body); err != nil {
		w.Close()
		return nil, &UploadError{Backend: g.Name(), Op: "upload", Err: err}
	}
	if err := w.Close(); err != nil {
		return nil, &UploadError{Backend: g.Name(), Op: "upload", Err: fmt.Errorf("gs://%s/%s: %w", g.bucket, key, err)}
	}

	res := &Result{Backend: g.Name(), Key: key, URL: joinURL(g.baseURL, key)}
	g.logger.Info("Successfully uploaded calendar", "url", res.URL)
	return res, nil
}

// prepare sets the object attributes of an upload. Caching is disabled so
// subscribers see a new week as soon as it is published.
func (g *GCS) prepare(w *storage.Writer, obj Object) {
	w.ContentType = obj.ContentType
	w.ContentDisposition = "inline"
	w.CacheControl = "no-cache, max-age=0"
	w.Metadata = map[string]string{
		"uploader":    g.uploader,
		"uploaded-at": uploadedAt(),
	}
	if obj.RunID != "" {
		w.Metadata["run-id"] = obj.RunID
	}
	if g.public {
		w.PredefinedACL = "publicRead"
	}
}

func (g *GCS) Close() error {
	return g.client.Close()
}
