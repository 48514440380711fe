// Package artifact mirrors generated documents to Google Cloud Storage.
package artifact

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/joescharf/evidence/internal/logger"
)

const docxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// Publisher copies a local file to durable storage and returns its URI.
type Publisher interface {
	Publish(ctx context.Context, localPath, key string) (string, error)
}

// GCSPublisher uploads into one bucket under a key prefix.
type GCSPublisher struct {
	client    *storage.Client
	bucket    string
	prefix    string
	log       *slog.Logger
	newWriter func(ctx context.Context, key string) io.WriteCloser
}

// NewGCSPublisher creates a storage client with application default
// credentials unless opts say otherwise.
func NewGCSPublisher(ctx context.Context, bucket, prefix string, log *slog.Logger, opts ...option.ClientOption) (*GCSPublisher, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}
	opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	p := &GCSPublisher{client: client, bucket: bucket, prefix: prefix, log: logger.OrDefault(log)}
	p.newWriter = func(ctx context.Context, key string) io.WriteCloser {
		w := client.Bucket(bucket).Object(key).NewWriter(ctx)
		w.ContentType = docxContentType
		return w
	}
	return p, nil
}

// Publish uploads localPath as prefix/key and returns gs://bucket/prefix/key.
func (p *GCSPublisher) Publish(ctx context.Context, localPath, key string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer func() { _ = f.Close() }()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	objectKey := joinKey(p.prefix, key)
	w := p.newWriter(ctx, objectKey)
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write gcs object: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close gcs writer: %w", err)
	}

	uri := fmt.Sprintf("gs://%s/%s", p.bucket, objectKey)
	p.log.Info("document mirrored", "uri", uri)
	return uri, nil
}

func (p *GCSPublisher) Close() error {
	if p.client == nil {
		return nil
	}
	return p.client.Close()
}

// Key returns the object key for a document path relative to baseDir,
// always slash separated.
func Key(baseDir, docPath string) string {
	rel, err := filepath.Rel(baseDir, docPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(docPath)
	}
	return filepath.ToSlash(rel)
}

func joinKey(prefix, key string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return strings.TrimPrefix(key, "/")
	}
	return path.Join(prefix, key)
}
