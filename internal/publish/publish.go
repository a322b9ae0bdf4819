// Package publish uploads generated artifacts to S3.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
)

// ErrMissingBucket is returned when no destination bucket is configured.
var ErrMissingBucket = errors.New("publish bucket is required")

// ObjectPutter is the subset of S3 used for publishing.
type ObjectPutter interface {
	PutObject(ctx context.Context, bucket, key, contentType string, body []byte) error
}

// Artifact is one object to upload.
type Artifact struct {
	Name        string
	ContentType string
	Body        []byte
}

// Publisher uploads artifacts under an optional key prefix.
type Publisher struct {
	Client    ObjectPutter
	Bucket    string
	KeyPrefix string
	Logger    *slog.Logger
}

// Key returns the object key for an artifact name.
func (p *Publisher) Key(name string) string {
	prefix := strings.Trim(p.KeyPrefix, "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

// Publish uploads artifacts in order and returns their s3:// URIs. It stops
// at the first failure or when ctx is done.
func (p *Publisher) Publish(ctx context.Context, artifacts ...Artifact) ([]string, error) {
	if p.Bucket == "" {
		return nil, ErrMissingBucket
	}
	if p.Client == nil {
		return nil, errors.New("s3 client is nil")
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	uris := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		if err := ctx.Err(); err != nil {
			return uris, err
		}

		key := p.Key(a.Name)
		contentType := a.ContentType
		if contentType == "" {
			contentType = ContentType(a.Name)
		}

		logger.Debug("uploading artifact", "bucket", p.Bucket, "key", key, "bytes", len(a.Body))
		if err := p.Client.PutObject(ctx, p.Bucket, key, contentType, a.Body); err != nil {
			return uris, fmt.Errorf("uploading s3://%s/%s: %w", p.Bucket, key, err)
		}
		uri := fmt.Sprintf("s3://%s/%s", p.Bucket, key)
		logger.Info("uploaded artifact", "uri", uri)
		uris = append(uris, uri)
	}
	return uris, nil
}

// ContentType guesses a content type from the artifact name.
func ContentType(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".json":
		return "application/json"
	case ".yaml", ".yml":
		return "application/yaml"
	case ".dot", ".mmd", ".txt":
		return "text/plain"
	case ".zip":
		return "application/zip"
	}
	return "application/octet-stream"
}
