// Package archive exports audit events to S3-compatible object storage.
// When storage is not configured (empty bucket), the NoopUploader is used;
// events then stay in the local cache and the system runs local-only.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/tillworks/quota/internal/cache"
	"github.com/tillworks/quota/internal/config"
)

// ErrNotConfigured is returned when archive storage is not configured.
var ErrNotConfigured = errors.New("archive storage not configured")

// Uploader stores audit event batches in object storage.
type Uploader interface {
	// Upload stores one JSONL batch of audit events for the given scope.
	// Returns ErrNotConfigured when no storage backend is available, in
	// which case the events must stay pending locally.
	Upload(ctx context.Context, storeScope string, at time.Time, data []byte) error
}

// objectPutter is the one minio.Client operation the uploader needs.
type objectPutter interface {
	PutObject(ctx context.Context, bucket, objectName string, reader io.Reader, size int64) error
}

// minioPutter narrows minio.Client's option-struct signature to objectPutter.
type minioPutter struct {
	client *minio.Client
}

func (p *minioPutter) PutObject(ctx context.Context, bucket, objectName string, reader io.Reader, size int64) error {
	_, err := p.client.PutObject(ctx, bucket, objectName, reader, size, minio.PutObjectOptions{
		ContentType: "application/x-ndjson",
	})
	return err
}

// S3Uploader uploads audit event batches to S3-compatible storage.
type S3Uploader struct {
	client objectPutter
	bucket string
}

// Upload stores the batch under the scope's events prefix.
func (u *S3Uploader) Upload(ctx context.Context, storeScope string, at time.Time, data []byte) error {
	key := objectKey(storeScope, at)
	if err := u.client.PutObject(ctx, u.bucket, key, bytes.NewReader(data), int64(len(data))); err != nil {
		return fmt.Errorf("upload event archive: %w", err)
	}
	return nil
}

// NoopUploader is used when archive storage is not configured.
// Upload returns ErrNotConfigured so callers keep events pending locally.
type NoopUploader struct{}

// Upload returns ErrNotConfigured when archive storage is not configured.
func (u *NoopUploader) Upload(ctx context.Context, storeScope string, at time.Time, data []byte) error {
	return ErrNotConfigured
}

// NewUploader picks the backend from cfg. An empty bucket selects the noop
// uploader; anything else builds an S3 client for the configured endpoint.
func NewUploader(cfg config.ArchiveConfig) (Uploader, error) {
	if cfg.Bucket == "" {
		return &NoopUploader{}, nil
	}

	endpoint, secure := splitEndpoint(cfg.Endpoint, cfg.UseSSL)

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create S3 client: %w", err)
	}

	return &S3Uploader{
		client: &minioPutter{client: client},
		bucket: cfg.Bucket,
	}, nil
}

// EncodeEvents renders events as JSONL, one event per line, oldest first.
func EncodeEvents(events []cache.AuditEvent) ([]byte, error) {
	var buf bytes.Buffer
	for _, ev := range events {
		line, err := json.Marshal(ev)
		if err != nil {
			return nil, fmt.Errorf("encode audit event %s: %w", ev.ID, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// splitEndpoint strips an optional http/https scheme from the endpoint.
// An explicit scheme decides TLS; otherwise use_ssl does, defaulting to true.
func splitEndpoint(endpoint string, useSSL *bool) (string, bool) {
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		return strings.TrimPrefix(endpoint, "https://"), true
	case strings.HasPrefix(endpoint, "http://"):
		return strings.TrimPrefix(endpoint, "http://"), false
	}

	secure := true
	if useSSL != nil {
		secure = *useSSL
	}
	return endpoint, secure
}

// objectKey returns the object key for one exported batch.
// Convention: {scope}/events/{UTC timestamp}.jsonl
func objectKey(storeScope string, at time.Time) string {
	return storeScope + "/events/" + at.UTC().Format("20060102T150405Z") + ".jsonl"
}
