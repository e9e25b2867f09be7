package archive

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/tillworks/quota/internal/cache"
	"github.com/tillworks/quota/internal/config"
)

func TestNoopUploader_Upload(t *testing.T) {
	u := &NoopUploader{}
	err := u.Upload(context.Background(), "downtown", time.Now(), []byte("{}\n"))
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("NoopUploader.Upload() = %v, want ErrNotConfigured", err)
	}
}

func TestNewUploader_EmptyBucket(t *testing.T) {
	u, err := NewUploader(config.ArchiveConfig{})
	if err != nil {
		t.Fatalf("NewUploader() error = %v", err)
	}

	if _, ok := u.(*NoopUploader); !ok {
		t.Errorf("NewUploader() = %T, want *NoopUploader", u)
	}
}

func TestNewUploader_S3(t *testing.T) {
	cfg := config.ArchiveConfig{
		Bucket:    "quota-audit",
		Endpoint:  "minio.internal:9000",
		Region:    "eu-central-1",
		AccessKey: "quota-archiver",
		SecretKey: "quota-archiver-secret",
	}

	u, err := NewUploader(cfg)
	if err != nil {
		t.Fatalf("NewUploader() error = %v", err)
	}

	s3u, ok := u.(*S3Uploader)
	if !ok {
		t.Fatalf("NewUploader() = %T, want *S3Uploader", u)
	}
	if s3u.bucket != "quota-audit" {
		t.Errorf("bucket = %q, want %q", s3u.bucket, "quota-audit")
	}
}

// fakePutter records PutObject calls in place of a live minio client.
type fakePutter struct {
	err    error
	calls  int
	bucket string
	key    string
	body   []byte
	size   int64
}

func (f *fakePutter) PutObject(ctx context.Context, bucket, objectName string, reader io.Reader, size int64) error {
	f.calls++
	f.bucket = bucket
	f.key = objectName
	f.size = size
	b, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	f.body = b
	return f.err
}

func TestS3Uploader_Upload(t *testing.T) {
	fake := &fakePutter{}
	u := &S3Uploader{
		client: fake,
		bucket: "quota-audit",
	}

	at := time.Date(2024, 6, 15, 9, 30, 0, 0, time.UTC)
	data := []byte(`{"id":"01HX","kind":"reconcile","detail":{}}` + "\n")

	err := u.Upload(context.Background(), "downtown", at, data)
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	if fake.calls != 1 {
		t.Errorf("PutObject calls = %d, want 1", fake.calls)
	}
	if fake.bucket != "quota-audit" {
		t.Errorf("bucket = %q, want %q", fake.bucket, "quota-audit")
	}
	if fake.key != "downtown/events/20240615T093000Z.jsonl" {
		t.Errorf("object key = %q, want %q", fake.key, "downtown/events/20240615T093000Z.jsonl")
	}
	if string(fake.body) != string(data) {
		t.Errorf("body = %q, want %q", fake.body, data)
	}
	if fake.size != int64(len(data)) {
		t.Errorf("size = %d, want %d", fake.size, len(data))
	}
}

func TestS3Uploader_UploadError(t *testing.T) {
	fake := &fakePutter{err: errors.New("connection reset")}
	u := &S3Uploader{
		client: fake,
		bucket: "quota-audit",
	}

	err := u.Upload(context.Background(), "downtown", time.Now(), []byte("{}\n"))
	if err == nil {
		t.Fatal("Upload() returned nil, want the put error")
	}
	if !errors.Is(err, fake.err) {
		t.Errorf("Upload() = %v, want it to wrap %v", err, fake.err)
	}
}

func TestSplitEndpoint(t *testing.T) {
	boolFalse := false
	tests := []struct {
		name     string
		endpoint string
		useSSL   *bool
		wantHost string
		wantSSL  bool
	}{
		{"bare host", "s3.example.com", nil, "s3.example.com", true},
		{"bare host:port", "minio:9000", nil, "minio:9000", true},
		{"bare host ssl off", "minio:9000", &boolFalse, "minio:9000", false},
		{"https URL", "https://s3.example.com", nil, "s3.example.com", true},
		{"http URL", "http://minio:9000", nil, "minio:9000", false},
		{"https with port", "https://s3.example.com:443", nil, "s3.example.com:443", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, ssl := splitEndpoint(tt.endpoint, tt.useSSL)
			if host != tt.wantHost {
				t.Errorf("splitEndpoint(%q) host = %q, want %q", tt.endpoint, host, tt.wantHost)
			}
			if ssl != tt.wantSSL {
				t.Errorf("splitEndpoint(%q) ssl = %v, want %v", tt.endpoint, ssl, tt.wantSSL)
			}
		})
	}
}

func TestObjectKey_Format(t *testing.T) {
	// Verify the key convention: {scope}/events/{UTC timestamp}.jsonl
	at := time.Date(2024, 6, 1, 0, 5, 30, 0, time.FixedZone("CEST", 2*3600))

	got := objectKey("mall-east", at)
	want := "mall-east/events/20240531T220530Z.jsonl"
	if got != want {
		t.Errorf("objectKey() = %q, want %q", got, want)
	}
}

func TestEncodeEvents_OneLinePerEvent(t *testing.T) {
	archived := time.Date(2024, 6, 1, 1, 0, 0, 0, time.UTC)
	events := []cache.AuditEvent{
		{
			ID:        "01HX0000000000000000000001",
			Kind:      cache.EventReconcile,
			Detail:    json.RawMessage(`{"fallback":true}`),
			CreatedAt: time.Date(2024, 6, 1, 0, 5, 0, 0, time.UTC),
		},
		{
			ID:         "01HX0000000000000000000002",
			Kind:       cache.EventCelebration,
			CreatedAt:  time.Date(2024, 6, 1, 0, 6, 0, 0, time.UTC),
			ArchivedAt: &archived,
		},
	}

	data, err := EncodeEvents(events)
	if err != nil {
		t.Fatalf("EncodeEvents() error = %v", err)
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), data)
	}

	var first cache.AuditEvent
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("first line is not valid JSON: %v", err)
	}
	if first.ID != events[0].ID || first.Kind != cache.EventReconcile {
		t.Errorf("first line = %+v, want event %s", first, events[0].ID)
	}
	if string(first.Detail) != `{"fallback":true}` {
		t.Errorf("first line detail = %s, want fallback payload", first.Detail)
	}

	var second cache.AuditEvent
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("second line is not valid JSON: %v", err)
	}
	if second.ID != events[1].ID {
		t.Errorf("second line = %+v, want event %s", second, events[1].ID)
	}
}

func TestEncodeEvents_Empty(t *testing.T) {
	data, err := EncodeEvents(nil)
	if err != nil {
		t.Fatalf("EncodeEvents() error = %v", err)
	}
	if len(data) != 0 {
		t.Errorf("EncodeEvents(nil) = %q, want empty", data)
	}
}
