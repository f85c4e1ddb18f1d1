package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sqlpane/sqlpane/internal/config"
	"github.com/sqlpane/sqlpane/internal/storage"
)

func TestPutUsesPrefixAndNormalizedKey(t *testing.T) {
	fake := &fakeClient{}
	store, err := NewWithClient("sqlpane-exports", "/team-a/", fake)
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}

	meta := storage.ExportMetadata("exec-1", "csv", 1)
	info, err := store.Put(context.Background(), "/exports/date=2026-02-19/exec-1-1.csv", bytes.NewBufferString("a,b\n"), 4, storage.PutOptions{ContentType: "text/csv", Metadata: meta})
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if fake.lastBucket != "sqlpane-exports" || store.Bucket() != "sqlpane-exports" {
		t.Fatalf("bucket = %q", fake.lastBucket)
	}
	if fake.lastKey != "team-a/exports/date=2026-02-19/exec-1-1.csv" {
		t.Fatalf("key = %q", fake.lastKey)
	}
	if info.Key != "exports/date=2026-02-19/exec-1-1.csv" {
		t.Fatalf("returned key = %q", info.Key)
	}
	if fake.lastOpts.ContentType != "text/csv" || info.ContentType != "text/csv" || info.Size != 4 {
		t.Fatalf("content type = %q size = %d", fake.lastOpts.ContentType, info.Size)
	}
	if fake.lastOpts.Metadata[storage.MetaExecutionID] != "exec-1" || info.Metadata[storage.MetaRowCount] != "1" {
		t.Fatalf("metadata sent = %v returned = %v", fake.lastOpts.Metadata, info.Metadata)
	}
}

func TestGetMapsMissingObject(t *testing.T) {
	fake := &fakeClient{getErr: storage.ErrObjectNotFound}
	store, err := NewWithClient("sqlpane-exports", "", fake)
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}
	if _, err := store.Get(context.Background(), "exports/missing.csv"); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("Get() error = %v", err)
	}
}

func TestStatReturnsMetadata(t *testing.T) {
	fake := &fakeClient{metadata: map[string]string{storage.MetaFormat: "parquet"}}
	store, err := NewWithClient("bucket-a", "p", fake)
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}
	info, err := store.Stat(context.Background(), "exports/a.parquet")
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if info.Key != "exports/a.parquet" || info.Metadata[storage.MetaFormat] != "parquet" {
		t.Fatalf("Stat() = %+v", info)
	}
}

func TestNewRequiresEnabled(t *testing.T) {
	if _, err := New(context.Background(), config.ObjectStoreConfig{Endpoint: "localhost:9000", Bucket: "b"}); err == nil {
		t.Fatal("expected disabled object store error")
	}
	if _, err := New(context.Background(), config.ObjectStoreConfig{Enabled: true, Endpoint: "localhost:9000"}); err == nil {
		t.Fatal("expected missing bucket error")
	}
}

func TestPutRejectsPathTraversal(t *testing.T) {
	fake := &fakeClient{}
	store, err := NewWithClient("bucket-a", "", fake)
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}
	_, err = store.Put(context.Background(), "../secrets.txt", bytes.NewBufferString("x"), 1, storage.PutOptions{})
	if err == nil {
		t.Fatal("expected path traversal validation error")
	}
	if fake.lastKey != "" {
		t.Fatalf("client was called with %q", fake.lastKey)
	}
}

func TestPresignGetClampsExpiry(t *testing.T) {
	fake := &fakeClient{}
	store, err := NewWithClient("bucket-a", "team-a", fake)
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}

	link, err := store.PresignGet(context.Background(), "/exports/a.csv", 30*24*time.Hour)
	if err != nil {
		t.Fatalf("PresignGet() error = %v", err)
	}
	if link != "https://signed.example/bucket-a/team-a/exports/a.csv" {
		t.Fatalf("link = %q", link)
	}
	if fake.lastExpiry != maxLinkExpiry {
		t.Fatalf("expiry = %s", fake.lastExpiry)
	}
	if _, err := store.PresignGet(context.Background(), "exports/a.csv", 0); err == nil {
		t.Fatal("expected error for zero expiry")
	}
}

func TestEnsureBucketCreatesWhenMissing(t *testing.T) {
	fake := &fakeClient{bucketExists: false}
	store, err := NewWithClient("bucket-a", "", fake)
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}

	if err := store.ensureBucket(context.Background(), "us-east-1"); err != nil {
		t.Fatalf("ensureBucket() error = %v", err)
	}
	if !fake.createBucketCalled {
		t.Fatal("expected CreateBucket to be called")
	}
}

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		raw      string
		useSSL   bool
		endpoint string
		secure   bool
		wantErr  bool
	}{
		{raw: "https://minio.example.com", endpoint: "minio.example.com", secure: true},
		{raw: "http://localhost:9000", useSSL: true, endpoint: "localhost:9000", secure: true},
		{raw: "localhost:9000", endpoint: "localhost:9000"},
		{raw: "ftp://minio", wantErr: true},
		{raw: " ", wantErr: true},
	}
	for _, tt := range tests {
		endpoint, secure, err := parseEndpoint(tt.raw, tt.useSSL)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("parseEndpoint(%q) expected error", tt.raw)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parseEndpoint(%q) error = %v", tt.raw, err)
		}
		if endpoint != tt.endpoint || secure != tt.secure {
			t.Fatalf("parseEndpoint(%q) = %q/%v", tt.raw, endpoint, secure)
		}
	}
}

type fakeClient struct {
	lastBucket         string
	lastKey            string
	lastOpts           storage.PutOptions
	lastExpiry         time.Duration
	bucketExists       bool
	createBucketCalled bool
	getErr             error
	metadata           map[string]string
}

func (f *fakeClient) Put(_ context.Context, bucket, key string, reader io.Reader, size int64, opts storage.PutOptions) (storage.ObjectInfo, error) {
	f.lastBucket = bucket
	f.lastKey = key
	f.lastOpts = opts
	_, _ = io.Copy(io.Discard, reader)
	return storage.ObjectInfo{Key: key, Size: size, ETag: "etag-1"}, nil
}

func (f *fakeClient) Get(_ context.Context, _, key string) (io.ReadCloser, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return io.NopCloser(strings.NewReader(key)), nil
}

func (f *fakeClient) Stat(_ context.Context, _, key string) (storage.ObjectInfo, error) {
	return storage.ObjectInfo{Key: key, Size: 10, LastModified: time.Now().UTC(), Metadata: f.metadata}, nil
}

func (f *fakeClient) PresignGet(_ context.Context, bucket, key string, expiry time.Duration) (string, error) {
	f.lastExpiry = expiry
	return "https://signed.example/" + bucket + "/" + key, nil
}

func (f *fakeClient) BucketExists(_ context.Context, _ string) (bool, error) {
	return f.bucketExists, nil
}

func (f *fakeClient) CreateBucket(_ context.Context, _, _ string) error {
	f.createBucketCalled = true
	return nil
}
