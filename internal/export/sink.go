package export

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sqlpane/sqlpane/internal/observability"
	"github.com/sqlpane/sqlpane/internal/result"
	"github.com/sqlpane/sqlpane/internal/storage"
)

// FileSink writes exports to the local filesystem. Relative names resolve
// against Dir.
type FileSink struct {
	Dir string
}

func (s FileSink) Write(name string, exporter Exporter, r result.Result) (string, error) {
	target := name
	if !filepath.IsAbs(target) && s.Dir != "" {
		target = filepath.Join(s.Dir, target)
	}
	file, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("create export file: %w", err)
	}
	if err := exporter.Export(file, r); err != nil {
		_ = file.Close()
		return "", err
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		return "", fmt.Errorf("sync export file: %w", err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("close export file: %w", err)
	}
	observability.ObserveExport(exporter.Extension(), "file")
	return target, nil
}

// ObjectStoreSink uploads exports under storage.BuildExportPath keys. With a
// LinkExpiry and a store that implements storage.Presigner the returned info
// carries a download URL.
type ObjectStoreSink struct {
	Store      storage.ObjectStore
	Prefix     string
	LinkExpiry time.Duration
	Now        func() time.Time
}

func (s ObjectStoreSink) Write(ctx context.Context, executionID string, exporter Exporter, r result.Result) (storage.ObjectInfo, error) {
	if s.Store == nil {
		return storage.ObjectInfo{}, fmt.Errorf("object store is not configured")
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	key, err := storage.BuildExportPath(s.Prefix, executionID, now(), exporter.Extension())
	if err != nil {
		return storage.ObjectInfo{}, err
	}

	var buf bytes.Buffer
	if err := exporter.Export(&buf, r); err != nil {
		return storage.ObjectInfo{}, err
	}
	size := int64(buf.Len())
	info, err := s.Store.Put(ctx, key, &buf, size, storage.PutOptions{
		ContentType: exporter.ContentType(),
		Metadata:    storage.ExportMetadata(executionID, exporter.Extension(), r.RowCount()),
	})
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	if info.Key == "" {
		info.Key = key
	}
	if info.Size == 0 {
		info.Size = size
	}
	observability.ObserveExport(exporter.Extension(), "object_store")

	presigner, ok := s.Store.(storage.Presigner)
	if !ok || s.LinkExpiry <= 0 {
		return info, nil
	}
	// The object is stored either way; a failed signature only drops the URL.
	if url, err := presigner.PresignGet(ctx, key, s.LinkExpiry); err == nil {
		info.URL = url
	}
	return info, nil
}
