// Package storage keeps exported results outside the process. Every export
// lands under a key from BuildExportPath and carries ExportMetadata.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var ErrObjectNotFound = errors.New("object not found")

type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	ETag         string
	LastModified time.Time
	Metadata     map[string]string
	// URL is a time-limited download link when the store can sign one.
	URL string
}

type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, opts PutOptions) (ObjectInfo, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, key string) (ObjectInfo, error)
}

// Presigner hands out download links for stored objects.
type Presigner interface {
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}

const (
	MetaExecutionID = "execution-id"
	MetaFormat      = "format"
	MetaRowCount    = "row-count"
)

func ExportMetadata(executionID, format string, rows int) map[string]string {
	return map[string]string{
		MetaExecutionID: executionID,
		MetaFormat:      format,
		MetaRowCount:    strconv.Itoa(rows),
	}
}

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// BuildExportPath lays exports out as
// [prefix/]exports/date=YYYY-MM-DD/<execution>-<unix millis>.<extension>.
func BuildExportPath(prefix, executionID string, exportedAt time.Time, extension string) (string, error) {
	if err := validatePathComponent(executionID, "execution id"); err != nil {
		return "", err
	}
	extension = strings.TrimPrefix(extension, ".")
	if err := validatePathComponent(extension, "extension"); err != nil {
		return "", err
	}
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		for _, part := range strings.Split(prefix, "/") {
			if err := validatePathComponent(part, "prefix"); err != nil {
				return "", err
			}
		}
	}

	ts := exportedAt.UTC()
	return path.Join(
		prefix,
		"exports",
		"date="+ts.Format(time.DateOnly),
		fmt.Sprintf("%s-%d.%s", executionID, ts.UnixMilli(), extension),
	), nil
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
