// Package fetcher downloads and decodes the raw files that feed the pipeline:
// listing tables (CSV, XLSX) and the Japan Post postal code archive.
package fetcher

import (
	"context"
	"io"
)

// Fetcher retrieves remote files.
type Fetcher interface {
	// Open streams the body at url. The caller closes it.
	Open(ctx context.Context, url string) (io.ReadCloser, error)

	// Save writes the body at url to path and reports the byte count. path
	// is only replaced once the whole body has arrived.
	Save(ctx context.Context, url, path string) (int64, error)
}
