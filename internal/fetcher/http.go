package fetcher

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"

	"github.com/goto-eat-map/csv2geojson/internal/resilience"
)

// ErrTooLarge is returned when a body exceeds HTTPOptions.MaxBytes.
var ErrTooLarge = eris.New("fetcher: body exceeds size limit")

// DefaultMaxBytes bounds a single download. KEN_ALL.ZIP is about 2 MB.
const DefaultMaxBytes = 64 << 20

// HTTPOptions configures HTTPFetcher. Zero fields take defaults.
type HTTPOptions struct {
	UserAgent   string
	Timeout     time.Duration
	MaxAttempts int
	Backoff     time.Duration
	MaxBytes    int64
}

// HTTPFetcher is a Fetcher over net/http. Transient statuses and dropped
// connections are retried, honoring Retry-After.
type HTTPFetcher struct {
	client *http.Client
	opts   HTTPOptions
}

// NewHTTPFetcher fills in defaults and builds the client.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.UserAgent == "" {
		opts.UserAgent = "csv2geojson/1.0"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	return &HTTPFetcher{
		client: &http.Client{Timeout: opts.Timeout},
		opts:   opts,
	}
}

// Open issues a GET and returns the body once a 200 arrives.
func (f *HTTPFetcher) Open(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: build request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	retry := resilience.RetryConfig{
		MaxAttempts:    f.opts.MaxAttempts,
		InitialBackoff: f.opts.Backoff,
		OnRetry:        resilience.RetryLogger("fetcher", req.URL.Host),
	}
	resp, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (*http.Response, error) {
		resp, err := f.client.Do(req.Clone(ctx))
		if err != nil {
			return nil, resilience.NewTransientError(eris.Wrap(err, "fetcher: get"), 0)
		}
		if resp.StatusCode != http.StatusOK {
			_ = resp.Body.Close()
			return nil, resilience.HTTPStatusError(resp,
				eris.Errorf("fetcher: %s returned http %d", rawURL, resp.StatusCode))
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}

	if resp.ContentLength > f.opts.MaxBytes {
		_ = resp.Body.Close()
		return nil, eris.Wrapf(ErrTooLarge, "content length %d", resp.ContentLength)
	}
	return &limitedBody{rc: resp.Body, left: f.opts.MaxBytes}, nil
}

// Save downloads into a sibling ".part" file and renames it over path.
func (f *HTTPFetcher) Save(ctx context.Context, rawURL, path string) (int64, error) {
	body, err := f.Open(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	defer body.Close() //nolint:errcheck

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.part")
	if err != nil {
		return 0, eris.Wrap(err, "fetcher: create temp file")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	n, err := io.Copy(tmp, body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, eris.Wrapf(err, "fetcher: write %s", path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return n, eris.Wrap(err, "fetcher: rename")
	}
	return n, nil
}

// limitedBody fails with ErrTooLarge instead of silently truncating.
type limitedBody struct {
	rc   io.ReadCloser
	left int64
}

func (b *limitedBody) Read(p []byte) (int, error) {
	if b.left <= 0 {
		var probe [1]byte
		if n, _ := b.rc.Read(probe[:]); n > 0 {
			return 0, ErrTooLarge
		}
		return 0, io.EOF
	}
	if int64(len(p)) > b.left {
		p = p[:b.left]
	}
	n, err := b.rc.Read(p)
	b.left -= int64(n)
	return n, err
}

func (b *limitedBody) Close() error { return b.rc.Close() }
