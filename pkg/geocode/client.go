// Package geocode resolves Japanese addresses to coordinates through a
// cascade of geocoding providers (DAMS, GSI address search, Google).
package geocode

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/goto-eat-map/csv2geojson/internal/resilience"
)

// ErrNoMatch is returned when a provider has no candidate for an address.
var ErrNoMatch = eris.New("geocode: no match")

// Client geocodes a single address.
type Client interface {
	Geocode(ctx context.Context, address string) (*Result, error)
}

// Result holds the geocoding output for an address.
type Result struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
	Score     int     `json:"score"`  // 1 (weak) .. 5 (exact)
	Matched   string  `json:"name"`   // address part the provider resolved
	Tail      string  `json:"tail"`   // address part the provider ignored
	Source    string  `json:"source"` // provider name
}

// Score bounds.
const (
	MinScore = 1
	MaxScore = 5
)

func clampScore(s int) int {
	return max(MinScore, min(MaxScore, s))
}

// Option configures an HTTP-backed provider.
type Option func(*httpBase)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(b *httpBase) {
		b.httpClient = hc
	}
}

// WithRateLimit sets the requests-per-second limit for the provider.
func WithRateLimit(rps float64) Option {
	return func(b *httpBase) {
		burst := max(1, int(rps))
		b.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLimiter sets the rate limiter directly.
func WithLimiter(l *rate.Limiter) Option {
	return func(b *httpBase) {
		b.limiter = l
	}
}

// WithRetry sets the retry policy for transient failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(b *httpBase) {
		b.retry = cfg
	}
}

func newHTTPBase(defaultRPS float64, opts []Option) httpBase {
	b := httpBase{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(defaultRPS), max(1, int(defaultRPS))),
		retry:      resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}
