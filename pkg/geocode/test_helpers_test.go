package geocode

import (
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/goto-eat-map/csv2geojson/internal/resilience"
)

// testOptions lifts rate limits and shortens retries.
func testOptions(hc *http.Client) []Option {
	return []Option{
		WithHTTPClient(hc),
		WithLimiter(rate.NewLimiter(rate.Inf, 1)),
		WithRetry(resilience.RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond}),
	}
}

// newRewriteClient sends requests for the host of upstream, a provider's
// production base URL, to the test server instead. Path and query are kept.
func newRewriteClient(testServerURL, upstream string) *http.Client {
	target, err := url.Parse(testServerURL)
	if err != nil {
		panic(err)
	}
	orig, err := url.Parse(upstream)
	if err != nil {
		panic(err)
	}
	return &http.Client{Transport: hostSwap{from: orig.Host, to: target}}
}

type hostSwap struct {
	from string
	to   *url.URL
}

func (h hostSwap) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Host != h.from {
		return http.DefaultTransport.RoundTrip(req)
	}
	out := req.Clone(req.Context())
	out.URL.Scheme = h.to.Scheme
	out.URL.Host = h.to.Host
	out.Host = h.to.Host
	return http.DefaultTransport.RoundTrip(out)
}
