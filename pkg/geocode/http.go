package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/goto-eat-map/csv2geojson/internal/resilience"
)

// maxBody caps provider responses.
const maxBody = 4 << 20

type httpBase struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      resilience.RetryConfig
}

// getJSON issues a rate-limited GET and decodes the JSON body into v.
// 429 and 5xx responses are retried, after the server's Retry-After when
// it sends one.
func (b *httpBase) getJSON(ctx context.Context, source, reqURL string, v any) error {
	retry := b.retry
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger("geocode", source)
	}

	return resilience.Do(ctx, retry, func(ctx context.Context) error {
		if err := b.limiter.Wait(ctx); err != nil {
			return eris.Wrapf(err, "geocode: %s rate limit", source)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return eris.Wrapf(err, "geocode: %s build request", source)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := b.httpClient.Do(req)
		if err != nil {
			return eris.Wrapf(err, "geocode: %s request", source)
		}
		defer resp.Body.Close() //nolint:errcheck

		if resp.StatusCode != http.StatusOK {
			return resilience.HTTPStatusError(resp, eris.Errorf("geocode: %s returned status %d", source, resp.StatusCode))
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
		if err != nil {
			return eris.Wrapf(err, "geocode: %s read body", source)
		}

		if err := json.Unmarshal(body, v); err != nil {
			return eris.Wrapf(err, "geocode: %s parse response", source)
		}
		return nil
	})
}
