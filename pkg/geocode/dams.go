package geocode

import (
	"context"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
)

// damsResponse mirrors the geocode_simplify output of the DAMS geocoder.
type damsResponse struct {
	Score      int             `json:"score"`
	Tail       string          `json:"tail"`
	Candidates []damsCandidate `json:"candidates"`
}

type damsCandidate struct {
	Name string  `json:"name"`
	X    float64 `json:"x"` // longitude
	Y    float64 `json:"y"` // latitude
}

// DAMSProvider geocodes through an HTTP front end for the DAMS address
// matcher. The endpoint takes ?addr= and answers with score, tail and
// candidates.
type DAMSProvider struct {
	httpBase
	baseURL string
}

// NewDAMSProvider creates a provider for the DAMS service at baseURL. An
// empty baseURL leaves the provider unavailable.
func NewDAMSProvider(baseURL string, opts ...Option) *DAMSProvider {
	return &DAMSProvider{
		httpBase: newHTTPBase(20, opts),
		baseURL:  strings.TrimSpace(baseURL),
	}
}

// Name implements Provider.
func (p *DAMSProvider) Name() string { return "dams" }

// Available implements Provider.
func (p *DAMSProvider) Available() bool { return p.baseURL != "" }

// Geocode implements Provider.
func (p *DAMSProvider) Geocode(ctx context.Context, address string) (*Result, error) {
	reqURL := p.baseURL + "?" + url.Values{"addr": {address}}.Encode()

	var resp damsResponse
	if err := p.getJSON(ctx, p.Name(), reqURL, &resp); err != nil {
		return nil, err
	}

	if len(resp.Candidates) == 0 {
		return nil, eris.Wrapf(ErrNoMatch, "dams: %s", address)
	}

	c := resp.Candidates[0]
	return &Result{
		Latitude:  c.Y,
		Longitude: c.X,
		Score:     clampScore(resp.Score),
		Matched:   c.Name,
		Tail:      resp.Tail,
		Source:    p.Name(),
	}, nil
}
