package geocode

import (
	"context"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
)

const googleGeocodeURL = "https://maps.googleapis.com/maps/api/geocode/json"

type googleGeocodeResponse struct {
	Results      []googleResult `json:"results"`
	Status       string         `json:"status"`
	ErrorMessage string         `json:"error_message"`
}

type googleResult struct {
	Geometry struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
		LocationType string `json:"location_type"`
	} `json:"geometry"`
	FormattedAddress string `json:"formatted_address"`
	PartialMatch     bool   `json:"partial_match"`
}

// GoogleProvider geocodes through the Google Geocoding API, restricted to
// Japan. It is unavailable without an API key.
type GoogleProvider struct {
	httpBase
	apiKey string
}

// NewGoogleProvider creates a Google provider.
func NewGoogleProvider(apiKey string, opts ...Option) *GoogleProvider {
	return &GoogleProvider{
		httpBase: newHTTPBase(10, opts),
		apiKey:   strings.TrimSpace(apiKey),
	}
}

// Name implements Provider.
func (p *GoogleProvider) Name() string { return "google" }

// Available implements Provider.
func (p *GoogleProvider) Available() bool { return p.apiKey != "" }

// Geocode implements Provider.
func (p *GoogleProvider) Geocode(ctx context.Context, address string) (*Result, error) {
	params := url.Values{
		"address":    {address},
		"key":        {p.apiKey},
		"language":   {"ja"},
		"region":     {"jp"},
		"components": {"country:JP"},
	}

	var resp googleGeocodeResponse
	if err := p.getJSON(ctx, p.Name(), googleGeocodeURL+"?"+params.Encode(), &resp); err != nil {
		return nil, err
	}

	switch resp.Status {
	case "OK":
	case "ZERO_RESULTS":
		return nil, eris.Wrapf(ErrNoMatch, "google: %s", address)
	default:
		return nil, eris.Errorf("geocode: google status %s: %s", resp.Status, resp.ErrorMessage)
	}
	if len(resp.Results) == 0 {
		return nil, eris.Wrapf(ErrNoMatch, "google: %s", address)
	}

	r := resp.Results[0]
	score := googleLocationTypeToScore(r.Geometry.LocationType)
	if r.PartialMatch {
		score--
	}
	return &Result{
		Latitude:  r.Geometry.Location.Lat,
		Longitude: r.Geometry.Location.Lng,
		Score:     clampScore(score),
		Matched:   r.FormattedAddress,
		Source:    p.Name(),
	}, nil
}

func googleLocationTypeToScore(locType string) int {
	switch strings.ToUpper(locType) {
	case "ROOFTOP":
		return 5
	case "RANGE_INTERPOLATED":
		return 4
	case "GEOMETRIC_CENTER":
		return 3
	default:
		return 2
	}
}
