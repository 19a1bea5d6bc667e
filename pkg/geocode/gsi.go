package geocode

import (
	"context"
	"encoding/json"
	"net/url"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"golang.org/x/text/unicode/norm"
)

// DefaultGSIURL is the GSI address search endpoint.
const DefaultGSIURL = "https://msearch.gsi.go.jp/address-search/AddressSearch"

// lotOnly matches a tail made of block and lot numbering only.
var lotOnly = regexp.MustCompile(`^[0-9一二三四五六七八九十百千万丁目番地号の\-\s]+$`)

// GSIProvider geocodes through the Geospatial Information Authority of
// Japan address search. The service answers with a bare array of GeoJSON
// point features and has no score, so one is derived from how much of the
// address the best title covers.
type GSIProvider struct {
	httpBase
	baseURL string
}

// NewGSIProvider creates a GSI provider. An empty baseURL uses DefaultGSIURL.
func NewGSIProvider(baseURL string, opts ...Option) *GSIProvider {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultGSIURL
	}
	return &GSIProvider{
		httpBase: newHTTPBase(5, opts),
		baseURL:  baseURL,
	}
}

// Name implements Provider.
func (p *GSIProvider) Name() string { return "gsi" }

// Available implements Provider.
func (p *GSIProvider) Available() bool { return true }

// Geocode implements Provider.
func (p *GSIProvider) Geocode(ctx context.Context, address string) (*Result, error) {
	reqURL := p.baseURL + "?" + url.Values{"q": {address}}.Encode()

	var raw []json.RawMessage
	if err := p.getJSON(ctx, p.Name(), reqURL, &raw); err != nil {
		return nil, err
	}

	for _, msg := range raw {
		var f geojson.Feature
		if err := json.Unmarshal(msg, &f); err != nil {
			return nil, eris.Wrap(err, "geocode: gsi decode feature")
		}
		pt, ok := f.Geometry.(*geom.Point)
		if !ok || pt.Empty() {
			continue
		}
		title, _ := f.Properties["title"].(string)

		tail, score := gsiScore(address, title, len(raw))
		return &Result{
			Latitude:  pt.Y(),
			Longitude: pt.X(),
			Score:     score,
			Matched:   title,
			Tail:      tail,
			Source:    p.Name(),
		}, nil
	}

	return nil, eris.Wrapf(ErrNoMatch, "gsi: %s", address)
}

// gsiScore derives a DAMS-like score: 5 when the title covers the whole
// address, 4 when only lot numbering is left over, 3 when more is left, 2
// when the title is not a prefix of the address. Ambiguous answers lose a
// point.
func gsiScore(address, title string, candidates int) (string, int) {
	a := norm.NFKC.String(strings.TrimSpace(address))
	t := norm.NFKC.String(strings.TrimSpace(title))

	var tail string
	var score int
	switch {
	case t != "" && strings.HasPrefix(a, t):
		tail = strings.TrimSpace(a[len(t):])
		switch {
		case tail == "":
			score = 5
		case lotOnly.MatchString(tail):
			score = 4
		default:
			score = 3
		}
	default:
		tail = a
		score = 2
	}

	if candidates > 1 {
		score--
	}
	return tail, clampScore(score)
}
