package export

import (
	"bytes"
	"encoding/json"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/goto-eat-map/csv2geojson/internal/genre"
	"github.com/goto-eat-map/csv2geojson/internal/model"
)

// debugIndent matches the layout of the hand-checked debug files.
const debugIndent = "    "

// FeatureCollection is a GeoJSON collection of point features.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Feature is a point feature whose properties keep column order.
type Feature struct {
	Type       string            `json:"type"`
	Geometry   *geojson.Geometry `json:"geometry"`
	Properties Properties        `json:"properties"`
}

// Properties is an ordered JSON object.
type Properties []model.Column

// MarshalJSON writes the columns as an object in slice order.
func (p Properties) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := marshalNoEscape(c.Name)
		if err != nil {
			return nil, err
		}
		v, err := marshalNoEscape(c.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// NewFeature builds the feature for r. Coordinates move from the properties
// into the geometry as [lng, lat]. Internal columns are kept only for debug.
func NewFeature(r model.NormalizedRecord, debug bool) (Feature, error) {
	g, err := geojson.Encode(geom.NewPointFlat(geom.XY, []float64{r.Lng, r.Lat}))
	if err != nil {
		return Feature{}, eris.Wrap(err, "export: encode point")
	}

	cols := r.Columns()
	props := make(Properties, 0, len(cols))
	for _, c := range cols {
		if c.Name == "lat" || c.Name == "lng" {
			continue
		}
		if c.IsDebug() && !debug {
			continue
		}
		props = append(props, c)
	}
	return Feature{Type: "Feature", Geometry: g, Properties: props}, nil
}

// NewFeatureCollection builds the collection for records.
func NewFeatureCollection(records []model.NormalizedRecord, debug bool) (*FeatureCollection, error) {
	fc := &FeatureCollection{Type: "FeatureCollection", Features: make([]Feature, 0, len(records))}
	for _, r := range records {
		f, err := NewFeature(r, debug)
		if err != nil {
			return nil, err
		}
		fc.Features = append(fc.Features, f)
	}
	return fc, nil
}

// WriteGeoJSON writes records to path. Debug output is indented; production
// output is compact. Non-ASCII text is written literally in both.
func WriteGeoJSON(path string, records []model.NormalizedRecord, debug bool) error {
	fc, err := NewFeatureCollection(records, debug)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	if debug {
		enc.SetIndent("", debugIndent)
	}
	if err := enc.Encode(fc); err != nil {
		return eris.Wrapf(err, "export: encode %s", path)
	}
	return eris.Wrap(f.Close(), "export: close geojson")
}

func genreSuffix(code genre.Code) string {
	return strconv.Itoa(int(code))
}
