package model

import (
	"strconv"
	"strings"

	"github.com/goto-eat-map/csv2geojson/internal/genre"
)

// DebugPrefix marks internal columns that only appear in debug outputs.
const DebugPrefix = "_"

// NormalizedFields lists the normalized table columns in output order.
var NormalizedFields = append(append([]string{}, FeedFields...),
	"lat",
	"lng",
	"normalized_address",
	"genre_code",
	"google_map_url",
	"_gsi_map_url",
	"_geocode_score",
	"_geocode_name",
	"_geocode_tail",
	"_geocode_source",
	"_tel_e164",
)

// NormalizedRecord is a RawRecord enriched by the pipeline.
type NormalizedRecord struct {
	RawRecord

	// Seq is the record's position in the source table.
	Seq int `json:"-"`

	GenreCode         genre.Code `json:"genre_code"`
	NormalizedAddress string     `json:"normalized_address"`
	Lat               float64    `json:"lat"`
	Lng               float64    `json:"lng"`
	GoogleMapURL      string     `json:"google_map_url"`

	GSIMapURL     string `json:"_gsi_map_url"`
	GeocodeScore  int    `json:"_geocode_score"`
	GeocodeName   string `json:"_geocode_name"`
	GeocodeTail   string `json:"_geocode_tail"`
	GeocodeSource string `json:"_geocode_source"`
	TelE164       string `json:"_tel_e164"`

	ErrorTag       string   `json:"_error,omitempty"`
	ErrorDetail    string   `json:"_error_detail,omitempty"`
	WarningTag     string   `json:"_warning,omitempty"`
	WarningDetails []string `json:"_warnings,omitempty"`
}

// Column is a named output value.
type Column struct {
	Name  string
	Value any
}

// IsDebug reports whether the column is internal.
func (c Column) IsDebug() bool {
	return strings.HasPrefix(c.Name, DebugPrefix)
}

// String formats the column value for tabular output.
func (c Column) String() string {
	switch v := c.Value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case genre.Code:
		return strconv.Itoa(int(v))
	default:
		return ""
	}
}

// Columns returns r's values in NormalizedFields order.
func (r NormalizedRecord) Columns() []Column {
	values := r.RawRecord.Values()
	cols := make([]Column, 0, len(NormalizedFields))
	for i, name := range FeedFields {
		cols = append(cols, Column{Name: name, Value: values[i]})
	}
	return append(cols,
		Column{Name: "lat", Value: r.Lat},
		Column{Name: "lng", Value: r.Lng},
		Column{Name: "normalized_address", Value: r.NormalizedAddress},
		Column{Name: "genre_code", Value: int(r.GenreCode)},
		Column{Name: "google_map_url", Value: r.GoogleMapURL},
		Column{Name: "_gsi_map_url", Value: r.GSIMapURL},
		Column{Name: "_geocode_score", Value: r.GeocodeScore},
		Column{Name: "_geocode_name", Value: r.GeocodeName},
		Column{Name: "_geocode_tail", Value: r.GeocodeTail},
		Column{Name: "_geocode_source", Value: r.GeocodeSource},
		Column{Name: "_tel_e164", Value: r.TelE164},
	)
}

// Row returns r's values formatted for the normalized table.
func (r NormalizedRecord) Row() []string {
	cols := r.Columns()
	row := make([]string, len(cols))
	for i, c := range cols {
		row[i] = c.String()
	}
	return row
}

// HasError reports whether the record failed normalization or geocoding.
func (r NormalizedRecord) HasError() bool {
	return r.ErrorTag != ""
}

// HasWarning reports whether validation flagged the record.
func (r NormalizedRecord) HasWarning() bool {
	return r.WarningTag != ""
}
