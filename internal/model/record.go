// Package model defines the record types shared by the pipeline stages.
package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FeedFields lists the source table columns in output order.
var FeedFields = []string{
	"shop_name",
	"address",
	"tel",
	"genre_name",
	"zip_code",
	"official_page",
	"opening_hours",
	"closing_day",
	"area_name",
	"detail_page",
}

// RawRecord is one row of a source listing table. Every value is kept as
// text; absent values are empty strings.
type RawRecord struct {
	ShopName     string `csv:"shop_name" json:"shop_name"`
	Address      string `csv:"address" json:"address"`
	Tel          string `csv:"tel" json:"tel"`
	GenreName    string `csv:"genre_name" json:"genre_name"`
	ZipCode      string `csv:"zip_code" json:"zip_code"`
	OfficialPage string `csv:"official_page" json:"official_page"`
	OpeningHours string `csv:"opening_hours" json:"opening_hours"`
	ClosingDay   string `csv:"closing_day" json:"closing_day"`
	AreaName     string `csv:"area_name" json:"area_name"`
	DetailPage   string `csv:"detail_page" json:"detail_page"`
	ProvidedLat  string `csv:"provided_lat,omitempty" json:"provided_lat,omitempty"`
	ProvidedLng  string `csv:"provided_lng,omitempty" json:"provided_lng,omitempty"`
}

// RecordKey identifies a shop for duplicate detection. A shop name alone is
// not unique (chains) and neither is an address (shopping malls).
type RecordKey struct {
	ShopName string
	Address  string
}

// Key returns the duplicate-detection identity of r.
func (r RawRecord) Key() RecordKey {
	return RecordKey{ShopName: r.ShopName, Address: r.Address}
}

// Values returns r's feed columns in FeedFields order.
func (r RawRecord) Values() []string {
	return []string{
		r.ShopName,
		r.Address,
		r.Tel,
		r.GenreName,
		r.ZipCode,
		r.OfficialPage,
		r.OpeningHours,
		r.ClosingDay,
		r.AreaName,
		r.DetailPage,
	}
}

// Set assigns value to the column named col and reports whether col is a
// known column.
func (r *RawRecord) Set(col, value string) bool {
	switch strings.TrimSpace(col) {
	case "shop_name":
		r.ShopName = value
	case "address":
		r.Address = value
	case "tel":
		r.Tel = value
	case "genre_name":
		r.GenreName = value
	case "zip_code":
		r.ZipCode = value
	case "official_page":
		r.OfficialPage = value
	case "opening_hours":
		r.OpeningHours = value
	case "closing_day":
		r.ClosingDay = value
	case "area_name":
		r.AreaName = value
	case "detail_page":
		r.DetailPage = value
	case "provided_lat":
		r.ProvidedLat = value
	case "provided_lng":
		r.ProvidedLng = value
	default:
		return false
	}
	return true
}

// HasProvidedCoordinates reports whether the source supplied both coordinates.
func (r RawRecord) HasProvidedCoordinates() bool {
	return strings.TrimSpace(r.ProvidedLat) != "" && strings.TrimSpace(r.ProvidedLng) != ""
}

// ProvidedCoordinates parses the source-supplied coordinates. Values that are
// not finite or fall outside WGS84 bounds are rejected.
func (r RawRecord) ProvidedCoordinates() (lat, lng float64, err error) {
	lat, err = parseCoordinate("lat", r.ProvidedLat, 90)
	if err != nil {
		return 0, 0, err
	}
	lng, err = parseCoordinate("lng", r.ProvidedLng, 180)
	if err != nil {
		return 0, 0, err
	}
	return lat, lng, nil
}

func parseCoordinate(name, raw string, limit float64) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s %q is not finite", name, raw)
	}
	if v < -limit || v > limit {
		return 0, fmt.Errorf("%s %v is outside [-%v, %v]", name, v, limit, limit)
	}
	return v, nil
}
