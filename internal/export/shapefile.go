package export

import (
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"

	"github.com/goto-eat-map/csv2geojson/internal/model"
)

// dBASE caps character fields at 254 bytes and field names at 10.
const maxCharField = 254

type shpColumn struct {
	field shp.Field
	value func(r model.NormalizedRecord) any
}

var shpColumns = []shpColumn{
	{shp.StringField("shop_name", maxCharField), func(r model.NormalizedRecord) any { return r.ShopName }},
	{shp.StringField("address", maxCharField), func(r model.NormalizedRecord) any { return r.Address }},
	{shp.StringField("tel", 32), func(r model.NormalizedRecord) any { return r.Tel }},
	{shp.StringField("genre_name", maxCharField), func(r model.NormalizedRecord) any { return r.GenreName }},
	{shp.StringField("zip_code", 16), func(r model.NormalizedRecord) any { return r.ZipCode }},
	{shp.StringField("official", maxCharField), func(r model.NormalizedRecord) any { return r.OfficialPage }},
	{shp.StringField("hours", maxCharField), func(r model.NormalizedRecord) any { return r.OpeningHours }},
	{shp.StringField("closing", maxCharField), func(r model.NormalizedRecord) any { return r.ClosingDay }},
	{shp.StringField("area_name", maxCharField), func(r model.NormalizedRecord) any { return r.AreaName }},
	{shp.StringField("detail", maxCharField), func(r model.NormalizedRecord) any { return r.DetailPage }},
	{shp.StringField("norm_addr", maxCharField), func(r model.NormalizedRecord) any { return r.NormalizedAddress }},
	{shp.NumberField("genre_code", 4), func(r model.NormalizedRecord) any { return int(r.GenreCode) }},
	{shp.StringField("gmap_url", maxCharField), func(r model.NormalizedRecord) any { return r.GoogleMapURL }},
}

// ShapefileFieldNames returns the attribute names in column order.
func ShapefileFieldNames() []string {
	names := make([]string, len(shpColumns))
	for i, c := range shpColumns {
		names[i] = c.field.String()
	}
	return names
}

// WriteShapefile writes records as a point shapefile at base (no extension)
// and returns the file names it produced. Text attributes are UTF-8, which
// the .cpg sidecar declares.
func WriteShapefile(base string, records []model.NormalizedRecord) ([]string, error) {
	w, err := shp.Create(base+".shp", shp.POINT)
	if err != nil {
		return nil, eris.Wrapf(err, "export: create %s.shp", base)
	}

	fields := make([]shp.Field, len(shpColumns))
	for i, c := range shpColumns {
		fields[i] = c.field
	}
	if err := w.SetFields(fields); err != nil {
		w.Close()
		return nil, eris.Wrap(err, "export: set shapefile fields")
	}

	var writeErr error
	for _, r := range records {
		row := int(w.Write(&shp.Point{X: r.Lng, Y: r.Lat}))
		for i, c := range shpColumns {
			if err := w.WriteAttribute(row, i, dbfValue(c.field, c.value(r))); err != nil {
				writeErr = eris.Wrapf(err, "export: shapefile row %d field %s", r.Seq, c.field.String())
				break
			}
		}
		if writeErr != nil {
			break
		}
	}
	w.Close()
	if writeErr != nil {
		return nil, writeErr
	}

	// go-shp names the table "<base>dbf"; readers expect "<base>.dbf".
	if _, err := os.Stat(base + "dbf"); err == nil {
		if err := os.Rename(base+"dbf", base+".dbf"); err != nil {
			return nil, eris.Wrap(err, "export: rename dbf")
		}
	}
	if err := os.WriteFile(base+".cpg", []byte("UTF-8"), 0o644); err != nil {
		return nil, eris.Wrap(err, "export: write cpg")
	}

	name := ShapefileBase
	return []string{name + ".shp", name + ".shx", name + ".dbf", name + ".cpg"}, nil
}

// dbfValue formats v to fill field. Text is left aligned and numbers right
// aligned, both space padded, since go-shp leaves unwritten bytes as NUL.
func dbfValue(field shp.Field, v any) string {
	size := int(field.Size)
	switch x := v.(type) {
	case int:
		s := strconv.Itoa(x)
		return strings.Repeat(" ", max(size-len(s), 0)) + s
	case string:
		s := truncateUTF8(x, size)
		return s + strings.Repeat(" ", size-len(s))
	default:
		return strings.Repeat(" ", size)
	}
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
