package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goto-eat-map/csv2geojson/internal/genre"
	"github.com/goto-eat-map/csv2geojson/internal/model"
	"github.com/goto-eat-map/csv2geojson/internal/pipeline"
)

func normalized(seq int, name string, code genre.Code) model.NormalizedRecord {
	return model.NormalizedRecord{
		RawRecord: model.RawRecord{
			ShopName:     name,
			Address:      "東京都調布市布田1-2-3",
			Tel:          "03-1234-5678",
			GenreName:    "居酒屋",
			ZipCode:      "182-0024",
			OfficialPage: "https://example.com/?a=1&b=<2>",
		},
		Seq:               seq,
		GenreCode:         code,
		NormalizedAddress: "東京都調布市布田1-2-3",
		Lat:               35.652345,
		Lng:               139.541234,
		GoogleMapURL:      "https://www.google.com/maps/search/?q=x",
		GSIMapURL:         "https://maps.gsi.go.jp/#17/35.652345/139.541234/",
		GeocodeScore:      5,
		GeocodeSource:     "dams",
	}
}

func testResult() *pipeline.Result {
	warn := normalized(1, "鳥よし", genre.Izakaya)
	warn.WarningTag = "invalid_tel"
	warn.WarningDetails = []string{"invalid_tel: 03-12"}
	failed := normalized(3, "謎の店", genre.Other)
	failed.ErrorTag = "normalize_error"
	failed.ErrorDetail = "no numbered lot"
	return &pipeline.Result{
		RunID:      "run-1",
		Source:     "tokyo",
		Region:     "tokyo",
		Input:      5,
		StartedAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		FinishedAt: time.Date(2026, 1, 2, 3, 4, 6, 0, time.UTC),
		Duplicated: []pipeline.Duplicate{{Seq: 0, Kept: false, Record: model.RawRecord{ShopName: "珈琲館"}}, {Seq: 4, Kept: true, Record: model.RawRecord{ShopName: "珈琲館"}}},
		Clean:      []model.NormalizedRecord{normalized(2, "珈琲館", genre.Cafe), normalized(4, "そば処", genre.Noodle)},
		Warnings:   []model.NormalizedRecord{warn},
		Errors:     []model.NormalizedRecord{failed},
		UnknownGenres: map[string]int{
			"謎のジャンル": 1,
			"ガストロパブ": 3,
			"ビストロ居酒": 1,
		},
	}
}

func readFeatureCollection(t *testing.T, path string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var fc map[string]any
	require.NoError(t, json.Unmarshal(data, &fc))
	return fc
}

func TestWrite_Files(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "tokyo")
	m, err := NewWriter(Options{Dir: dir, Debug: true}).Write(testResult())
	require.NoError(t, err)

	assert.Equal(t, dir, m.Dir)
	assert.Equal(t, []string{
		NormalizedCSV,
		IssuesJSON,
		AllGeoJSON,
		filepath.Join(DebugDir, AllGeoJSON),
		"genre1.geojson",
		filepath.Join(DebugDir, "genre1.geojson"),
		"genre5.geojson",
		filepath.Join(DebugDir, "genre5.geojson"),
		"genre9.geojson",
		filepath.Join(DebugDir, "genre9.geojson"),
	}, m.Files)
	for _, name := range m.Files {
		assert.FileExists(t, filepath.Join(dir, name))
	}
	assert.NoFileExists(t, filepath.Join(dir, "genre10.geojson"), "error records are not published")
}

func TestWrite_NormalizedCSV(t *testing.T) {
	dir := t.TempDir()
	_, err := NewWriter(Options{Dir: dir}).Write(testResult())
	require.NoError(t, err)

	f, err := os.Open(filepath.Join(dir, NormalizedCSV))
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 4)
	assert.Equal(t, model.NormalizedFields, rows[0])
	assert.Equal(t, "鳥よし", rows[1][0])
	assert.Equal(t, "珈琲館", rows[2][0])
	assert.Equal(t, "そば処", rows[3][0])

	idx := func(name string) int {
		for i, f := range rows[0] {
			if f == name {
				return i
			}
		}
		t.Fatalf("column %s missing", name)
		return -1
	}
	assert.Equal(t, "35.652345", rows[1][idx("lat")])
	assert.Equal(t, "1", rows[1][idx("genre_code")])
	assert.Equal(t, "dams", rows[1][idx("_geocode_source")])
}

func TestWrite_ProductionGeoJSON(t *testing.T) {
	dir := t.TempDir()
	_, err := NewWriter(Options{Dir: dir}).Write(testResult())
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, AllGeoJSON))
	require.NoError(t, err)
	text := string(data)
	assert.Equal(t, 1, strings.Count(text, "\n"), "minified output is one line")
	assert.Contains(t, text, "珈琲館", "non-ASCII kept literal")
	assert.Contains(t, text, "a=1&b=<2>", "no HTML escaping")
	assert.NotContains(t, text, `"_gsi_map_url"`)
	assert.NoDirExists(t, filepath.Join(dir, DebugDir))

	fc := readFeatureCollection(t, filepath.Join(dir, AllGeoJSON))
	assert.Equal(t, "FeatureCollection", fc["type"])
	features := fc["features"].([]any)
	require.Len(t, features, 3)

	first := features[0].(map[string]any)
	geometry := first["geometry"].(map[string]any)
	assert.Equal(t, "Point", geometry["type"])
	assert.Equal(t, []any{139.541234, 35.652345}, geometry["coordinates"])

	props := first["properties"].(map[string]any)
	assert.Equal(t, "鳥よし", props["shop_name"])
	assert.EqualValues(t, 1, props["genre_code"])
	assert.NotContains(t, props, "lat")
	assert.NotContains(t, props, "lng")
	assert.NotContains(t, props, "_warning")
}

func TestWrite_DebugGeoJSON(t *testing.T) {
	dir := t.TempDir()
	_, err := NewWriter(Options{Dir: dir, Debug: true}).Write(testResult())
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, DebugDir, "genre9.geojson"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n    \"features\": [")

	fc := readFeatureCollection(t, filepath.Join(dir, DebugDir, "genre9.geojson"))
	features := fc["features"].([]any)
	require.Len(t, features, 1)
	props := features[0].(map[string]any)["properties"].(map[string]any)
	assert.Equal(t, "珈琲館", props["shop_name"])
	assert.EqualValues(t, 5, props["_geocode_score"])
	assert.Equal(t, "https://maps.gsi.go.jp/#17/35.652345/139.541234/", props["_gsi_map_url"])
}

func TestProperties_KeepColumnOrder(t *testing.T) {
	f, err := NewFeature(normalized(0, "店", genre.Cafe), true)
	require.NoError(t, err)
	data, err := json.Marshal(f.Properties)
	require.NoError(t, err)

	text := string(data)
	last := -1
	for _, name := range model.NormalizedFields {
		if name == "lat" || name == "lng" {
			continue
		}
		i := strings.Index(text, `"`+name+`":`)
		require.GreaterOrEqual(t, i, 0, name)
		assert.Greater(t, i, last, "%s out of order", name)
		last = i
	}
}

func TestWrite_IssuesReport(t *testing.T) {
	dir := t.TempDir()
	_, err := NewWriter(Options{Dir: dir}).Write(testResult())
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, IssuesJSON))
	require.NoError(t, err)
	var rep IssuesReport
	require.NoError(t, json.Unmarshal(data, &rep))

	assert.Equal(t, "run-1", rep.RunID)
	assert.Equal(t, 5, rep.Counts.Input)
	assert.Equal(t, 2, rep.Counts.Clean)
	require.Len(t, rep.Duplicated, 2)
	assert.True(t, rep.Duplicated[1].Kept)
	require.Len(t, rep.Errors, 1)
	assert.Equal(t, 3, rep.Errors[0].Seq)
	assert.Equal(t, "normalize_error", rep.Errors[0].ErrorTag)
	require.Len(t, rep.Warnings, 1)
	assert.Equal(t, []string{"invalid_tel: 03-12"}, rep.Warnings[0].WarningDetails)
	assert.Equal(t, []GenreCount{
		{Label: "ガストロパブ", Count: 3},
		{Label: "ビストロ居酒", Count: 1},
		{Label: "謎のジャンル", Count: 1},
	}, rep.UnknownGenres)

	assert.Contains(t, string(data), `"_error": "normalize_error"`)
}

func TestWrite_CleanBatchHasNoIssues(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, IssuesJSON)
	require.NoError(t, os.WriteFile(stale, []byte("{}"), 0o644))

	res := &pipeline.Result{
		RunID:  "run-2",
		Source: "tokyo",
		Clean:  []model.NormalizedRecord{normalized(0, "珈琲館", genre.Cafe)},
		Input:  1,
		Region: "tokyo",
	}
	m, err := NewWriter(Options{Dir: dir}).Write(res)
	require.NoError(t, err)

	assert.NotContains(t, m.Files, IssuesJSON)
	assert.NoFileExists(t, stale)
}

func TestWrite_Cleanup(t *testing.T) {
	dir := t.TempDir()
	leftover := filepath.Join(dir, "genre3.geojson")
	require.NoError(t, os.WriteFile(leftover, []byte("{}"), 0o644))

	_, err := NewWriter(Options{Dir: dir}).Write(testResult())
	require.NoError(t, err)
	assert.FileExists(t, leftover)

	_, err = NewWriter(Options{Dir: dir, Cleanup: true}).Write(testResult())
	require.NoError(t, err)
	assert.NoFileExists(t, leftover)
	assert.FileExists(t, filepath.Join(dir, AllGeoJSON))
}

func TestWrite_RefusesDangerousDir(t *testing.T) {
	for _, dir := range []string{"", ".", "/"} {
		_, err := NewWriter(Options{Dir: dir, Cleanup: true}).Write(testResult())
		assert.Error(t, err, dir)
	}
}

func TestWrite_Shapefile(t *testing.T) {
	dir := t.TempDir()
	m, err := NewWriter(Options{Dir: dir, Shapefile: true}).Write(testResult())
	require.NoError(t, err)
	assert.Subset(t, m.Files, []string{"all.shp", "all.shx", "all.dbf", "all.cpg"})
	assert.NoFileExists(t, filepath.Join(dir, "alldbf"))

	cpg, err := os.ReadFile(filepath.Join(dir, "all.cpg"))
	require.NoError(t, err)
	assert.Equal(t, "UTF-8", string(cpg))

	r, err := shp.Open(filepath.Join(dir, "all.shp"))
	require.NoError(t, err)
	defer r.Close()

	var names []string
	for _, f := range r.Fields() {
		names = append(names, f.String())
	}
	assert.Equal(t, ShapefileFieldNames(), names)

	var shops []string
	for r.Next() {
		n, s := r.Shape()
		p, ok := s.(*shp.Point)
		require.True(t, ok)
		assert.InDelta(t, 139.541234, p.X, 1e-9)
		assert.InDelta(t, 35.652345, p.Y, 1e-9)
		shops = append(shops, r.ReadAttribute(n, 0))
		assert.NotEmpty(t, r.ReadAttribute(n, 11))
	}
	require.NoError(t, r.Err())
	assert.Equal(t, []string{"鳥よし", "珈琲館", "そば処"}, shops)
}

func TestShapefileFieldNames_FitDBase(t *testing.T) {
	for _, name := range ShapefileFieldNames() {
		assert.LessOrEqual(t, len(name), 10, name)
	}
}

func TestTruncateUTF8(t *testing.T) {
	assert.Equal(t, "abc", truncateUTF8("abc", 10))
	assert.Equal(t, "東", truncateUTF8("東京", 4))
	assert.Equal(t, "", truncateUTF8("東京", 2))
}

func TestDBFValue(t *testing.T) {
	assert.Equal(t, "  10", dbfValue(shp.NumberField("genre_code", 4), 10))
	assert.Equal(t, "ab  ", dbfValue(shp.StringField("x", 4), "ab"))
}
