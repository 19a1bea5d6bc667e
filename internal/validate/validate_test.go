package validate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goto-eat-map/csv2geojson/internal/model"
	"github.com/goto-eat-map/csv2geojson/internal/postal"
)

func cleanRecord() model.NormalizedRecord {
	return model.NormalizedRecord{
		RawRecord: model.RawRecord{
			ShopName:     "幸楽苑 足利店",
			Address:      "栃木県足利市上渋垂町字伊勢宮364-1",
			Tel:          "0284-70-5620",
			ZipCode:      "326-0335",
			OfficialPage: "https://www.kourakuen.co.jp/",
			OpeningHours: "11:00〜23:00",
		},
		NormalizedAddress: "栃木県足利市上渋垂町字伊勢宮364-1",
	}
}

func testTable() *postal.Table {
	return postal.NewTable([]postal.Entry{
		{Zip: "3260335", Prefecture: "栃木県"},
		{Zip: "2860000", Prefecture: "千葉県"},
	})
}

func kinds(ws []Warning) []Kind {
	out := make([]Kind, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Kind)
	}
	return out
}

func TestValidate_Clean(t *testing.T) {
	ws, err := New(testTable()).Validate(context.Background(), cleanRecord())
	require.NoError(t, err)
	assert.Empty(t, ws)
}

func TestValidate_SingleChecks(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *model.NormalizedRecord)
		want   Kind
		field  string
	}{
		{
			name:   "official page not a url",
			mutate: func(r *model.NormalizedRecord) { r.OfficialPage = "www.kourakuen" },
			want:   InvalidURL,
			field:  "official_page",
		},
		{
			name:   "detail page ftp scheme",
			mutate: func(r *model.NormalizedRecord) { r.DetailPage = "ftp://example.com/shop" },
			want:   InvalidURL,
			field:  "detail_page",
		},
		{
			name:   "tel too short",
			mutate: func(r *model.NormalizedRecord) { r.Tel = "0284-70-562" },
			want:   InvalidTel,
			field:  "tel",
		},
		{
			name:   "tel without leading zero",
			mutate: func(r *model.NormalizedRecord) { r.Tel = "284-70-56201" },
			want:   InvalidTel,
			field:  "tel",
		},
		{
			name:   "zip six digits",
			mutate: func(r *model.NormalizedRecord) { r.ZipCode = "326-033" },
			want:   InvalidZip,
			field:  "zip_code",
		},
		{
			name:   "markup in opening hours",
			mutate: func(r *model.NormalizedRecord) { r.OpeningHours = "11:00〜<br>23:00" },
			want:   HTMLMarkup,
			field:  "opening_hours",
		},
		{
			name: "zip region mismatch",
			mutate: func(r *model.NormalizedRecord) {
				r.ZipCode = "286-0000"
			},
			want:  ZipRegionMismatch,
			field: "zip_code",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := cleanRecord()
			tt.mutate(&rec)
			ws, err := New(testTable()).Validate(context.Background(), rec)
			require.NoError(t, err)
			require.Len(t, ws, 1)
			assert.Equal(t, tt.want, ws[0].Kind)
			assert.Equal(t, tt.field, ws[0].Field)
			assert.NotEmpty(t, ws[0].Detail)
		})
	}
}

func TestValidate_SeparatorsAndWidthAccepted(t *testing.T) {
	rec := cleanRecord()
	rec.Tel = "０２８４ー７０ー５６２０"
	rec.ZipCode = "３２６－０３３５"

	ws, err := New(testTable()).Validate(context.Background(), rec)
	require.NoError(t, err)
	assert.Empty(t, ws)
}

func TestValidate_MultipleWarningsInCheckOrder(t *testing.T) {
	rec := cleanRecord()
	rec.OfficialPage = "not a url"
	rec.DetailPage = "also bad"
	rec.Tel = "12345"
	rec.ZipCode = "1"
	rec.ShopName = "<b>幸楽苑</b>"
	rec.AreaName = "<!-- x -->足利"

	ws, err := New(testTable()).Validate(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, []Kind{InvalidURL, InvalidTel, InvalidZip, HTMLMarkup}, kinds(ws))
	assert.Contains(t, ws[0].Detail, "official_page, detail_page")
	assert.Equal(t, "shop_name", ws[3].Field)
	assert.Contains(t, ws[3].Detail, "area_name")
}

func TestValidate_UnknownZipIsNotAWarning(t *testing.T) {
	rec := cleanRecord()
	rec.ZipCode = "100-8799"

	ws, err := New(testTable()).Validate(context.Background(), rec)
	require.NoError(t, err)
	assert.Empty(t, ws)
}

func TestValidate_NoLookupSkipsRegionCheck(t *testing.T) {
	rec := cleanRecord()
	rec.ZipCode = "286-0000"

	ws, err := New(nil).Validate(context.Background(), rec)
	require.NoError(t, err)
	assert.Empty(t, ws)
}

func TestValidate_EmptyNormalizedAddressSkipsRegionCheck(t *testing.T) {
	rec := cleanRecord()
	rec.ZipCode = "286-0000"
	rec.NormalizedAddress = ""

	ws, err := New(testTable()).Validate(context.Background(), rec)
	require.NoError(t, err)
	assert.Empty(t, ws)
}

type brokenLookup struct{}

func (brokenLookup) RegionForZip(context.Context, string) (string, bool, error) {
	return "", false, errors.New("disk I/O error")
}

func TestValidate_LookupFailureIsAnError(t *testing.T) {
	_, err := New(brokenLookup{}).Validate(context.Background(), cleanRecord())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk I/O error")
}
