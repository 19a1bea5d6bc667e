package geocode

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGSIProvider_Match(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/address-search/AddressSearch", r.URL.Path)
		assert.Equal(t, "東京都府中市清水が丘一丁目8-3", r.URL.Query().Get("q"))
		_, _ = io.WriteString(w, `[{
			"geometry": {"coordinates": [139.4869, 35.6651], "type": "Point"},
			"type": "Feature",
			"properties": {"addressCode": "", "title": "東京都府中市清水が丘一丁目"}
		}]`)
	}))
	defer srv.Close()

	p := NewGSIProvider("", testOptions(newRewriteClient(srv.URL, "https://msearch.gsi.go.jp"))...)
	r, err := p.Geocode(context.Background(), "東京都府中市清水が丘一丁目8-3")
	require.NoError(t, err)
	assert.InDelta(t, 35.6651, r.Latitude, 1e-9)
	assert.InDelta(t, 139.4869, r.Longitude, 1e-9)
	assert.Equal(t, "東京都府中市清水が丘一丁目", r.Matched)
	assert.Equal(t, "8-3", r.Tail)
	assert.Equal(t, 4, r.Score)
	assert.Equal(t, "gsi", r.Source)
}

func TestGSIProvider_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	p := NewGSIProvider(srv.URL, testOptions(srv.Client())...)
	_, err := p.Geocode(context.Background(), "存在しない住所")
	require.ErrorIs(t, err, ErrNoMatch)
}

func TestGSIScore(t *testing.T) {
	tests := []struct {
		name       string
		address    string
		title      string
		candidates int
		wantTail   string
		wantScore  int
	}{
		{"exact", "東京都新宿区四谷一丁目", "東京都新宿区四谷一丁目", 1, "", 5},
		{"lot tail", "東京都新宿区四谷1丁目無番地", "東京都新宿区四谷", 1, "1丁目無番地", 3},
		{"numeric tail", "東京都府中市清水が丘１丁目８−３", "東京都府中市清水が丘一丁目", 1, "東京都府中市清水が丘1丁目8−3", 2},
		{"digits only tail", "栃木県足利市上渋垂町364-1", "栃木県足利市上渋垂町", 1, "364-1", 4},
		{"place name tail", "栃木県足利市上渋垂町字伊勢宮364-1", "栃木県足利市上渋垂町", 1, "字伊勢宮364-1", 3},
		{"ambiguous", "栃木県足利市上渋垂町364-1", "栃木県足利市上渋垂町", 3, "364-1", 3},
		{"never below one", "どこか", "別の場所", 5, "どこか", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tail, score := gsiScore(tt.address, tt.title, tt.candidates)
			assert.Equal(t, tt.wantTail, tail)
			assert.Equal(t, tt.wantScore, score)
		})
	}
}
