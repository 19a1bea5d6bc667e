package address

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSegmenter(t *testing.T) *Segmenter {
	t.Helper()
	regions, err := NewRegions(nil)
	require.NoError(t, err)
	return NewSegmenter(regions)
}

func TestSegment(t *testing.T) {
	s := newTestSegmenter(t)

	tests := []struct {
		name    string
		address string
		region  string
		want    string
	}{
		{
			name:    "spaces and trailing building",
			address: "東京都 府中市 清水が丘１丁目８−３ 京王リトナード東府中1F",
			region:  "tokyo",
			want:    "東京都 府中市 清水が丘１丁目８-３",
		},
		{
			name:    "missing prefecture is repaired",
			address: "府中市 清水が丘１丁目８−３ 京王リトナード東府中1F",
			region:  "tokyo",
			want:    "東京都府中市 清水が丘１丁目８-３",
		},
		{
			name:    "no spaces",
			address: "東京都府中市清水が丘１丁目８−３京王リトナード東府中1F",
			region:  "tokyo",
			want:    "東京都府中市清水が丘１丁目８-３",
		},
		{
			name:    "kanji numerals with markers",
			address: "東京都府中市清水が丘一丁目八番地三号京王リトナード東府中1F",
			region:  "tokyo",
			want:    "東京都府中市清水が丘一丁目八番地三号",
		},
		{
			name:    "unnumbered lot",
			address: "東京都新宿区四谷1丁目無番地四ツ谷駅の中の自販機の前",
			region:  "tokyo",
			want:    "東京都新宿区四谷1丁目無番地",
		},
		{
			name:    "aza with hyphenated lot",
			address: "栃木県足利市上渋垂町字伊勢宮364-1 なんとかビル1F",
			region:  "tochigi",
			want:    "栃木県足利市上渋垂町字伊勢宮364-1",
		},
		{
			name:    "long vowel mark between digits",
			address: "東京都港区六本木６ー１０ー１ 六本木ヒルズ",
			region:  "tokyo",
			want:    "東京都港区六本木６-１０-１",
		},
		{
			name:    "katakana long vowel kept in words",
			address: "静岡県浜松市中区センター街1-2 ビル3F",
			region:  "shizuoka_blue",
			want:    "静岡県浜松市中区センター街1-2",
		},
		{
			name:    "leading and trailing spaces",
			address: "  大阪府大阪市北区梅田3-1-3  ",
			region:  "osaka",
			want:    "大阪府大阪市北区梅田3-1-3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Segment(tt.address, tt.region)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSegment_Empty(t *testing.T) {
	s := newTestSegmenter(t)

	got, err := s.Segment("", "tokyo")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSegment_NoLotNumber(t *testing.T) {
	s := newTestSegmenter(t)

	_, err := s.Segment("東京都新宿区", "tokyo")
	require.Error(t, err)
	assert.True(t, IsNormalizeError(err))

	var ne *NormalizeError
	require.True(t, errors.As(err, &ne))
	assert.Equal(t, "東京都新宿区", ne.Address)
}

func TestSegment_PlaceNamesWithKanjiNumerals(t *testing.T) {
	s := newTestSegmenter(t)

	// 四谷 and 三軒茶屋 contain kanji numerals but are not lot numbers.
	_, err := s.Segment("東京都世田谷区三軒茶屋", "tokyo")
	assert.True(t, IsNormalizeError(err))

	got, err := s.Segment("東京都世田谷区三軒茶屋2-11-22 テラス", "tokyo")
	require.NoError(t, err)
	assert.Equal(t, "東京都世田谷区三軒茶屋2-11-22", got)
}

func TestSegment_UnknownRegion(t *testing.T) {
	s := newTestSegmenter(t)

	_, err := s.Segment("府中市清水が丘1-8-3", "atlantis")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownRegion)
	assert.False(t, IsNormalizeError(err))
}

func TestSegment_Idempotent(t *testing.T) {
	s := newTestSegmenter(t)

	inputs := []string{
		"府中市 清水が丘１丁目８−３ 京王リトナード東府中1F",
		"東京都新宿区四谷1丁目無番地四ツ谷駅の中の自販機の前",
		"東京都府中市清水が丘一丁目八番地三号",
	}
	for _, in := range inputs {
		once, err := s.Segment(in, "tokyo")
		require.NoError(t, err)
		twice, err := s.Segment(once, "tokyo")
		require.NoError(t, err)
		assert.Equal(t, once, twice, "input %q", in)
	}
}

func TestSplit_PrefixAndLotAreContiguous(t *testing.T) {
	in := "東京都府中市清水が丘１丁目８-３京王リトナード東府中1F"
	seg, err := Split(in)
	require.NoError(t, err)

	assert.Equal(t, "東京都府中市清水が丘", seg.Prefix)
	assert.Equal(t, "１丁目８-３", seg.Lot)
	assert.True(t, len(seg.String()) < len(in))
	assert.Equal(t, in[:len(seg.String())], seg.String())
}

func TestFoldHyphens(t *testing.T) {
	assert.Equal(t, "1-2-3", FoldHyphens("1‐2−3"))
	assert.Equal(t, "1-2", FoldHyphens("1―2"))
	assert.Equal(t, "１-２", FoldHyphens("１ー２"))
	assert.Equal(t, "一-二", FoldHyphens("一ー二"))
	assert.Equal(t, "センター", FoldHyphens("センター"))
	assert.Equal(t, "ー1", FoldHyphens("ー1"))
	assert.Equal(t, "1丁目-8-3", FoldHyphens("1丁目ー8ー3"))
	assert.Equal(t, "12番-3号", FoldHyphens("12番ー3号"))
	assert.Equal(t, "3番地-1", FoldHyphens("3番地ｰ1"))
	assert.Equal(t, "1丁目ーセンター", FoldHyphens("1丁目ーセンター"))
}

func TestSegment_LongVowelAfterLotMarker(t *testing.T) {
	s := newTestSegmenter(t)

	tests := []struct {
		address string
		want    string
	}{
		{"東京都府中市清水が丘1丁目ー8ー3 ビル", "東京都府中市清水が丘1丁目-8-3"},
		{"東京都港区芝12番ー3号", "東京都港区芝12番-3号"},
	}
	for _, tt := range tests {
		got, err := s.Segment(tt.address, "tokyo")
		require.NoError(t, err, tt.address)
		assert.Equal(t, tt.want, got)
	}
}

func TestQualify(t *testing.T) {
	s := newTestSegmenter(t)

	got, err := s.Qualify(" 府中市清水が丘1-8-4 ", "tokyo")
	require.NoError(t, err)
	assert.Equal(t, "東京都府中市清水が丘1-8-4", got)

	got, err = s.Qualify("東京都府中市 ビルのみ", "tokyo")
	require.NoError(t, err)
	assert.Equal(t, "東京都府中市 ビルのみ", got)

	got, err = s.Qualify("  ", "tokyo")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = s.Qualify("府中市", "atlantis")
	assert.ErrorIs(t, err, ErrUnknownRegion)
}
