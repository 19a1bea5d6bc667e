package fetcher

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

type sheetData struct {
	name string
	rows [][]string
}

func writeWorkbook(t *testing.T, sheets ...sheetData) string {
	t.Helper()
	f := xlsx.NewFile()
	for _, sd := range sheets {
		sheet, err := f.AddSheet(sd.name)
		require.NoError(t, err)
		for _, cells := range sd.rows {
			row := sheet.AddRow()
			for _, v := range cells {
				row.AddCell().SetString(v)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "listing.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestReadSheet_FirstSheetByDefault(t *testing.T) {
	path := writeWorkbook(t,
		sheetData{"店舗一覧", [][]string{
			{" shop_name ", "address", ""},
			{"", "", ""},
			{"すずや ", " 愛知県名古屋市中区栄1-1", ""},
		}},
		sheetData{"メモ", [][]string{{"ignored"}}},
	)

	rows, err := ReadSheet(path, "")
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"shop_name", "address"},
		{"すずや", "愛知県名古屋市中区栄1-1"},
	}, rows)
}

func TestReadSheet_ByName(t *testing.T) {
	path := writeWorkbook(t,
		sheetData{"2019", [][]string{{"old"}}},
		sheetData{"2020", [][]string{{"shop_name"}, {"かどや"}}},
	)

	rows, err := ReadSheet(path, "2020")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"shop_name"}, {"かどや"}}, rows)
}

func TestReadSheet_MissingName(t *testing.T) {
	path := writeWorkbook(t, sheetData{"Sheet1", [][]string{{"a"}}})

	_, err := ReadSheet(path, "Sheet9")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no sheet named "Sheet9"`)
}

func TestReadSheet_MissingFile(t *testing.T) {
	_, err := ReadSheet(filepath.Join(t.TempDir(), "none.xlsx"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xlsx: open")
}

func TestPickSheet_SkipsHidden(t *testing.T) {
	f := xlsx.NewFile()
	hidden, err := f.AddSheet("config")
	require.NoError(t, err)
	hidden.Hidden = true
	_, err = f.AddSheet("data")
	require.NoError(t, err)

	s, err := pickSheet(f, "")
	require.NoError(t, err)
	assert.Equal(t, "data", s.Name)

	s, err = pickSheet(f, "config")
	require.NoError(t, err)
	assert.Equal(t, "config", s.Name)
}

func TestPickSheet_AllHidden(t *testing.T) {
	f := xlsx.NewFile()
	s, err := f.AddSheet("only")
	require.NoError(t, err)
	s.Hidden = true

	_, err = pickSheet(f, "")
	assert.Error(t, err)
}
