package fetcher

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// ReadSheet returns the cell text of one worksheet, trimmed, with blank rows
// and trailing empty cells removed. An empty sheet name selects the first
// visible sheet.
func ReadSheet(path, sheet string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "xlsx: open %s", path)
	}

	s, err := pickSheet(f, sheet)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	for _, row := range s.Rows {
		if row == nil {
			continue
		}
		if cells := rowText(row); len(cells) > 0 {
			rows = append(rows, cells)
		}
	}
	return rows, nil
}

func pickSheet(f *xlsx.File, name string) (*xlsx.Sheet, error) {
	if name != "" {
		s, ok := f.Sheet[name]
		if !ok {
			return nil, eris.Errorf("xlsx: no sheet named %q", name)
		}
		return s, nil
	}
	for _, s := range f.Sheets {
		if !s.Hidden {
			return s, nil
		}
	}
	return nil, eris.New("xlsx: workbook has no visible sheet")
}

// rowText returns nil for a row without any text.
func rowText(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	last := -1
	for i, c := range row.Cells {
		cells[i] = strings.TrimSpace(c.String())
		if cells[i] != "" {
			last = i
		}
	}
	return cells[:last+1:last+1]
}
