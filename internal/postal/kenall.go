package postal

import (
	"context"
	"io"

	"github.com/rotisserie/eris"

	"github.com/goto-eat-map/csv2geojson/internal/fetcher"
)

// KenAllCharset is the encoding Japan Post publishes KEN_ALL.CSV in.
const KenAllCharset = "shift_jis"

// KEN_ALL.CSV column positions.
const (
	colZip        = 2
	colPrefecture = 6
	colCity       = 7
	colTown       = 8
)

// Entry is one row of the postal code table.
type Entry struct {
	Zip        string
	Prefecture string
	City       string
	Town       string
}

// ReadKenAll parses Japan Post's KEN_ALL.CSV. Rows with a malformed postal
// code are skipped. Duplicate codes are kept in file order.
func ReadKenAll(ctx context.Context, r io.Reader, charset string) ([]Entry, error) {
	if charset == "" {
		charset = KenAllCharset
	}

	var entries []Entry
	err := fetcher.EachRow(ctx, r, fetcher.CSVOptions{
		Charset:    charset,
		LazyQuotes: true,
		TrimSpace:  true,
	}, func(_ int, row []string) error {
		if len(row) <= colTown {
			return nil
		}
		zip := NormalizeZip(row[colZip])
		if !validZip(zip) {
			return nil
		}
		entries = append(entries, Entry{
			Zip:        zip,
			Prefecture: row[colPrefecture],
			City:       row[colCity],
			Town:       row[colTown],
		})
		return nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "postal: read KEN_ALL")
	}

	return entries, nil
}

func validZip(zip string) bool {
	if len(zip) != 7 {
		return false
	}
	for _, c := range zip {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
