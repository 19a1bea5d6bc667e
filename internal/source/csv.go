package source

import (
	"encoding/csv"
	"errors"
	"io"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/goto-eat-map/csv2geojson/internal/fetcher"
	"github.com/goto-eat-map/csv2geojson/internal/model"
)

// ReadCSV decodes a listing table. The header row names the columns; unknown
// columns are ignored and absent optional columns stay empty.
func ReadCSV(r io.Reader, charset string) ([]model.RawRecord, error) {
	decoded, err := fetcher.NewDecodingReader(r, charset)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(decoded)
	cr.LazyQuotes = true

	raw, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, eris.New("source: empty csv")
	}
	if err != nil {
		return nil, eris.Wrap(err, "source: read header")
	}
	header, err := normalizeHeader(raw)
	if err != nil {
		return nil, err
	}

	dec, err := csvutil.NewDecoder(cr, header...)
	if err != nil {
		return nil, eris.Wrap(err, "source: csv decoder")
	}

	var records []model.RawRecord
	for {
		var rec model.RawRecord
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "source: decode row %d", len(records)+1)
		}
		records = append(records, rec)
	}
	return records, nil
}
