package fetcher

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// CSVOptions configures EachRow.
type CSVOptions struct {
	Charset    string // source charset, default UTF-8
	Delimiter  rune   // default ','
	LazyQuotes bool
	TrimSpace  bool
	SkipHeader bool
}

// EachRow decodes r and calls fn with every record and its 1-based line
// number. A non-nil error from fn stops the scan and is returned as is.
// The record slice is reused between calls.
func EachRow(ctx context.Context, r io.Reader, opts CSVOptions, fn func(line int, row []string) error) error {
	decoded, err := NewDecodingReader(r, opts.Charset)
	if err != nil {
		return err
	}

	reader := csv.NewReader(decoded)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	reader.LazyQuotes = opts.LazyQuotes
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	for first := true; ; first = false {
		if err := ctx.Err(); err != nil {
			return err
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			// csv.ParseError carries the line number.
			return eris.Wrap(err, "csv: read")
		}
		line, _ := reader.FieldPos(0)
		if first && opts.SkipHeader {
			continue
		}
		if opts.TrimSpace {
			for i := range record {
				record[i] = strings.TrimSpace(record[i])
			}
		}
		if err := fn(line, record); err != nil {
			return err
		}
	}
}
