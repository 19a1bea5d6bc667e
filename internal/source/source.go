// Package source discovers and reads per-region listing tables.
package source

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/goto-eat-map/csv2geojson/internal/fetcher"
	"github.com/goto-eat-map/csv2geojson/internal/model"
)

// Format is a source file type.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// requiredColumns must appear in every source header.
var requiredColumns = []string{"shop_name", "address"}

// Source is one listing table. Name doubles as the region hint.
type Source struct {
	Name   string
	Path   string
	Format Format
}

// ReadOptions controls decoding.
type ReadOptions struct {
	// Charset of CSV sources; empty means UTF-8 with optional BOM.
	Charset string
	// Sheet of XLSX sources; empty means the first sheet.
	Sheet string
}

// Discover lists the sources in dir, sorted by name. Files starting with "."
// or "_" are skipped. A non-empty targets keeps only those names and fails on
// a target with no file.
func Discover(dir string, targets []string) ([]Source, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "source: read dir %s", dir)
	}

	found := make(map[string]Source)
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || strings.HasPrefix(e.Name(), "_") {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		var format Format
		switch ext {
		case ".csv":
			format = FormatCSV
		case ".xlsx":
			format = FormatXLSX
		default:
			continue
		}
		name := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if prev, dup := found[name]; dup {
			return nil, eris.Errorf("source: %s and %s both define source %q", prev.Path, e.Name(), name)
		}
		found[name] = Source{Name: name, Path: filepath.Join(dir, e.Name()), Format: format}
	}

	var out []Source
	if len(targets) == 0 {
		for _, s := range found {
			out = append(out, s)
		}
	} else {
		for _, t := range targets {
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			s, ok := found[t]
			if !ok {
				return nil, eris.Errorf("source: target %q not found in %s", t, dir)
			}
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Read loads every row of src.
func Read(_ context.Context, src Source, opts ReadOptions) ([]model.RawRecord, error) {
	switch src.Format {
	case FormatCSV:
		f, err := os.Open(src.Path)
		if err != nil {
			return nil, eris.Wrapf(err, "source: open %s", src.Path)
		}
		defer f.Close() //nolint:errcheck
		records, err := ReadCSV(f, opts.Charset)
		return records, eris.Wrapf(err, "source: %s", src.Name)
	case FormatXLSX:
		records, err := ReadXLSX(src.Path, opts.Sheet)
		return records, eris.Wrapf(err, "source: %s", src.Name)
	default:
		return nil, eris.Errorf("source: unsupported format %q", src.Format)
	}
}

// normalizeHeader trims column names and checks the required ones.
func normalizeHeader(header []string) ([]string, error) {
	out := make([]string, len(header))
	present := make(map[string]bool, len(header))
	for i, h := range header {
		out[i] = strings.TrimSpace(h)
		present[out[i]] = true
	}
	var missing []string
	for _, col := range requiredColumns {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, eris.Errorf("source: missing required columns %s", strings.Join(missing, ", "))
	}
	return out, nil
}

// ReadXLSX loads a listing sheet. The first non-blank row is the header.
func ReadXLSX(path, sheet string) ([]model.RawRecord, error) {
	rows, err := fetcher.ReadSheet(path, sheet)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, eris.New("source: empty sheet")
	}

	header, err := normalizeHeader(rows[0])
	if err != nil {
		return nil, err
	}

	records := make([]model.RawRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		var rec model.RawRecord
		for i, v := range row {
			if i < len(header) {
				rec.Set(header[i], v)
			}
		}
		records = append(records, rec)
	}
	return records, nil
}
