// Package export writes a pipeline result to disk: the normalized table,
// GeoJSON per genre, an issues report and optionally a shapefile.
package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/goto-eat-map/csv2geojson/internal/genre"
	"github.com/goto-eat-map/csv2geojson/internal/model"
	"github.com/goto-eat-map/csv2geojson/internal/pipeline"
)

// Output file names.
const (
	NormalizedCSV = "normalized.csv"
	IssuesJSON    = "_issues.json"
	AllGeoJSON    = "all.geojson"
	DebugDir      = "_debug"
	ShapefileBase = "all"
)

// Options controls what Write produces.
type Options struct {
	// Dir receives the files of one source.
	Dir string
	// Debug also writes pretty GeoJSON with internal columns under _debug/.
	Debug bool
	// Shapefile also writes all.shp/.shx/.dbf/.cpg.
	Shapefile bool
	// Cleanup removes Dir before writing.
	Cleanup bool
}

// Manifest lists the files Write produced, relative to Dir.
type Manifest struct {
	Dir   string   `json:"dir"`
	Files []string `json:"files"`
}

// Writer writes pipeline results.
type Writer struct {
	opts Options
}

// NewWriter creates a Writer.
func NewWriter(opts Options) *Writer {
	return &Writer{opts: opts}
}

// GenreFileName returns the GeoJSON file name for code.
func GenreFileName(code genre.Code) string {
	return "genre" + genreSuffix(code) + ".geojson"
}

// Write produces every output for res.
func (w *Writer) Write(res *pipeline.Result) (*Manifest, error) {
	dir := filepath.Clean(w.opts.Dir)
	if w.opts.Dir == "" || dir == "." || dir == string(filepath.Separator) {
		return nil, eris.Errorf("export: refusing output dir %q", w.opts.Dir)
	}
	log := zap.L().With(zap.String("source", res.Source), zap.String("dir", dir))

	if w.opts.Cleanup {
		if err := os.RemoveAll(dir); err != nil {
			return nil, eris.Wrapf(err, "export: clean %s", dir)
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "export: mkdir %s", dir)
	}
	if w.opts.Debug {
		if err := os.MkdirAll(filepath.Join(dir, DebugDir), 0o755); err != nil {
			return nil, eris.Wrap(err, "export: mkdir debug")
		}
	}

	m := &Manifest{Dir: dir}
	add := func(name string) { m.Files = append(m.Files, name) }
	records := res.Normalized()

	if err := writeNormalizedCSV(filepath.Join(dir, NormalizedCSV), records); err != nil {
		return nil, err
	}
	add(NormalizedCSV)

	written, err := writeIssues(filepath.Join(dir, IssuesJSON), res)
	if err != nil {
		return nil, err
	}
	if written {
		add(IssuesJSON)
	}

	groups := groupByGenre(records)
	codes := make([]genre.Code, 0, len(groups))
	for code := range groups {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })

	targets := []struct {
		name    string
		records []model.NormalizedRecord
	}{{AllGeoJSON, records}}
	for _, code := range codes {
		targets = append(targets, struct {
			name    string
			records []model.NormalizedRecord
		}{GenreFileName(code), groups[code]})
	}

	for _, t := range targets {
		if err := WriteGeoJSON(filepath.Join(dir, t.name), t.records, false); err != nil {
			return nil, err
		}
		add(t.name)
		if w.opts.Debug {
			name := filepath.Join(DebugDir, t.name)
			if err := WriteGeoJSON(filepath.Join(dir, name), t.records, true); err != nil {
				return nil, err
			}
			add(name)
		}
	}

	if w.opts.Shapefile {
		files, err := WriteShapefile(filepath.Join(dir, ShapefileBase), records)
		if err != nil {
			return nil, err
		}
		m.Files = append(m.Files, files...)
	}

	log.Info("export: wrote outputs", zap.Int("files", len(m.Files)), zap.Int("records", len(records)))
	return m, nil
}

func groupByGenre(records []model.NormalizedRecord) map[genre.Code][]model.NormalizedRecord {
	groups := make(map[genre.Code][]model.NormalizedRecord)
	for _, r := range records {
		groups[r.GenreCode] = append(groups[r.GenreCode], r)
	}
	return groups
}

// writeNormalizedCSV writes the published records with every column,
// internal ones included, in the fixed column order.
func writeNormalizedCSV(path string, records []model.NormalizedRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	cw := csv.NewWriter(f)
	if err := cw.Write(model.NormalizedFields); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for _, r := range records {
		if err := cw.Write(r.Row()); err != nil {
			return eris.Wrapf(err, "export: write csv row %d", r.Seq)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return eris.Wrap(err, "export: flush csv")
	}
	return eris.Wrap(f.Close(), "export: close csv")
}
