package pipeline

import (
	"sort"
	"time"

	"github.com/goto-eat-map/csv2geojson/internal/model"
)

// Result is the partitioned outcome of one batch. Errors, Warnings and Clean
// are pairwise disjoint and together hold every deduplicated record, each
// slice in input order. Duplicated is independent of the other three.
type Result struct {
	RunID      string
	Source     string
	Region     string
	Input      int
	StartedAt  time.Time
	FinishedAt time.Time

	Duplicated []Duplicate
	Errors     []model.NormalizedRecord
	Warnings   []model.NormalizedRecord
	Clean      []model.NormalizedRecord

	// UnknownGenres counts records per genre label no rule recognized.
	UnknownGenres map[string]int
}

// Normalized returns the clean and warning records merged in input order.
// These are the records published to the normalized table and GeoJSON.
func (r *Result) Normalized() []model.NormalizedRecord {
	out := make([]model.NormalizedRecord, 0, len(r.Clean)+len(r.Warnings))
	out = append(out, r.Clean...)
	out = append(out, r.Warnings...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// Counts summarizes the partitions for run bookkeeping.
func (r *Result) Counts() model.RunCounts {
	return model.RunCounts{
		Input:         r.Input,
		Clean:         len(r.Clean),
		Warnings:      len(r.Warnings),
		Errors:        len(r.Errors),
		Duplicated:    len(r.Duplicated),
		UnknownGenres: len(r.UnknownGenres),
	}
}

// Duration returns how long the batch took.
func (r *Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
