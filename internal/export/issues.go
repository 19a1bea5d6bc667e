package export

import (
	"encoding/json"
	"os"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/goto-eat-map/csv2geojson/internal/model"
	"github.com/goto-eat-map/csv2geojson/internal/pipeline"
)

// IssuesReport is the single place operators look for records that did not
// make it to the map unchanged.
type IssuesReport struct {
	RunID         string               `json:"run_id"`
	Source        string               `json:"source"`
	Region        string               `json:"region"`
	FinishedAt    time.Time            `json:"finished_at"`
	Counts        model.RunCounts      `json:"counts"`
	Duplicated    []pipeline.Duplicate `json:"duplicated"`
	Errors        []IssueRecord        `json:"error"`
	Warnings      []IssueRecord        `json:"warning"`
	UnknownGenres []GenreCount         `json:"unknown_genres"`
}

// IssueRecord is a normalized record with its input position.
type IssueRecord struct {
	Seq int `json:"seq"`
	model.NormalizedRecord
}

// GenreCount is an unclassified genre label and how often it occurred.
type GenreCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// NewIssuesReport builds the report for res. Slices are never nil.
func NewIssuesReport(res *pipeline.Result) *IssuesReport {
	rep := &IssuesReport{
		RunID:         res.RunID,
		Source:        res.Source,
		Region:        res.Region,
		FinishedAt:    res.FinishedAt,
		Counts:        res.Counts(),
		Duplicated:    append([]pipeline.Duplicate{}, res.Duplicated...),
		Errors:        issueRecords(res.Errors),
		Warnings:      issueRecords(res.Warnings),
		UnknownGenres: SortedGenreCounts(res.UnknownGenres),
	}
	return rep
}

// Empty reports whether the batch had nothing worth reporting.
func (r *IssuesReport) Empty() bool {
	return len(r.Duplicated) == 0 && len(r.Errors) == 0 && len(r.Warnings) == 0 && len(r.UnknownGenres) == 0
}

func issueRecords(records []model.NormalizedRecord) []IssueRecord {
	out := make([]IssueRecord, 0, len(records))
	for _, r := range records {
		out = append(out, IssueRecord{Seq: r.Seq, NormalizedRecord: r})
	}
	return out
}

// SortedGenreCounts orders labels by count descending, then label.
func SortedGenreCounts(counts map[string]int) []GenreCount {
	out := make([]GenreCount, 0, len(counts))
	for label, n := range counts {
		out = append(out, GenreCount{Label: label, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// writeIssues writes the issues report to path unless it is empty. A stale
// report from an earlier run is removed so its absence means a clean batch.
func writeIssues(path string, res *pipeline.Result) (bool, error) {
	rep := NewIssuesReport(res)
	if rep.Empty() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return false, eris.Wrapf(err, "export: remove stale %s", path)
		}
		return false, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return false, eris.Wrapf(err, "export: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", debugIndent)
	if err := enc.Encode(rep); err != nil {
		return false, eris.Wrap(err, "export: encode issues")
	}
	return true, eris.Wrap(f.Close(), "export: close issues")
}
