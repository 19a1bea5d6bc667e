package monitoring

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/goto-eat-map/csv2geojson/internal/model"
	"github.com/goto-eat-map/csv2geojson/internal/store"
)

// DefaultRecentRuns is the window used when none is configured.
const DefaultRecentRuns = 50

// Snapshot is a point-in-time view of run health over the most recent runs.
type Snapshot struct {
	Runs     int     `json:"runs"`
	Complete int     `json:"complete"`
	Failed   int     `json:"failed"`
	Running  int     `json:"running"`
	FailRate float64 `json:"fail_rate"`

	// Records sums the counts of complete runs.
	Records model.RunCounts `json:"records"`
	// ErrorRate is the share of input records that landed in the error
	// partition, over complete runs.
	ErrorRate float64 `json:"error_rate"`

	// FailingSources lists sources whose latest finished run failed.
	FailingSources []string `json:"failing_sources,omitempty"`

	RecentRuns  int       `json:"recent_runs"`
	CollectedAt time.Time `json:"collected_at"`
}

// Finished returns the number of runs that are no longer running.
func (s *Snapshot) Finished() int {
	return s.Complete + s.Failed
}

// RunLister abstracts the run history the collector reads.
type RunLister interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error)
}

// Collector gathers snapshots from the run history.
type Collector struct {
	runs RunLister
}

// NewCollector creates a new run health collector.
func NewCollector(runs RunLister) *Collector {
	return &Collector{runs: runs}
}

// Collect builds a snapshot from the last recent runs.
func (c *Collector) Collect(ctx context.Context, recent int) (*Snapshot, error) {
	if recent <= 0 {
		recent = DefaultRecentRuns
	}
	snap := &Snapshot{
		RecentRuns:  recent,
		CollectedAt: time.Now().UTC(),
	}

	runs, err := c.runs.ListRuns(ctx, store.RunFilter{Limit: recent})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	// Runs arrive newest first, so the first finished run per source is its latest.
	latest := make(map[string]model.RunStatus)
	snap.Runs = len(runs)
	for _, r := range runs {
		switch r.Status {
		case model.RunStatusComplete:
			snap.Complete++
			snap.Records.Add(r.Counts)
		case model.RunStatusFailed:
			snap.Failed++
		default:
			snap.Running++
			continue
		}
		if _, seen := latest[r.Source]; !seen {
			latest[r.Source] = r.Status
		}
	}

	for src, status := range latest {
		if status == model.RunStatusFailed {
			snap.FailingSources = append(snap.FailingSources, src)
		}
	}
	sort.Strings(snap.FailingSources)

	if finished := snap.Finished(); finished > 0 {
		snap.FailRate = float64(snap.Failed) / float64(finished)
	}
	if snap.Records.Input > 0 {
		snap.ErrorRate = float64(snap.Records.Errors) / float64(snap.Records.Input)
	}
	return snap, nil
}
