package model

import "time"

// RunStatus represents the current state of a pipeline run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is the persisted summary of one source processed by the pipeline.
type Run struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	Status     RunStatus `json:"status"`
	Counts     RunCounts `json:"counts"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

// RunCounts tallies where the records of a run ended up.
type RunCounts struct {
	Input      int `json:"input"`
	Clean      int `json:"clean"`
	Warnings   int `json:"warnings"`
	Errors     int `json:"errors"`
	Duplicated int `json:"duplicated"`
	// UnknownGenres counts distinct unclassified genre labels.
	UnknownGenres int `json:"unknown_genres"`
}

// Add accumulates o into c.
func (c *RunCounts) Add(o RunCounts) {
	c.Input += o.Input
	c.Clean += o.Clean
	c.Warnings += o.Warnings
	c.Errors += o.Errors
	c.Duplicated += o.Duplicated
	c.UnknownGenres += o.UnknownGenres
}

// Duration returns how long the run took, or zero while it is running.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
