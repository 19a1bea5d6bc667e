package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goto-eat-map/csv2geojson/internal/metrics"
	"github.com/goto-eat-map/csv2geojson/internal/model"
	"github.com/goto-eat-map/csv2geojson/internal/store"
)

type stubRuns struct {
	runs []model.Run
	err  error
}

func (s stubRuns) GetRun(_ context.Context, _ string) (*model.Run, error) {
	return nil, store.ErrRunNotFound
}

func (s stubRuns) ListRuns(_ context.Context, _ store.RunFilter) ([]model.Run, error) {
	return s.runs, s.err
}

func TestSeedRunMetrics_LatestFinishedPerSource(t *testing.T) {
	t0 := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	runs := stubRuns{runs: []model.Run{
		// newest first, as ListRuns returns them
		{Source: "tokyo", Status: model.RunStatusRunning, StartedAt: t0.Add(2 * time.Hour)},
		{Source: "tokyo", Status: model.RunStatusComplete, StartedAt: t0.Add(time.Hour), FinishedAt: t0.Add(time.Hour + 30*time.Second)},
		{Source: "tokyo", Status: model.RunStatusFailed, StartedAt: t0, FinishedAt: t0.Add(5 * time.Second)},
		{Source: "osaka", Status: model.RunStatusFailed, StartedAt: t0, FinishedAt: t0.Add(2 * time.Second)},
	}}

	reg := metrics.NewRegistry()
	require.NoError(t, seedRunMetrics(context.Background(), runs, reg))

	assert.InDelta(t, 30, testutil.ToFloat64(reg.RunDuration.WithLabelValues("tokyo")), 0.001)
	assert.InDelta(t, float64(t0.Add(time.Hour+30*time.Second).Unix()),
		testutil.ToFloat64(reg.LastRun.WithLabelValues("tokyo", "complete")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(reg.RunDuration.WithLabelValues("osaka")), 0.001)
	assert.Equal(t, 2, testutil.CollectAndCount(reg.LastRun))
}

func TestSeedRunMetrics_Error(t *testing.T) {
	reg := metrics.NewRegistry()
	err := seedRunMetrics(context.Background(), stubRuns{err: errors.New("db locked")}, reg)
	assert.Error(t, err)
	assert.Zero(t, testutil.CollectAndCount(reg.LastRun))
}
