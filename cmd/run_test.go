package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goto-eat-map/csv2geojson/internal/address"
	"github.com/goto-eat-map/csv2geojson/internal/config"
	"github.com/goto-eat-map/csv2geojson/internal/export"
	"github.com/goto-eat-map/csv2geojson/internal/genre"
	"github.com/goto-eat-map/csv2geojson/internal/metrics"
	"github.com/goto-eat-map/csv2geojson/internal/model"
	"github.com/goto-eat-map/csv2geojson/internal/pipeline"
	"github.com/goto-eat-map/csv2geojson/internal/source"
	"github.com/goto-eat-map/csv2geojson/internal/store"
	"github.com/goto-eat-map/csv2geojson/internal/validate"
	"github.com/goto-eat-map/csv2geojson/pkg/geocode"
)

type geocoderFunc func(ctx context.Context, address string) (*geocode.Result, error)

func (f geocoderFunc) Geocode(ctx context.Context, address string) (*geocode.Result, error) {
	return f(ctx, address)
}

func fixedGeocoder() geocode.Client {
	return geocoderFunc(func(_ context.Context, addr string) (*geocode.Result, error) {
		return &geocode.Result{Latitude: 35.668123, Longitude: 139.481234, Score: 5, Matched: addr, Source: "stub"}, nil
	})
}

const testHeader = "shop_name,address,tel,genre_name,zip_code,official_page,opening_hours,closing_day,area_name,detail_page\n"

func newTestEnv(t *testing.T, geocoder geocode.Client) *pipelineEnv {
	t.Helper()
	c, err := genre.NewDefaultClassifier()
	require.NoError(t, err)
	regions, err := address.NewRegions(nil)
	require.NoError(t, err)

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))

	reg := metrics.NewRegistry()
	env := &pipelineEnv{
		Store:      st,
		Classifier: c,
		Regions:    regions,
		Metrics:    reg,
		Orchestrator: pipeline.New(c, regions, geocoder, validate.New(nil), pipeline.Options{
			Concurrency: 2,
			Metrics:     reg,
		}),
	}
	t.Cleanup(env.Close)
	return env
}

func setTestConfig(t *testing.T, outDir string) {
	t.Helper()
	prev := cfg
	cfg = &config.Config{
		Output: config.OutputConfig{Dir: outDir, Debug: true, Cleanup: true},
	}
	t.Cleanup(func() { cfg = prev })
}

func writeSource(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(testHeader+body), 0o644))
}

func TestRunSources_IsolatesFailures(t *testing.T) {
	inDir, outDir := t.TempDir(), t.TempDir()
	setTestConfig(t, outDir)
	env := newTestEnv(t, fixedGeocoder())

	writeSource(t, inDir, "tokyo.csv",
		"珈琲館,府中市清水が丘1-8-3,042-123-4567,カフェ,183-0015,https://example.com,,,,\n"+
			"鳥よし,東京都府中市宮町2-1,042-999-0000,居酒屋,183-0023,https://example.com/tori,,,,\n"+
			"謎の店,東京都府中市,,その他,,,,,,\n")
	writeSource(t, inDir, "atlantis.csv", "店,どこか1-2-3,,,,,,,,\n")

	sources, err := source.Discover(inDir, nil)
	require.NoError(t, err)
	require.Len(t, sources, 2)

	sums := runSources(context.Background(), env, sources)
	require.Len(t, sums, 2)

	assert.Equal(t, "atlantis", sums[0].Source)
	require.Error(t, sums[0].Err)
	assert.ErrorIs(t, sums[0].Err, address.ErrUnknownRegion)

	tokyo := sums[1]
	require.NoError(t, tokyo.Err)
	assert.Equal(t, 3, tokyo.Counts.Input)
	assert.Equal(t, 2, tokyo.Counts.Clean)
	assert.Equal(t, 1, tokyo.Counts.Errors)
	assert.NotEmpty(t, tokyo.RunID)
	assert.Positive(t, tokyo.Files)

	assert.FileExists(t, filepath.Join(outDir, "tokyo", export.AllGeoJSON))
	assert.FileExists(t, filepath.Join(outDir, "tokyo", export.IssuesJSON))
	assert.FileExists(t, filepath.Join(outDir, "tokyo", export.DebugDir, export.AllGeoJSON))
	assert.NoDirExists(t, filepath.Join(outDir, "atlantis"))

	err = failedSources(sums)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 sources failed")
}

func TestRunSources_RecordsRuns(t *testing.T) {
	inDir, outDir := t.TempDir(), t.TempDir()
	setTestConfig(t, outDir)
	env := newTestEnv(t, fixedGeocoder())

	writeSource(t, inDir, "tokyo.csv", "珈琲館,府中市清水が丘1-8-3,042-123-4567,カフェ,183-0015,https://example.com,,,,\n")
	writeSource(t, inDir, "atlantis.csv", "店,どこか1-2-3,,,,,,,,\n")
	sources, err := source.Discover(inDir, nil)
	require.NoError(t, err)

	sums := runSources(context.Background(), env, sources)
	ctx := context.Background()

	ok, err := env.Store.GetRun(ctx, sums[1].RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, ok.Status)
	assert.Equal(t, "tokyo", ok.Source)
	assert.Equal(t, 1, ok.Counts.Clean)

	failed, err := env.Store.ListRuns(ctx, store.RunFilter{Status: model.RunStatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "atlantis", failed[0].Source)
	assert.Contains(t, failed[0].Error, "unknown region")
}

func TestRunSources_FatalGeocoderError(t *testing.T) {
	inDir, outDir := t.TempDir(), t.TempDir()
	setTestConfig(t, outDir)

	ctx, cancel := context.WithCancel(context.Background())
	env := newTestEnv(t, geocoderFunc(func(_ context.Context, _ string) (*geocode.Result, error) {
		cancel()
		return nil, context.Canceled
	}))

	writeSource(t, inDir, "osaka.csv", "串カツ,大阪市北区梅田1-1-1,,居酒屋,530-0001,,,,,\n")
	writeSource(t, inDir, "tokyo.csv", "珈琲館,府中市清水が丘1-8-3,,カフェ,183-0015,,,,,\n")
	sources, err := source.Discover(inDir, nil)
	require.NoError(t, err)

	sums := runSources(ctx, env, sources)
	require.Len(t, sums, 2)
	assert.Error(t, sums[0].Err)
	assert.True(t, errors.Is(sums[1].Err, context.Canceled))
}

func TestRunSources_UnreadableSource(t *testing.T) {
	inDir, outDir := t.TempDir(), t.TempDir()
	setTestConfig(t, outDir)
	env := newTestEnv(t, fixedGeocoder())

	require.NoError(t, os.WriteFile(filepath.Join(inDir, "tokyo.csv"), []byte("name,addr\nx,y\n"), 0o644))
	sources, err := source.Discover(inDir, nil)
	require.NoError(t, err)

	sums := runSources(context.Background(), env, sources)
	require.Len(t, sums, 1)
	require.Error(t, sums[0].Err)
	assert.Contains(t, sums[0].Err.Error(), "missing required columns")
	assert.NoError(t, failedSources(nil))
}

func TestFormatSourceSummaries(t *testing.T) {
	var buf bytes.Buffer
	formatSourceSummaries(&buf, []sourceSummary{
		{Source: "tokyo", RunID: "abc12345-0000", Counts: model.RunCounts{Input: 10, Clean: 7, Warnings: 2, Errors: 1}, Files: 12},
		{Source: "atlantis", Err: errors.New("unknown region")},
	})

	out := buf.String()
	assert.Contains(t, out, "SOURCE")
	assert.Contains(t, out, "tokyo")
	assert.Contains(t, out, "abc12345")
	assert.NotContains(t, out, "abc12345-0000")
	assert.Contains(t, out, "failed: unknown region")
}
