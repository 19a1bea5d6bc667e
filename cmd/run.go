package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/goto-eat-map/csv2geojson/internal/export"
	"github.com/goto-eat-map/csv2geojson/internal/model"
	"github.com/goto-eat-map/csv2geojson/internal/pipeline"
	"github.com/goto-eat-map/csv2geojson/internal/source"
)

var (
	runTargets   []string
	runInputDir  string
	runOutputDir string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Normalize listing tables and write GeoJSON",
	Long:  "Processes every table in the input directory, or only --target names. A source that fails is logged and the next one runs.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if runInputDir != "" {
			cfg.Input.Dir = runInputDir
		}
		if runOutputDir != "" {
			cfg.Output.Dir = runOutputDir
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		sources, err := source.Discover(cfg.Input.Dir, runTargets)
		if err != nil {
			return err
		}
		if len(sources) == 0 {
			zap.L().Warn("no sources found", zap.String("dir", cfg.Input.Dir))
			return nil
		}

		summaries := runSources(ctx, env, sources)

		if err := env.Metrics.WriteToTextfile(cfg.Metrics.Textfile); err != nil {
			zap.L().Warn("metrics textfile not written", zap.Error(err))
		}

		formatSourceSummaries(os.Stdout, summaries)
		return failedSources(summaries)
	},
}

func init() {
	runCmd.Flags().StringSliceVar(&runTargets, "target", nil, "source names to process (default all)")
	runCmd.Flags().StringVar(&runInputDir, "input", "", "input directory (default from config)")
	runCmd.Flags().StringVar(&runOutputDir, "output", "", "output directory (default from config)")
	rootCmd.AddCommand(runCmd)
}

// sourceSummary is the outcome of one source.
type sourceSummary struct {
	Source   string
	RunID    string
	Counts   model.RunCounts
	Files    int
	Duration time.Duration
	Err      error
}

// runSources processes each source in turn. A failing source never stops
// the others.
func runSources(ctx context.Context, env *pipelineEnv, sources []source.Source) []sourceSummary {
	out := make([]sourceSummary, 0, len(sources))
	for _, src := range sources {
		if ctx.Err() != nil {
			out = append(out, sourceSummary{Source: src.Name, Err: ctx.Err()})
			continue
		}
		sum := runSource(ctx, env, src)
		if sum.Err != nil {
			zap.L().Error("source failed",
				zap.String("source", src.Name),
				zap.String("path", src.Path),
				zap.Error(sum.Err),
			)
		}
		out = append(out, sum)
	}
	return out
}

// runSource processes one source and records its run.
func runSource(ctx context.Context, env *pipelineEnv, src source.Source) sourceSummary {
	sum := sourceSummary{Source: src.Name}
	start := time.Now()

	if env.Store != nil {
		run, err := env.Store.CreateRun(ctx, src.Name)
		if err != nil {
			sum.Err = err
			return sum
		}
		sum.RunID = run.ID
	}

	res, manifest, err := processSource(ctx, env, src, sum.RunID)
	if res != nil {
		sum.RunID = res.RunID
		sum.Counts = res.Counts()
	}
	if manifest != nil {
		sum.Files = len(manifest.Files)
	}
	sum.Err = err
	sum.Duration = time.Since(start)

	status := model.RunStatusComplete
	if err != nil {
		status = model.RunStatusFailed
	}
	env.Metrics.ObserveRun(src.Name, string(status), sum.Duration, time.Now())

	if env.Store != nil && sum.RunID != "" {
		// Bookkeeping must survive a cancelled run context.
		if cerr := env.Store.CompleteRun(context.WithoutCancel(ctx), sum.RunID, sum.Counts, err); cerr != nil {
			zap.L().Warn("run bookkeeping failed", zap.String("run_id", sum.RunID), zap.Error(cerr))
		}
	}
	return sum
}

func processSource(ctx context.Context, env *pipelineEnv, src source.Source, runID string) (*pipeline.Result, *export.Manifest, error) {
	records, err := source.Read(ctx, src, source.ReadOptions{
		Charset: cfg.Input.Encoding,
		Sheet:   cfg.Input.Sheet,
	})
	if err != nil {
		return nil, nil, err
	}

	res, err := env.Orchestrator.RunBatch(ctx, pipeline.Batch{
		RunID:   runID,
		Source:  src.Name,
		Region:  src.Name,
		Records: records,
	})
	if err != nil {
		return nil, nil, err
	}

	w := export.NewWriter(export.Options{
		Dir:       filepath.Join(cfg.Output.Dir, src.Name),
		Debug:     cfg.Output.Debug,
		Shapefile: cfg.Output.Shapefile,
		Cleanup:   cfg.Output.Cleanup,
	})
	manifest, err := w.Write(res)
	if err != nil {
		return res, nil, err
	}
	return res, manifest, nil
}

// failedSources returns an error naming how many sources failed, or nil.
func failedSources(summaries []sourceSummary) error {
	failed := 0
	for _, s := range summaries {
		if s.Err != nil {
			failed++
		}
	}
	if failed == 0 {
		return nil
	}
	return eris.Errorf("%d of %d sources failed", failed, len(summaries))
}

// formatSourceSummaries writes one line per source to out.
func formatSourceSummaries(out io.Writer, summaries []sourceSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SOURCE\tRUN\tINPUT\tCLEAN\tWARN\tERROR\tDUP\tFILES\tDURATION\tSTATUS")
	for _, s := range summaries {
		status := "ok"
		if s.Err != nil {
			status = "failed: " + s.Err.Error()
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%s\t%s\n",
			s.Source,
			truncateID(s.RunID),
			s.Counts.Input,
			s.Counts.Clean,
			s.Counts.Warnings,
			s.Counts.Errors,
			s.Counts.Duplicated,
			s.Files,
			s.Duration.Round(time.Millisecond),
			status,
		)
	}
	_ = w.Flush()
}
