package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/goto-eat-map/csv2geojson/internal/address"
	"github.com/goto-eat-map/csv2geojson/internal/metrics"
	"github.com/goto-eat-map/csv2geojson/internal/monitoring"
	"github.com/goto-eat-map/csv2geojson/internal/server"
	"github.com/goto-eat-map/csv2geojson/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the diagnostics HTTP server",
	Long:  "Serves /health, /metrics, /v1/genre, /v1/segment and /v1/runs for inspecting rules and run history. Run health alerts are checked in the background when monitoring.webhook_url is set.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		port := server.ResolvePort(servePort, cfg.Server.Port)
		cfg.Server.Port = port
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		classifier, err := initClassifier(cfg.Genre)
		if err != nil {
			return err
		}
		regions, err := address.NewRegions(cfg.Regions.Aliases)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if mc := cfg.Monitoring; mc.WebhookURL != "" {
			checker := monitoring.NewChecker(monitoring.NewCollector(st), monitoring.NewAlerter(mc), mc)
			go checker.Run(ctx)
		}

		reg := metrics.NewRegistry()
		if err := seedRunMetrics(ctx, st, reg); err != nil {
			zap.L().Warn("run metrics not seeded", zap.Error(err))
		}

		h := server.NewRouter(server.Deps{
			Classifier:     classifier,
			Segmenter:      address.NewSegmenter(regions),
			Metrics:        reg,
			Runs:           st,
			AllowedOrigins: cfg.Server.CORSOrigins,
		})
		return server.Serve(ctx, h, port)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// seedRunMetrics publishes the latest finished run of every source so the
// run gauges are populated before the first scrape.
func seedRunMetrics(ctx context.Context, runs server.RunReader, reg *metrics.Registry) error {
	list, err := runs.ListRuns(ctx, store.RunFilter{Limit: 1000})
	if err != nil {
		return err
	}
	seen := make(map[string]bool)
	for _, r := range list {
		if r.FinishedAt.IsZero() || seen[r.Source] {
			continue
		}
		seen[r.Source] = true
		reg.ObserveRun(r.Source, string(r.Status), r.Duration(), r.FinishedAt)
	}
	return nil
}
