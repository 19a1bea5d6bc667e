package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/goto-eat-map/csv2geojson/internal/config"
	"github.com/goto-eat-map/csv2geojson/internal/model"
	"github.com/goto-eat-map/csv2geojson/internal/monitoring"
	"github.com/goto-eat-map/csv2geojson/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect run history",
	Long:  "Commands for listing, viewing, and summarizing per-source runs.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		src, _ := cmd.Flags().GetString("source")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Status: model.RunStatus(status),
			Source: src,
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

// -- runs stats --

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate statistics over recent runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		src, _ := cmd.Flags().GetString("source")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{Source: src, Limit: limit})
		if err != nil {
			return eris.Wrap(err, "runs stats")
		}

		formatRunStats(os.Stdout, computeRunStats(runs))
		return nil
	},
}

// -- runs check --

var runsCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Evaluate run health and send alerts",
	Long:  "Collects the most recent runs, prints their health and posts any alerts to monitoring.webhook_url.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		dryRun, _ := cmd.Flags().GetBool("dry-run")
		mc := cfg.Monitoring
		if dryRun {
			mc.WebhookURL = ""
		}
		return checkRuns(ctx, os.Stdout, st, mc)
	},
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by run status (running, complete, failed)")
	runsListCmd.Flags().String("source", "", "filter by source name")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsStatsCmd.Flags().String("source", "", "filter by source name")
	runsStatsCmd.Flags().Int("limit", 1000, "number of most recent runs to aggregate")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCheckCmd.Flags().Bool("dry-run", false, "print alerts without sending them")

	runsCmd.AddCommand(runsStatsCmd)
	runsCmd.AddCommand(runsCheckCmd)
	rootCmd.AddCommand(runsCmd)
}

// runStats aggregates a window of runs, overall and per source.
type runStats struct {
	Total      int
	Complete   int
	Failed     int
	Running    int
	Records    model.RunCounts
	AvgDurSecs float64
	Sources    []sourceStats
}

// sourceStats is one source's row in the stats breakdown. Last is the
// status of its newest run.
type sourceStats struct {
	Source  string
	Runs    int
	Failed  int
	Records model.RunCounts
	Last    model.RunStatus
}

// CleanRate is the share of input records that landed in the clean
// partition.
func (s sourceStats) CleanRate() float64 {
	if s.Records.Input == 0 {
		return 0
	}
	return float64(s.Records.Clean) / float64(s.Records.Input)
}

// computeRunStats expects runs newest first, as ListRuns returns them.
func computeRunStats(runs []model.Run) runStats {
	s := runStats{Total: len(runs)}
	bySource := make(map[string]*sourceStats)

	var completeDur time.Duration
	for _, r := range runs {
		src, ok := bySource[r.Source]
		if !ok {
			src = &sourceStats{Source: r.Source, Last: r.Status}
			bySource[r.Source] = src
		}
		src.Runs++
		src.Records.Add(r.Counts)
		s.Records.Add(r.Counts)

		switch r.Status {
		case model.RunStatusComplete:
			s.Complete++
			completeDur += r.Duration()
		case model.RunStatusFailed:
			s.Failed++
			src.Failed++
		default:
			s.Running++
		}
	}

	if s.Complete > 0 {
		s.AvgDurSecs = completeDur.Seconds() / float64(s.Complete)
	}
	for _, src := range bySource {
		s.Sources = append(s.Sources, *src)
	}
	sort.Slice(s.Sources, func(i, j int) bool { return s.Sources[i].Source < s.Sources[j].Source })
	return s
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSOURCE\tSTATUS\tINPUT\tCLEAN\tWARN\tERROR\tSTARTED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t------\t------\t-----\t-----\t----\t-----\t-------\t--------")

	for _, r := range runs {
		dur := "-"
		if !r.FinishedAt.IsZero() {
			dur = r.Duration().Round(time.Second).String()
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\t%s\n",
			truncateID(r.ID),
			r.Source,
			r.Status,
			r.Counts.Input,
			r.Counts.Clean,
			r.Counts.Warnings,
			r.Counts.Errors,
			r.StartedAt.Format("2006-01-02 15:04"),
			dur,
		)
	}
	_ = w.Flush()
}

// formatRunStats writes the totals followed by a per-source table.
func formatRunStats(out io.Writer, s runStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total runs:\t%d (%d complete, %d failed, %d running)\n", s.Total, s.Complete, s.Failed, s.Running)
	_, _ = fmt.Fprintf(w, "Records in:\t%d\n", s.Records.Input)
	_, _ = fmt.Fprintf(w, "  Clean:\t%d\n", s.Records.Clean)
	_, _ = fmt.Fprintf(w, "  Warnings:\t%d\n", s.Records.Warnings)
	_, _ = fmt.Fprintf(w, "  Errors:\t%d\n", s.Records.Errors)
	_, _ = fmt.Fprintf(w, "  Duplicated:\t%d\n", s.Records.Duplicated)
	if s.AvgDurSecs > 0 {
		_, _ = fmt.Fprintf(w, "Avg duration:\t%.1fs\n", s.AvgDurSecs)
	}
	_ = w.Flush()

	if len(s.Sources) == 0 {
		return
	}
	_, _ = fmt.Fprintln(out)
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SOURCE\tRUNS\tFAILED\tINPUT\tCLEAN%\tLAST")
	for _, src := range s.Sources {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%.1f\t%s\n",
			src.Source, src.Runs, src.Failed, src.Records.Input, src.CleanRate()*100, src.Last)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// checkRuns prints a health snapshot of the recent runs and the alerts it
// triggers. Alerts go to mc.WebhookURL when it is set.
func checkRuns(ctx context.Context, out io.Writer, runs monitoring.RunLister, mc config.MonitoringConfig) error {
	snap, err := monitoring.NewCollector(runs).Collect(ctx, mc.RecentRuns)
	if err != nil {
		return err
	}

	alerter := monitoring.NewAlerter(mc)
	alerts := alerter.Evaluate(snap)
	sent := alerter.SendAlerts(ctx, alerts)

	formatSnapshot(out, snap)
	formatAlerts(out, alerts, sent)
	return nil
}

func formatSnapshot(out io.Writer, snap *monitoring.Snapshot) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Runs checked:\t%d (last %d)\n", snap.Runs, snap.RecentRuns)
	_, _ = fmt.Fprintf(w, "Failure rate:\t%.1f%% (%d of %d finished)\n", snap.FailRate*100, snap.Failed, snap.Finished())
	_, _ = fmt.Fprintf(w, "Error rate:\t%.1f%% (%d of %d records)\n", snap.ErrorRate*100, snap.Records.Errors, snap.Records.Input)
	if len(snap.FailingSources) > 0 {
		_, _ = fmt.Fprintf(w, "Failing:\t%s\n", strings.Join(snap.FailingSources, ", "))
	}
	_ = w.Flush()
}

func formatAlerts(out io.Writer, alerts []monitoring.Alert, sent int) {
	if len(alerts) == 0 {
		_, _ = fmt.Fprintln(out, "No alerts.")
		return
	}
	for _, a := range alerts {
		_, _ = fmt.Fprintf(out, "[%s] %s: %s\n", a.Severity, a.Type, a.Message)
	}
	_, _ = fmt.Fprintf(out, "%d of %d alerts sent\n", sent, len(alerts))
}
