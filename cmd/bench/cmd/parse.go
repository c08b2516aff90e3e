package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/onflow/consensus-bench/model/bench"
	"github.com/onflow/consensus-bench/module"
	"github.com/onflow/consensus-bench/module/logparser"
	"github.com/onflow/consensus-bench/module/runstats"
)

var parseCmd = &cobra.Command{
	Use:   "parse [glob]",
	Short: "Print the statistics of every run found in the logs",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer cancel()

		pattern := cfg.Parse.Logs
		if len(args) == 1 {
			pattern = args[0]
		}
		runs, err := parseRuns(ctx, log, collector, cfg.Workers, pattern, true)
		if err != nil {
			return err
		}
		printRuns(cmd.OutOrStdout(), runs)
		return nil
	},
}

func init() {
	parseCmd.Flags().String("logs", "", "glob matching the log files to parse")
	bindFlag(parseCmd.Flags().Lookup("logs"), "parse.logs")

	rootCmd.AddCommand(parseCmd)
}

// expandLogs returns the files matched by pattern, sorted.
func expandLogs(pattern string) ([]string, error) {
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid log pattern %q: %w", pattern, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no log file matches %q", pattern)
	}
	sort.Strings(files)
	return files, nil
}

// parseRuns parses the logs matched by pattern and computes the statistics of
// every run found in them. Unusable files are logged and skipped.
func parseRuns(ctx context.Context, log zerolog.Logger, metrics module.BenchmarkMetrics, workers int, pattern string, progress bool) ([]*bench.RunStats, error) {
	files, err := expandLogs(pattern)
	if err != nil {
		return nil, err
	}

	var opts []logparser.BatchOption
	if progress {
		bar := progressbar.Default(int64(len(files)), "parsing logs")
		defer func() { _ = bar.Finish() }()
		opts = append(opts, logparser.WithProgress(func() { _ = bar.Add(1) }))
	}

	batch, err := logparser.NewBatchParser(log, metrics, workers, opts...).ParseFiles(ctx, files)
	if err != nil {
		return nil, err
	}
	if batch.Skipped() > 0 {
		log.Warn().
			Int("skipped", batch.Skipped()).
			Int("files", len(files)).
			Err(batch.Failures).
			Msg("some log files were skipped")
	}

	return runstats.ComputeRuns(log, metrics, batch.Records)
}

func printRuns(w io.Writer, runs []*bench.RunStats) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Run", "Config", "Nodes", "Created", "Committed", "TPS", "Mean (ms)", "P50 (ms)", "P99 (ms)", "Error rate"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.SetBorder(false)

	millis := func(v float64) string {
		if bench.IsUndefined(v) {
			return "n/a"
		}
		return strconv.FormatFloat(v*1000, 'f', 1, 64)
	}
	for _, r := range runs {
		table.Append([]string{
			r.RunID,
			r.Config.String(),
			strconv.Itoa(r.Nodes),
			strconv.FormatUint(r.Created, 10),
			strconv.FormatUint(r.Committed, 10),
			strconv.FormatFloat(r.ThroughputTPS, 'f', 1, 64),
			millis(r.MeanLatency),
			millis(r.P50Latency),
			millis(r.P99Latency),
			strconv.FormatFloat(r.ErrorRate, 'f', 4, 64),
		})
	}
	table.Render()
}
