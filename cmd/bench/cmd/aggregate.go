package cmd

import (
	"context"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/onflow/consensus-bench/config"
	"github.com/onflow/consensus-bench/model/bench"
	"github.com/onflow/consensus-bench/module"
	"github.com/onflow/consensus-bench/module/aggregator"
	utilsio "github.com/onflow/consensus-bench/utils/io"
)

var aggregateCmd = &cobra.Command{
	Use:   "aggregate [glob]",
	Short: "Aggregate repeated runs of the logs into a report",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer cancel()

		if len(args) == 1 {
			cfg.Aggregate.Logs = args[0]
		}
		return runAggregate(ctx, log, collector, cfg, cmd.OutOrStdout(), true)
	},
}

func init() {
	aggregateCmd.Flags().String("logs", "", "glob matching the log files to aggregate")
	aggregateCmd.Flags().StringP("output", "o", "", "path of the report to write")
	aggregateCmd.Flags().String("latency-unit", "", "unit of the latencies in the report (s or ms)")
	bindFlag(aggregateCmd.Flags().Lookup("logs"), "aggregate.logs")
	bindFlag(aggregateCmd.Flags().Lookup("output"), "aggregate.output")
	bindFlag(aggregateCmd.Flags().Lookup("latency-unit"), "aggregate.latency-unit")

	rootCmd.AddCommand(aggregateCmd)
}

// runAggregate parses the logs, aggregates the runs by configuration and
// writes the report, then prints a summary to out.
func runAggregate(ctx context.Context, log zerolog.Logger, metrics module.BenchmarkMetrics, cfg *config.BenchConfig, out io.Writer, progress bool) error {
	runs, err := parseRuns(ctx, log, metrics, cfg.Workers, cfg.Aggregate.Logs, progress)
	if err != nil {
		return err
	}

	agg := aggregator.New(log, metrics)
	for _, run := range runs {
		agg.Add(run)
	}
	results, err := agg.Results()
	if err != nil {
		return err
	}

	output := cfg.Aggregate.Output
	err = utilsio.WithLock(filepath.Dir(output), func() error {
		if utilsio.FileExists(output) {
			log.Info().Str("report", output).Msg("replacing existing report")
		}
		return aggregator.WriteReportFile(output, cfg.Aggregate.Units(), results)
	})
	if err != nil {
		return err
	}
	log.Info().Str("report", output).Int("configs", len(results)).Int("runs", len(runs)).Msg("report written")

	aggregator.Summary(out, bench.DefaultUnits, results)
	return nil
}
