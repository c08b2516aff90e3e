package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/onflow/consensus-bench/config"
	"github.com/onflow/consensus-bench/module"
	"github.com/onflow/consensus-bench/module/plot"
	utilsio "github.com/onflow/consensus-bench/utils/io"
)

var plotCmd = &cobra.Command{
	Use:   "plot [glob]",
	Short: "Plot throughput and latency of the reports against one parameter",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			cfg.Plot.Reports = args[0]
		}
		return runPlot(log, collector, cfg, cmd.OutOrStdout())
	},
}

func init() {
	plotCmd.Flags().String("reports", "", "glob matching the reports to compare")
	plotCmd.Flags().StringP("param", "p", "", "parameter on the x axis (committee_size, input_rate, tx_size, duration)")
	plotCmd.Flags().StringP("format", "f", "", "format of the figures (png, svg, pdf)")
	plotCmd.Flags().String("backend", "", "plotting backend (gonum, gnuplot)")
	plotCmd.Flags().String("results-dir", "", "directory the figures are written to")
	bindFlag(plotCmd.Flags().Lookup("reports"), "plot.reports")
	bindFlag(plotCmd.Flags().Lookup("param"), "plot.param")
	bindFlag(plotCmd.Flags().Lookup("format"), "plot.format")
	bindFlag(plotCmd.Flags().Lookup("backend"), "plot.backend")
	bindFlag(plotCmd.Flags().Lookup("results-dir"), "plot.results-dir")

	rootCmd.AddCommand(plotCmd)
}

func newRenderer(log zerolog.Logger, cfg config.PlotConfig) (plot.Renderer, error) {
	switch cfg.Backend {
	case config.BackendGnuplot:
		return plot.NewGnuplotRenderer(log, cfg.ResultsDir, cfg.Format)
	case config.BackendGonum:
		return plot.NewGonumRenderer(cfg.ResultsDir, cfg.Format)
	default:
		return nil, fmt.Errorf("unknown plot backend %q", cfg.Backend)
	}
}

// runPlot loads the reports and renders the throughput and latency figures,
// printing the path of every artifact to out.
func runPlot(log zerolog.Logger, metrics module.AggregationMetrics, cfg *config.BenchConfig, out io.Writer) error {
	files, err := filepath.Glob(cfg.Plot.Reports)
	if err != nil {
		return fmt.Errorf("invalid report pattern %q: %w", cfg.Plot.Reports, err)
	}
	sort.Strings(files)

	set, err := plot.Load(files)
	if err != nil {
		return err
	}
	renderer, err := newRenderer(log, cfg.Plot)
	if err != nil {
		return err
	}
	// both comparisons are checked before anything is drawn
	if _, err := plot.TPSFigure(cfg.Plot.Param, set); err != nil {
		return err
	}
	if _, err := plot.LatencyFigure(cfg.Plot.Param, set); err != nil {
		return err
	}
	ploter := plot.NewPloter(log, metrics, renderer)

	var paths []string
	err = utilsio.WithLock(cfg.Plot.ResultsDir, func() error {
		tps, err := ploter.PlotTPS(cfg.Plot.Param, set)
		if err != nil {
			return err
		}
		latency, err := ploter.PlotLatency(cfg.Plot.Param, set)
		if err != nil {
			return err
		}
		paths = append(paths, tps, latency)
		return nil
	})
	if err != nil {
		return err
	}

	for _, path := range paths {
		fmt.Fprintln(out, path)
	}
	return nil
}
