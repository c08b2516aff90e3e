package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/onflow/consensus-bench/config"
	"github.com/onflow/consensus-bench/module/metrics"
)

const pushJob = "consensus_bench"

var (
	flagConfig string

	v         = mustViper()
	cfg       *config.BenchConfig
	log       zerolog.Logger
	registry  *prometheus.Registry
	collector *metrics.PipelineCollector
)

var rootCmd = &cobra.Command{
	Use:   "bench",
	Short: "Analyze consensus benchmark logs",
	Long: `Turns the raw logs of consensus benchmark runs into throughput and latency
statistics, aggregates repeated runs into reports and compares reports in plots.`,
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: pushMetrics,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "path to a yaml config file overriding the defaults")
	rootCmd.PersistentFlags().String("log-level", "", "log level (panic, fatal, error, warn, info, debug, trace)")
	rootCmd.PersistentFlags().Int("workers", 0, "number of log files parsed concurrently (0 uses one per CPU)")
	rootCmd.PersistentFlags().String("pushgateway", "", "address of a prometheus pushgateway receiving the metrics of the command")

	bindFlag(rootCmd.PersistentFlags().Lookup("log-level"), "log-level")
	bindFlag(rootCmd.PersistentFlags().Lookup("workers"), "workers")
	bindFlag(rootCmd.PersistentFlags().Lookup("pushgateway"), "pushgateway")

	log = zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()
}

func mustViper() *viper.Viper {
	v, err := config.NewViper()
	if err != nil {
		panic(err)
	}
	return v
}

func bindFlag(flag *pflag.Flag, key string) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("failed to bind flag %s: %v", flag.Name, err))
	}
}

// setup loads the configuration and builds the logger and metrics shared by
// all commands.
func setup(_ *cobra.Command, _ []string) error {
	var err error
	cfg, err = config.Load(v, flagConfig)
	if err != nil {
		return err
	}

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	log = log.Level(level)

	registry = prometheus.NewRegistry()
	collector = metrics.NewPipelineCollector(registry)

	log.Debug().Str("config", flagConfig).Int("workers", cfg.Workers).Msg("configuration loaded")
	return nil
}

func pushMetrics(_ *cobra.Command, _ []string) error {
	if cfg == nil || cfg.Pushgateway == "" {
		return nil
	}
	return metrics.NewPusher(log, cfg.Pushgateway, pushJob, registry).Push()
}
