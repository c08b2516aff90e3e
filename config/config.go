package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"golang.org/x/exp/slices"

	"github.com/onflow/consensus-bench/model/bench"
)

const (
	// EnvPrefix is the prefix of environment variables overriding config values.
	EnvPrefix = "BENCH"

	BackendGonum   = "gonum"
	BackendGnuplot = "gnuplot"
)

var (
	//go:embed default-config.yml
	defaultConfig []byte

	formats  = []string{"png", "svg", "pdf"}
	backends = []string{BackendGonum, BackendGnuplot}
)

// BenchConfig is the configuration of the benchmark analysis CLI.
type BenchConfig struct {
	LogLevel    string          `mapstructure:"log-level"`
	Workers     int             `mapstructure:"workers"`
	Pushgateway string          `mapstructure:"pushgateway"`
	Parse       ParseConfig     `mapstructure:"parse"`
	Aggregate   AggregateConfig `mapstructure:"aggregate"`
	Plot        PlotConfig      `mapstructure:"plot"`
}

// ParseConfig configures the inspection of raw logs.
type ParseConfig struct {
	Logs string `mapstructure:"logs"`
}

// AggregateConfig configures the aggregation of raw logs into a report.
type AggregateConfig struct {
	Logs        string `mapstructure:"logs"`
	Output      string `mapstructure:"output"`
	LatencyUnit string `mapstructure:"latency-unit"`
}

// Units returns the units the report is written in.
func (c AggregateConfig) Units() bench.Units {
	return bench.Units{Throughput: bench.UnitTxPerSecond, Latency: c.LatencyUnit}
}

// PlotConfig configures the comparison of aggregated reports.
type PlotConfig struct {
	Reports    string          `mapstructure:"reports"`
	ResultsDir string          `mapstructure:"results-dir"`
	Param      bench.Parameter `mapstructure:"param"`
	Format     string          `mapstructure:"format"`
	Backend    string          `mapstructure:"backend"`
}

// NewViper returns a viper instance holding the default configuration and
// reading overrides from BENCH_ prefixed environment variables. Nested keys
// use underscores, e.g. BENCH_PLOT_RESULTS_DIR.
func NewViper() (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaultConfig)); err != nil {
		return nil, fmt.Errorf("failed to read default config: %w", err)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v, nil
}

// Load merges the config file, if any, into v and decodes the result.
// Flags bound to v take precedence over the environment, which takes
// precedence over the config file and the defaults.
func Load(v *viper.Viper, configFile string) (*BenchConfig, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	var cfg BenchConfig
	err := v.Unmarshal(&cfg, viper.DecodeHook(parameterHookFunc()))
	if err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// parameterHookFunc decodes parameter names into bench.Parameter values.
func parameterHookFunc() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf(bench.Parameter("")) {
			return data, nil
		}
		return bench.ParseParameter(data.(string))
	}
}

// Validate reports every invalid value of the configuration.
func (c *BenchConfig) Validate() error {
	var errs *multierror.Error
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil || c.LogLevel == "" {
		errs = multierror.Append(errs, fmt.Errorf("invalid log-level %q", c.LogLevel))
	}
	if c.Workers < 0 {
		errs = multierror.Append(errs, fmt.Errorf("workers must not be negative, got %d", c.Workers))
	}
	if c.Parse.Logs == "" || c.Aggregate.Logs == "" {
		errs = multierror.Append(errs, errors.New("log file patterns must not be empty"))
	}
	if c.Aggregate.Output == "" {
		errs = multierror.Append(errs, errors.New("aggregate output must not be empty"))
	}
	if _, ok := c.Aggregate.Units().LatencyScale(); !ok {
		errs = multierror.Append(errs, fmt.Errorf("invalid latency-unit %q (expected %s or %s)", c.Aggregate.LatencyUnit, bench.UnitSeconds, bench.UnitMillis))
	}
	if c.Plot.Reports == "" || c.Plot.ResultsDir == "" {
		errs = multierror.Append(errs, errors.New("plot reports and results-dir must not be empty"))
	}
	if _, err := bench.ParseParameter(string(c.Plot.Param)); err != nil {
		errs = multierror.Append(errs, err)
	}
	if !slices.Contains(formats, c.Plot.Format) {
		errs = multierror.Append(errs, fmt.Errorf("invalid plot format %q (expected one of %v)", c.Plot.Format, formats))
	}
	if !slices.Contains(backends, c.Plot.Backend) {
		errs = multierror.Append(errs, fmt.Errorf("invalid plot backend %q (expected one of %v)", c.Plot.Backend, backends))
	}
	if err := errs.ErrorOrNil(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
