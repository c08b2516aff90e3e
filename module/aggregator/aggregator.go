// Package aggregator merges the statistics of repeated runs of a benchmark
// configuration and persists them as a flat text report.
package aggregator

import (
	"fmt"
	"sort"

	"github.com/montanaflynn/stats"
	"github.com/rs/zerolog"
	"golang.org/x/exp/maps"

	"github.com/onflow/consensus-bench/model/bench"
	"github.com/onflow/consensus-bench/module"
)

// Aggregate computes the mean and the sample standard deviation (N-1
// estimator) of the throughput and mean latency of runs of one configuration.
// A single run has a standard deviation of zero. Runs without any latency
// sample do not contribute to the latency statistics, which are undefined when
// no run measured a latency.
//
// Expected errors:
//   - bench.ParseError wrapping bench.ErrNoRuns if runs is empty
//   - bench.ParseError wrapping bench.ConfigMismatchError if the runs do not
//     all share the configuration of the first run
func Aggregate(runs []*bench.RunStats) (*bench.AggregateResult, error) {
	if len(runs) == 0 {
		return nil, bench.NewParseError("", bench.ErrNoRuns)
	}
	cfg := runs[0].Config

	var tps, latencies []float64
	result := &bench.AggregateResult{
		Config:   cfg,
		RunCount: len(runs),
	}
	for _, run := range runs {
		if run.Config != cfg {
			return nil, bench.NewConfigMismatchError("", run.RunID, cfg, run.Config)
		}
		tps = append(tps, run.ThroughputTPS)
		if run.HasLatency() {
			latencies = append(latencies, run.MeanLatency)
		}
		result.Committed += run.Committed
		result.ErrorCount += run.ErrorCount
	}

	var err error
	result.TPSMean, result.TPSStdev, err = meanStdev(tps)
	if err != nil {
		return nil, fmt.Errorf("could not aggregate throughput of %s: %w", cfg, err)
	}

	result.LatencyMean, result.LatencyStdev = bench.UndefinedLatency, bench.UndefinedLatency
	if len(latencies) > 0 {
		result.LatencyMean, result.LatencyStdev, err = meanStdev(latencies)
		if err != nil {
			return nil, fmt.Errorf("could not aggregate latency of %s: %w", cfg, err)
		}
	}
	return result, nil
}

func meanStdev(values []float64) (float64, float64, error) {
	data := stats.Float64Data(values)
	mean, err := stats.Mean(data)
	if err != nil {
		return 0, 0, err
	}
	if len(values) < 2 {
		return mean, 0, nil
	}
	stdev, err := stats.StandardDeviationSample(data)
	if err != nil {
		return 0, 0, err
	}
	return mean, stdev, nil
}

// Aggregator groups runs by configuration as they are added.
// It is not safe for concurrent use.
type Aggregator struct {
	log     zerolog.Logger
	metrics module.AggregationMetrics
	runs    map[bench.Config][]*bench.RunStats
}

func New(log zerolog.Logger, metrics module.AggregationMetrics) *Aggregator {
	return &Aggregator{
		log:     log.With().Str("component", "aggregator").Logger(),
		metrics: metrics,
		runs:    make(map[bench.Config][]*bench.RunStats),
	}
}

// Add adds a run to the group of its configuration.
func (a *Aggregator) Add(run *bench.RunStats) {
	a.runs[run.Config] = append(a.runs[run.Config], run)
}

// Results returns one aggregate per configuration, ordered by configuration.
// Runs of a configuration are aggregated in run identity order, so the result
// does not depend on the order in which runs were added.
func (a *Aggregator) Results() ([]*bench.AggregateResult, error) {
	configs := maps.Keys(a.runs)
	sort.Slice(configs, func(i, j int) bool {
		return configs[i].Less(configs[j])
	})

	results := make([]*bench.AggregateResult, 0, len(configs))
	for _, cfg := range configs {
		runs := append([]*bench.RunStats(nil), a.runs[cfg]...)
		sort.SliceStable(runs, func(i, j int) bool {
			return runs[i].RunID < runs[j].RunID
		})

		result, err := Aggregate(runs)
		if err != nil {
			return nil, err
		}
		a.metrics.ConfigAggregated(result.RunCount)

		event := a.log.Info().
			Str("config", cfg.String()).
			Int("runs", result.RunCount).
			Float64("tps_mean", result.TPSMean).
			Float64("tps_stdev", result.TPSStdev)
		if result.HasLatency() {
			event = event.Float64("latency_mean", result.LatencyMean)
		}
		event.Msg("aggregated configuration")

		if result.RunCount == 1 {
			a.log.Debug().Str("config", cfg.String()).Msg("single run, standard deviation reported as zero")
		}
		results = append(results, result)
	}
	return results, nil
}
