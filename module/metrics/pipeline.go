package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/onflow/consensus-bench/module"
)

// PipelineCollector implements module.BenchmarkMetrics on Prometheus collectors.
type PipelineCollector struct {
	logsParsed       prometheus.Counter
	logsFailed       prometheus.Counter
	logsTruncated    prometheus.Counter
	parseDuration    prometheus.Histogram
	samplesParsed    prometheus.Counter
	samplesDiscarded prometheus.Counter
	runsComputed     prometheus.Counter
	runThroughput    prometheus.Gauge
	configsWritten   prometheus.Counter
	runsAggregated   prometheus.Counter
	figuresRendered  *prometheus.CounterVec
}

var _ module.BenchmarkMetrics = (*PipelineCollector)(nil)

func NewPipelineCollector(registerer prometheus.Registerer) *PipelineCollector {
	r := NewRegisterer(registerer)
	return &PipelineCollector{
		logsParsed: r.RegisterNewCounter(prometheus.CounterOpts{
			Namespace: namespaceBenchmark,
			Subsystem: subsystemParser,
			Name:      "logs_parsed_total",
			Help:      "number of log files that produced a usable record",
		}),
		logsFailed: r.RegisterNewCounter(prometheus.CounterOpts{
			Namespace: namespaceBenchmark,
			Subsystem: subsystemParser,
			Name:      "logs_failed_total",
			Help:      "number of log files skipped because they could not be parsed",
		}),
		logsTruncated: r.RegisterNewCounter(prometheus.CounterOpts{
			Namespace: namespaceBenchmark,
			Subsystem: subsystemParser,
			Name:      "logs_truncated_total",
			Help:      "number of usable log files whose final line was a partial write",
		}),
		parseDuration: r.RegisterNewHistogram(prometheus.HistogramOpts{
			Namespace: namespaceBenchmark,
			Subsystem: subsystemParser,
			Name:      "parse_duration_seconds",
			Help:      "time spent reading and parsing one log file",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		samplesParsed: r.RegisterNewCounter(prometheus.CounterOpts{
			Namespace: namespaceBenchmark,
			Subsystem: subsystemParser,
			Name:      "samples_total",
			Help:      "number of matched creation/execution pairs found in logs",
		}),
		samplesDiscarded: r.RegisterNewCounter(prometheus.CounterOpts{
			Namespace: namespaceBenchmark,
			Subsystem: subsystemRunStats,
			Name:      "samples_discarded_total",
			Help:      "number of latency samples discarded for a non-positive latency",
		}),
		runsComputed: r.RegisterNewCounter(prometheus.CounterOpts{
			Namespace: namespaceBenchmark,
			Subsystem: subsystemRunStats,
			Name:      "runs_total",
			Help:      "number of runs whose statistics were computed",
		}),
		runThroughput: r.RegisterNewGauge(prometheus.GaugeOpts{
			Namespace: namespaceBenchmark,
			Subsystem: subsystemRunStats,
			Name:      "last_run_tps",
			Help:      "throughput of the last computed run in transactions per second",
		}),
		configsWritten: r.RegisterNewCounter(prometheus.CounterOpts{
			Namespace: namespaceBenchmark,
			Subsystem: subsystemAggregator,
			Name:      "configs_total",
			Help:      "number of configurations aggregated",
		}),
		runsAggregated: r.RegisterNewCounter(prometheus.CounterOpts{
			Namespace: namespaceBenchmark,
			Subsystem: subsystemAggregator,
			Name:      "runs_total",
			Help:      "number of runs folded into aggregated configurations",
		}),
		figuresRendered: r.RegisterNewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceBenchmark,
			Subsystem: subsystemPlot,
			Name:      "figures_total",
			Help:      "number of plot artifacts rendered",
		}, []string{LabelFigure}),
	}
}

func (pc *PipelineCollector) LogParsed(duration time.Duration, samples int) {
	pc.logsParsed.Inc()
	pc.parseDuration.Observe(duration.Seconds())
	pc.samplesParsed.Add(float64(samples))
}

func (pc *PipelineCollector) LogFailed() {
	pc.logsFailed.Inc()
}

func (pc *PipelineCollector) LogTruncated() {
	pc.logsTruncated.Inc()
}

func (pc *PipelineCollector) SamplesDiscarded(count uint64) {
	pc.samplesDiscarded.Add(float64(count))
}

func (pc *PipelineCollector) RunComputed(throughput float64) {
	pc.runsComputed.Inc()
	pc.runThroughput.Set(throughput)
}

func (pc *PipelineCollector) ConfigAggregated(runs int) {
	pc.configsWritten.Inc()
	pc.runsAggregated.Add(float64(runs))
}

func (pc *PipelineCollector) FigureRendered(kind string) {
	pc.figuresRendered.WithLabelValues(kind).Inc()
}
