package module

import (
	"time"
)

// LogParserMetrics tracks the parsing of raw benchmark logs.
type LogParserMetrics interface {
	// LogParsed is called for every log file that produced a usable record.
	LogParsed(duration time.Duration, samples int)

	// LogFailed is called for every log file that could not be used.
	LogFailed()

	// LogTruncated is called for every usable log whose final line was cut short.
	LogTruncated()
}

// RunStatsMetrics tracks the computation of per run statistics.
type RunStatsMetrics interface {
	// SamplesDiscarded reports latency samples dropped for a non-positive latency.
	SamplesDiscarded(count uint64)

	// RunComputed is called for every run whose statistics were computed.
	RunComputed(throughput float64)
}

// AggregationMetrics tracks the aggregation and plotting stages.
type AggregationMetrics interface {
	// ConfigAggregated is called for every configuration written to a report.
	ConfigAggregated(runs int)

	// FigureRendered is called for every plot artifact written.
	FigureRendered(kind string)
}

// BenchmarkMetrics is the union of the metrics of the analysis pipeline.
type BenchmarkMetrics interface {
	LogParserMetrics
	RunStatsMetrics
	AggregationMetrics
}
