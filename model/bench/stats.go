package bench

import (
	"math"
)

// UndefinedLatency is reported instead of a latency when no sample could be
// measured. It is never equal to any latency, including itself; use IsUndefined.
var UndefinedLatency = math.NaN()

// IsUndefined reports whether v is the undefined latency sentinel.
func IsUndefined(v float64) bool {
	return math.IsNaN(v)
}

// RunStats are the statistics of a single benchmark run, possibly merged from
// the logs of several nodes.
type RunStats struct {
	RunID  string
	Config Config
	Nodes  int // number of logs merged into this run

	Created   uint64  // transactions attempted
	Committed uint64  // transactions matched with an execution
	Duration  float64 // seconds between the first creation and the last execution

	ThroughputTPS  float64
	LatencySamples []float64 // seconds, ordered by creation time
	MeanLatency    float64
	P50Latency     float64
	P99Latency     float64
	Discarded      uint64 // samples dropped for a non-positive latency

	ErrorCount uint64
	ErrorRate  float64
}

// HasLatency reports whether the run measured at least one latency sample.
func (s *RunStats) HasLatency() bool {
	return !IsUndefined(s.MeanLatency)
}

// AggregateResult summarizes repeated runs of one configuration. Latencies are
// in seconds when computed from runs. Results read back from a report hold
// the report's Units instead.
type AggregateResult struct {
	Config       Config
	RunCount     int
	TPSMean      float64
	TPSStdev     float64
	LatencyMean  float64
	LatencyStdev float64

	// Totals across the runs. They are not persisted in reports.
	Committed  uint64
	ErrorCount uint64
}

// HasLatency reports whether at least one aggregated run measured a latency.
func (r *AggregateResult) HasLatency() bool {
	return !IsUndefined(r.LatencyMean)
}

// Units are the units of the values persisted in a report.
type Units struct {
	Throughput string
	Latency    string
}

const (
	UnitTxPerSecond = "tx/s"
	UnitSeconds     = "s"
	UnitMillis      = "ms"
)

// DefaultUnits are the units the statistics are computed in.
var DefaultUnits = Units{Throughput: UnitTxPerSecond, Latency: UnitSeconds}

// LatencyScale returns the factor converting seconds into the latency unit.
func (u Units) LatencyScale() (float64, bool) {
	switch u.Latency {
	case UnitSeconds:
		return 1, true
	case UnitMillis:
		return 1000, true
	default:
		return 0, false
	}
}
