// Package runstats computes the throughput and latency statistics of a single
// benchmark run from the logs of the nodes that took part in it.
package runstats

import (
	"fmt"
	"sort"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/rs/zerolog"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/onflow/consensus-bench/model/bench"
	"github.com/onflow/consensus-bench/module"
)

// merged is the view of one transaction or batch across every log of a run.
type merged struct {
	id       bench.EventID
	created  time.Time
	executed time.Time
	txs      uint64
	isCreate bool
	isExec   bool
}

// Compute merges the records of one run and computes its statistics.
//
// Every record must carry the same run identity and configuration. A creation
// logged by a client is matched with the execution logged by any node; the
// earliest creation and the earliest execution of an ID are used. Latencies
// that are zero or negative, which only skewed clocks produce, are discarded.
//
// Expected errors:
//   - bench.ParseError wrapping bench.ErrEmptyRun if no record is given
//   - bench.ParseError if records of different runs are mixed
//   - bench.ParseError wrapping bench.ConfigMismatchError if configurations differ
func Compute(log zerolog.Logger, metrics module.RunStatsMetrics, records []*bench.LogRecord) (*bench.RunStats, error) {
	if len(records) == 0 {
		return nil, bench.NewParseError("", bench.ErrEmptyRun)
	}
	first := records[0]
	for _, r := range records[1:] {
		if r.RunID != first.RunID {
			return nil, bench.NewParseErrorf(r.Source, "record of run %q mixed with run %q", r.RunID, first.RunID)
		}
		if r.Config != first.Config {
			return nil, bench.NewConfigMismatchError(r.Source, first.RunID, first.Config, r.Config)
		}
	}
	log = log.With().Str("component", "run_stats").Str("run", first.RunID).Logger()

	events := mergeRecords(records)

	result := &bench.RunStats{
		RunID:       first.RunID,
		Config:      first.Config,
		Nodes:       len(records),
		MeanLatency: bench.UndefinedLatency,
		P50Latency:  bench.UndefinedLatency,
		P99Latency:  bench.UndefinedLatency,
	}

	var firstCreated, lastExecuted time.Time
	for _, e := range events {
		if !e.isCreate {
			continue
		}
		result.Created += e.txs
		if firstCreated.IsZero() || e.created.Before(firstCreated) {
			firstCreated = e.created
		}
		if !e.isExec {
			continue
		}
		result.Committed += e.txs
		if e.executed.After(lastExecuted) {
			lastExecuted = e.executed
		}

		latency := e.executed.Sub(e.created)
		if latency <= 0 {
			result.Discarded++
			log.Debug().Str("id", e.id.String()).Dur("latency", latency).Msg("discarding non-positive latency")
			continue
		}
		result.LatencySamples = append(result.LatencySamples, latency.Seconds())
	}

	if result.Committed > 0 {
		span := lastExecuted.Sub(firstCreated)
		if span > 0 {
			result.Duration = span.Seconds()
			result.ThroughputTPS = float64(result.Committed) / result.Duration
		}
	}

	if len(result.LatencySamples) > 0 {
		err := summarizeLatency(result)
		if err != nil {
			return nil, fmt.Errorf("could not compute latency of run %q: %w", first.RunID, err)
		}
	}

	for _, r := range records {
		result.ErrorCount += r.ErrorCount
	}
	if result.Created > 0 {
		result.ErrorRate = float64(result.ErrorCount) / float64(result.Created)
	}

	if result.Discarded > 0 {
		log.Warn().
			Uint64("discarded", result.Discarded).
			Msg("discarded latency samples with non-positive latency, node clocks may be skewed")
		metrics.SamplesDiscarded(result.Discarded)
	}
	metrics.RunComputed(result.ThroughputTPS)

	event := log.Info().
		Int("nodes", result.Nodes).
		Uint64("created", result.Created).
		Uint64("committed", result.Committed).
		Float64("tps", result.ThroughputTPS).
		Uint64("errors", result.ErrorCount)
	if result.HasLatency() {
		event = event.Float64("latency", result.MeanLatency)
	}
	event.Msg("computed run statistics")

	return result, nil
}

func summarizeLatency(result *bench.RunStats) error {
	data := stats.Float64Data(result.LatencySamples)
	mean, err := stats.Mean(data)
	if err != nil {
		return fmt.Errorf("mean: %w", err)
	}
	p50, err := stats.PercentileNearestRank(data, 50)
	if err != nil {
		return fmt.Errorf("p50: %w", err)
	}
	p99, err := stats.PercentileNearestRank(data, 99)
	if err != nil {
		return fmt.Errorf("p99: %w", err)
	}
	result.MeanLatency = mean
	result.P50Latency = p50
	result.P99Latency = p99
	return nil
}

// mergeRecords combines the events of every record by ID and returns them
// ordered by creation time, then ID. Executions without any creation come last.
func mergeRecords(records []*bench.LogRecord) []*merged {
	byID := make(map[bench.EventID]*merged)
	get := func(id bench.EventID) *merged {
		m, ok := byID[id]
		if !ok {
			m = &merged{id: id}
			byID[id] = m
		}
		return m
	}
	create := func(id bench.EventID, at time.Time, txs uint64) {
		m := get(id)
		if !m.isCreate || at.Before(m.created) {
			m.created = at
		}
		if !m.isCreate || m.txs == 0 {
			m.txs = txs
		}
		m.isCreate = true
	}
	execute := func(id bench.EventID, at time.Time) {
		m := get(id)
		if !m.isExec || at.Before(m.executed) {
			m.executed = at
		}
		m.isExec = true
	}

	for _, r := range records {
		for _, s := range r.Samples {
			create(s.ID, s.CreatedAt, s.Txs)
			execute(s.ID, s.ExecutedAt)
		}
		for _, e := range r.Pending {
			create(e.ID, e.At, e.Txs)
		}
		for _, e := range r.Orphans {
			execute(e.ID, e.At)
		}
	}

	events := maps.Values(byID)
	sort.Slice(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if a.isCreate != b.isCreate {
			return a.isCreate
		}
		if !a.created.Equal(b.created) {
			return a.created.Before(b.created)
		}
		return a.id.Less(b.id)
	})
	return events
}

// GroupRuns groups records by run identity. Groups are ordered by run identity
// and keep the relative order of their records.
func GroupRuns(records []*bench.LogRecord) [][]*bench.LogRecord {
	byRun := make(map[string][]*bench.LogRecord)
	for _, r := range records {
		byRun[r.RunID] = append(byRun[r.RunID], r)
	}
	runs := maps.Keys(byRun)
	slices.Sort(runs)

	groups := make([][]*bench.LogRecord, 0, len(runs))
	for _, run := range runs {
		groups = append(groups, byRun[run])
	}
	return groups
}

// ComputeRuns groups the records by run and computes the statistics of every
// run, ordered by run identity.
func ComputeRuns(log zerolog.Logger, metrics module.RunStatsMetrics, records []*bench.LogRecord) ([]*bench.RunStats, error) {
	groups := GroupRuns(records)
	runs := make([]*bench.RunStats, 0, len(groups))
	for _, group := range groups {
		run, err := Compute(log, metrics, group)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}
