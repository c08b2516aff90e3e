package runstats

import (
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/onflow/consensus-bench/model/bench"
	"github.com/onflow/consensus-bench/module/logparser"
	"github.com/onflow/consensus-bench/module/metrics"
	"github.com/onflow/consensus-bench/utils/unittest"
)

func parse(t require.TestingT, source string, text string) *bench.LogRecord {
	record, err := logparser.Parse(source, text)
	require.NoError(t, err)
	if record.RunID == "" {
		record.RunID = "run-1"
	}
	return record
}

func TestComputeSingleNode(t *testing.T) {
	cfg := unittest.ConfigFixture()
	record := parse(t, "node.log", unittest.RunLog(cfg, 30000, 300, 50*time.Millisecond))

	run, err := Compute(unittest.Logger(), metrics.NewNoopCollector(), []*bench.LogRecord{record})
	require.NoError(t, err)

	assert.Equal(t, "run-1", run.RunID)
	assert.Equal(t, cfg, run.Config)
	assert.Equal(t, 1, run.Nodes)
	assert.Equal(t, uint64(30000), run.Created)
	assert.Equal(t, uint64(29700), run.Committed)
	assert.Equal(t, float64(30), run.Duration)
	assert.Equal(t, float64(990), run.ThroughputTPS)
	assert.Len(t, run.LatencySamples, 29700)
	assert.True(t, run.HasLatency())
	assert.InDelta(t, 0.05, run.MeanLatency, 1e-9)
	assert.Equal(t, 0.05, run.P50Latency)
	assert.Equal(t, 0.05, run.P99Latency)
	assert.Zero(t, run.Discarded)
	assert.Zero(t, run.ErrorRate)
}

// A client creates the transactions and the validators execute them.
func TestComputeAcrossNodes(t *testing.T) {
	cfg := unittest.ConfigFixture()
	client := unittest.NewLogBuilder().
		Header(bench.RoleClient, cfg).
		Created(0, 1).
		Created(time.Second, 2).
		Created(2*time.Second, 3).
		Created(3*time.Second, 4).
		String()
	validatorA := unittest.NewLogBuilder().
		Header(bench.RoleValidator, cfg).
		Executed(1500*time.Millisecond, 1).
		Executed(3*time.Second, 2).
		Error(4*time.Second, "lost connection to peer").
		String()
	validatorB := unittest.NewLogBuilder().
		Header(bench.RoleValidator, cfg).
		Executed(1200*time.Millisecond, 1).
		Executed(2*time.Second, 3).
		Executed(5*time.Second, 9).
		String()

	records := []*bench.LogRecord{
		parse(t, "client.log", client),
		parse(t, "validator-a.log", validatorA),
		parse(t, "validator-b.log", validatorB),
	}
	run, err := Compute(unittest.Logger(), metrics.NewNoopCollector(), records)
	require.NoError(t, err)

	assert.Equal(t, 3, run.Nodes)
	assert.Equal(t, uint64(4), run.Created)
	assert.Equal(t, uint64(3), run.Committed)
	assert.Equal(t, float64(3), run.Duration)
	assert.Equal(t, float64(1), run.ThroughputTPS)

	// tx 1 uses the earliest execution, tx 3 has a zero latency
	assert.Equal(t, []float64{1.2, 2}, run.LatencySamples)
	assert.Equal(t, uint64(1), run.Discarded)
	assert.InDelta(t, 1.6, run.MeanLatency, 1e-12)

	assert.Equal(t, uint64(1), run.ErrorCount)
	assert.Equal(t, 0.25, run.ErrorRate)
}

func TestComputeBatches(t *testing.T) {
	cfg := unittest.ConfigFixture()
	text := unittest.NewLogBuilder().
		Header(bench.RoleLeader, cfg).
		CreatedBatch(0, 1, 100).
		CreatedBatch(time.Second, 2, 100).
		CreatedBatch(2*time.Second, 3, 50).
		CommittedBatch(2*time.Second, 1).
		CommittedBatch(4*time.Second, 2).
		String()

	run, err := Compute(unittest.Logger(), metrics.NewNoopCollector(), []*bench.LogRecord{parse(t, "a.log", text)})
	require.NoError(t, err)
	assert.Equal(t, uint64(250), run.Created)
	assert.Equal(t, uint64(200), run.Committed)
	assert.Equal(t, float64(50), run.ThroughputTPS)
	assert.Equal(t, []float64{2, 3}, run.LatencySamples)
}

func TestComputeWithoutSamples(t *testing.T) {
	cfg := unittest.ConfigFixture()

	t.Run("no events", func(t *testing.T) {
		text := unittest.NewLogBuilder().Header(bench.RoleLeader, cfg).String()
		run, err := Compute(unittest.Logger(), metrics.NewNoopCollector(), []*bench.LogRecord{parse(t, "a.log", text)})
		require.NoError(t, err)
		assert.Zero(t, run.ThroughputTPS)
		assert.Zero(t, run.ErrorRate)
		assert.False(t, run.HasLatency())
		assert.True(t, bench.IsUndefined(run.MeanLatency))
		assert.True(t, bench.IsUndefined(run.P50Latency))
		assert.True(t, bench.IsUndefined(run.P99Latency))
		assert.Empty(t, run.LatencySamples)
	})

	t.Run("only unmatched events", func(t *testing.T) {
		text := unittest.NewLogBuilder().
			Header(bench.RoleLeader, cfg).
			Created(0, 1).
			Created(time.Second, 2).
			Executed(2*time.Second, 7).
			String()
		run, err := Compute(unittest.Logger(), metrics.NewNoopCollector(), []*bench.LogRecord{parse(t, "a.log", text)})
		require.NoError(t, err)
		assert.Equal(t, uint64(2), run.Created)
		assert.Zero(t, run.Committed)
		assert.Zero(t, run.ThroughputTPS)
		assert.False(t, run.HasLatency())
	})

	t.Run("only non-positive latencies", func(t *testing.T) {
		text := unittest.NewLogBuilder().
			Header(bench.RoleLeader, cfg).
			Created(time.Second, 1).
			Executed(time.Second, 1).
			String()
		run, err := Compute(unittest.Logger(), metrics.NewNoopCollector(), []*bench.LogRecord{parse(t, "a.log", text)})
		require.NoError(t, err)
		assert.Equal(t, uint64(1), run.Committed)
		assert.Zero(t, run.ThroughputTPS)
		assert.Equal(t, uint64(1), run.Discarded)
		assert.False(t, run.HasLatency())
	})
}

func TestComputeErrors(t *testing.T) {
	cfg := unittest.ConfigFixture()
	a := &bench.LogRecord{Source: "a.log", RunID: "run-1", Config: cfg}
	b := &bench.LogRecord{Source: "b.log", RunID: "run-1", Config: unittest.ConfigFixture(unittest.WithCommitteeSize(8))}
	c := &bench.LogRecord{Source: "c.log", RunID: "run-2", Config: cfg}

	_, err := Compute(unittest.Logger(), metrics.NewNoopCollector(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, bench.ErrEmptyRun))

	_, err = Compute(unittest.Logger(), metrics.NewNoopCollector(), []*bench.LogRecord{a, b})
	require.Error(t, err)
	assert.True(t, bench.IsParseError(err))
	assert.True(t, bench.IsConfigMismatchError(err))
	assert.Contains(t, err.Error(), "b.log")

	_, err = Compute(unittest.Logger(), metrics.NewNoopCollector(), []*bench.LogRecord{a, c})
	require.Error(t, err)
	assert.True(t, bench.IsParseError(err))
	assert.False(t, bench.IsConfigMismatchError(err))
}

func TestGroupRuns(t *testing.T) {
	cfg := unittest.ConfigFixture()
	records := []*bench.LogRecord{
		{Source: "x", RunID: "run-2", Config: cfg},
		{Source: "y", RunID: "run-1", Config: cfg},
		{Source: "z", RunID: "run-2", Config: cfg},
	}
	groups := GroupRuns(records)
	require.Len(t, groups, 2)
	assert.Equal(t, []*bench.LogRecord{records[1]}, groups[0])
	assert.Equal(t, []*bench.LogRecord{records[0], records[2]}, groups[1])

	runs, err := ComputeRuns(unittest.Logger(), metrics.NewNoopCollector(), records)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-1", runs[0].RunID)
	assert.Equal(t, 2, runs[1].Nodes)
}

// Recomputing the statistics by hand from the timestamp pairs written into a
// log must give exactly what the parsed log yields.
func TestComputeMatchesTimestampPairs(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 50).Draw(t, "n")
		type pair struct {
			id       uint64
			created  time.Duration
			executed time.Duration
		}
		pairs := make([]pair, n)
		b := unittest.NewLogBuilder().Header(bench.RoleLeader, unittest.ConfigFixture())
		for i := range pairs {
			created := time.Duration(rapid.Int64Range(0, 30_000).Draw(t, "created")) * time.Millisecond
			latency := time.Duration(rapid.Int64Range(-100, 5_000).Draw(t, "latency")) * time.Microsecond * 997
			pairs[i] = pair{id: uint64(i), created: created, executed: created + latency}
			b.Created(pairs[i].created, pairs[i].id)
			b.Executed(pairs[i].executed, pairs[i].id)
		}

		record, err := logparser.Parse("a.log", b.String())
		require.NoError(t, err)
		run, err := Compute(unittest.Logger(), metrics.NewNoopCollector(), []*bench.LogRecord{record})
		require.NoError(t, err)

		sort.Slice(pairs, func(i, j int) bool {
			if pairs[i].created != pairs[j].created {
				return pairs[i].created < pairs[j].created
			}
			return pairs[i].id < pairs[j].id
		})
		var (
			latencies []float64
			discarded uint64
			sum       float64
			last      time.Duration
		)
		for i, p := range pairs {
			if i == 0 || p.executed > last {
				last = p.executed
			}
			latency := p.executed - p.created
			if latency <= 0 {
				discarded++
				continue
			}
			latencies = append(latencies, latency.Seconds())
			sum += latency.Seconds()
		}
		span := last - pairs[0].created

		assert.Equal(t, uint64(n), run.Committed)
		assert.Equal(t, discarded, run.Discarded)
		assert.Equal(t, latencies, run.LatencySamples)
		if span > 0 {
			assert.Equal(t, float64(n)/span.Seconds(), run.ThroughputTPS)
		} else {
			assert.Zero(t, run.ThroughputTPS)
		}
		if len(latencies) == 0 {
			assert.False(t, run.HasLatency())
		} else {
			assert.Equal(t, sum/float64(len(latencies)), run.MeanLatency)
		}
	})
}
