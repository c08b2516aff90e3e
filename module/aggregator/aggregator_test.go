package aggregator

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/onflow/consensus-bench/model/bench"
	"github.com/onflow/consensus-bench/module/logparser"
	"github.com/onflow/consensus-bench/module/metrics"
	"github.com/onflow/consensus-bench/module/runstats"
	"github.com/onflow/consensus-bench/utils/unittest"
)

func runFixture(id string, cfg bench.Config, tps float64, latency float64) *bench.RunStats {
	return &bench.RunStats{
		RunID:         id,
		Config:        cfg,
		Nodes:         1,
		ThroughputTPS: tps,
		MeanLatency:   latency,
		Committed:     100,
		ErrorCount:    1,
	}
}

func TestAggregate(t *testing.T) {
	cfg := unittest.ConfigFixture()

	t.Run("mean and sample standard deviation", func(t *testing.T) {
		result, err := Aggregate([]*bench.RunStats{
			runFixture("a", cfg, 990, 0.04),
			runFixture("b", cfg, 1000, 0.05),
			runFixture("c", cfg, 1010, 0.06),
		})
		require.NoError(t, err)
		assert.Equal(t, cfg, result.Config)
		assert.Equal(t, 3, result.RunCount)
		assert.Equal(t, float64(1000), result.TPSMean)
		assert.Equal(t, float64(10), result.TPSStdev)
		assert.InDelta(t, 0.05, result.LatencyMean, 1e-12)
		assert.InDelta(t, 0.01, result.LatencyStdev, 1e-12)
		assert.Equal(t, uint64(300), result.Committed)
		assert.Equal(t, uint64(3), result.ErrorCount)
	})

	t.Run("single run has zero deviation", func(t *testing.T) {
		result, err := Aggregate([]*bench.RunStats{runFixture("a", cfg, 990, 0.05)})
		require.NoError(t, err)
		assert.Equal(t, 1, result.RunCount)
		assert.Equal(t, float64(990), result.TPSMean)
		assert.Zero(t, result.TPSStdev)
		assert.Equal(t, 0.05, result.LatencyMean)
		assert.Zero(t, result.LatencyStdev)
	})

	t.Run("runs without latency are excluded from latency statistics", func(t *testing.T) {
		result, err := Aggregate([]*bench.RunStats{
			runFixture("a", cfg, 990, 0.05),
			runFixture("b", cfg, 0, bench.UndefinedLatency),
		})
		require.NoError(t, err)
		assert.Equal(t, 2, result.RunCount)
		assert.Equal(t, float64(495), result.TPSMean)
		assert.Equal(t, 0.05, result.LatencyMean)
		assert.Zero(t, result.LatencyStdev)
	})

	t.Run("no run with latency", func(t *testing.T) {
		result, err := Aggregate([]*bench.RunStats{
			runFixture("a", cfg, 0, bench.UndefinedLatency),
			runFixture("b", cfg, 0, bench.UndefinedLatency),
		})
		require.NoError(t, err)
		assert.False(t, result.HasLatency())
		assert.True(t, bench.IsUndefined(result.LatencyStdev))
	})

	t.Run("no runs", func(t *testing.T) {
		_, err := Aggregate(nil)
		require.Error(t, err)
		assert.True(t, bench.IsParseError(err))
		assert.True(t, errors.Is(err, bench.ErrNoRuns))
	})
}

func TestAggregateConfigMismatch(t *testing.T) {
	cfg := unittest.ConfigFixture()
	other := unittest.ConfigFixture(unittest.WithCommitteeSize(8))

	_, err := Aggregate([]*bench.RunStats{
		runFixture("a", cfg, 990, 0.05),
		runFixture("b", other, 980, 0.06),
	})
	require.Error(t, err)
	assert.True(t, bench.IsParseError(err))
	assert.True(t, bench.IsConfigMismatchError(err))

	var mismatch bench.ConfigMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, "b", mismatch.RunID)
	assert.Equal(t, cfg, mismatch.Expected)
	assert.Equal(t, other, mismatch.Detected)
}

// Runs of two different committee sizes are never blended.
func TestAggregateNeverBlendsCommittees(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := rapid.Uint64Range(1, 100).Draw(t, "a")
		b := rapid.Uint64Range(1, 100).Filter(func(v uint64) bool { return v != a }).Draw(t, "b")
		n := rapid.IntRange(1, 5).Draw(t, "n")

		var runs []*bench.RunStats
		for i := 0; i < n; i++ {
			runs = append(runs, runFixture("x", unittest.ConfigFixture(unittest.WithCommitteeSize(a)), 100, 0.1))
		}
		pos := rapid.IntRange(0, n).Draw(t, "pos")
		odd := runFixture("y", unittest.ConfigFixture(unittest.WithCommitteeSize(b)), 100, 0.1)
		runs = append(runs[:pos], append([]*bench.RunStats{odd}, runs[pos:]...)...)

		result, err := Aggregate(runs)
		require.Error(t, err)
		assert.Nil(t, result)
		assert.True(t, bench.IsParseError(err))
		assert.True(t, bench.IsConfigMismatchError(err))
	})
}

func TestAggregatorGroupsByConfig(t *testing.T) {
	small := unittest.ConfigFixture()
	large := unittest.ConfigFixture(unittest.WithCommitteeSize(8))
	slow := unittest.ConfigFixture(unittest.WithInputRate(500))

	runs := []*bench.RunStats{
		runFixture("r3", large, 900, 0.08),
		runFixture("r1", small, 990, 0.05),
		runFixture("r4", slow, 500, 0.02),
		runFixture("r2", small, 1000, 0.04),
	}

	agg := New(unittest.Logger(), metrics.NewNoopCollector())
	for _, run := range runs {
		agg.Add(run)
	}
	results, err := agg.Results()
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, slow, results[0].Config)
	assert.Equal(t, small, results[1].Config)
	assert.Equal(t, large, results[2].Config)
	assert.Equal(t, 2, results[1].RunCount)
	assert.Equal(t, float64(995), results[1].TPSMean)

	// the order in which runs are added does not matter
	reversed := New(unittest.Logger(), metrics.NewNoopCollector())
	for i := len(runs) - 1; i >= 0; i-- {
		reversed.Add(runs[i])
	}
	again, err := reversed.Results()
	require.NoError(t, err)

	var first, second bytes.Buffer
	require.NoError(t, WriteReport(&first, bench.DefaultUnits, results))
	require.NoError(t, WriteReport(&second, bench.DefaultUnits, again))
	assert.Equal(t, first.Bytes(), second.Bytes())
}

// Three runs of the local default configuration, each with 30000 created and
// 29700 executed transactions.
func TestAggregateRunLogs(t *testing.T) {
	cfg := unittest.ConfigFixture()
	latencies := []time.Duration{49 * time.Millisecond, 50 * time.Millisecond, 51 * time.Millisecond}

	agg := New(unittest.Logger(), metrics.NewNoopCollector())
	for i, latency := range latencies {
		record, err := logparser.Parse("node.log", unittest.RunLog(cfg, 30000, 300, latency))
		require.NoError(t, err)
		record.RunID = string(rune('a' + i))

		run, err := runstats.Compute(unittest.Logger(), metrics.NewNoopCollector(), []*bench.LogRecord{record})
		require.NoError(t, err)
		agg.Add(run)
	}

	results, err := agg.Results()
	require.NoError(t, err)
	require.Len(t, results, 1)

	result := results[0]
	assert.Equal(t, 3, result.RunCount)
	assert.Equal(t, float64(990), result.TPSMean)
	assert.Zero(t, result.TPSStdev)
	assert.InDelta(t, 0.05, result.LatencyMean, 1e-9)
	assert.InDelta(t, 0.001, result.LatencyStdev, 1e-9)
	assert.Equal(t, uint64(3*29700), result.Committed)
}
