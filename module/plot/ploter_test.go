package plot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onflow/consensus-bench/model/bench"
	"github.com/onflow/consensus-bench/module/aggregator"
	"github.com/onflow/consensus-bench/module/logparser"
	"github.com/onflow/consensus-bench/module/metrics"
	"github.com/onflow/consensus-bench/module/runstats"
	"github.com/onflow/consensus-bench/utils/unittest"
)

// recorder is a Renderer that keeps the figures instead of drawing them.
type recorder struct {
	figures []*Figure
	err     error
}

func (r *recorder) Render(fig *Figure) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	r.figures = append(r.figures, fig)
	return fig.Name + ".fake", nil
}

func TestFigures(t *testing.T) {
	c4 := unittest.ConfigFixture()
	c8 := unittest.ConfigFixture(unittest.WithCommitteeSize(8))
	set, err := NewResultSet(bench.DefaultUnits, []*bench.AggregateResult{
		resultFixture(c8, 980, 0.07),
		resultFixture(c4, 990, 0.05),
	})
	require.NoError(t, err)

	tps, err := TPSFigure(bench.ParameterCommitteeSize, set)
	require.NoError(t, err)
	assert.Equal(t, "tps-committee_size", tps.Name)
	assert.Equal(t, "Committee size", tps.XLabel)
	assert.Equal(t, "Throughput (tx/s)", tps.YLabel)
	require.Len(t, tps.Curves, 1)
	assert.Equal(t, []Point{{X: 4, Y: 990, YErr: 9.9}, {X: 8, Y: 980, YErr: 9.8}}, tps.Curves[0].Points)

	latency, err := LatencyFigure(bench.ParameterCommitteeSize, set)
	require.NoError(t, err)
	assert.Equal(t, "latency-committee_size", latency.Name)
	assert.Equal(t, "Latency (s)", latency.YLabel)
	require.Len(t, latency.Curves, 1)
	assert.Equal(t, float64(4), latency.Curves[0].Points[0].X)
	assert.Equal(t, 0.05, latency.Curves[0].Points[0].Y)
}

func TestLatencyFigureSkipsUndefinedLatency(t *testing.T) {
	c4 := unittest.ConfigFixture()
	c8 := unittest.ConfigFixture(unittest.WithCommitteeSize(8))
	c16 := unittest.ConfigFixture(unittest.WithCommitteeSize(16))

	set, err := NewResultSet(bench.DefaultUnits, []*bench.AggregateResult{
		resultFixture(c4, 990, 0.05),
		resultFixture(c8, 0, bench.UndefinedLatency),
		resultFixture(c16, 970, 0.09),
	})
	require.NoError(t, err)
	fig, err := LatencyFigure(bench.ParameterCommitteeSize, set)
	require.NoError(t, err)
	require.Len(t, fig.Curves, 1)
	require.Len(t, fig.Curves[0].Points, 2)
	assert.Equal(t, float64(16), fig.Curves[0].Points[1].X)

	// only one value left with a latency
	set, err = NewResultSet(bench.DefaultUnits, []*bench.AggregateResult{
		resultFixture(c4, 990, 0.05),
		resultFixture(c8, 0, bench.UndefinedLatency),
	})
	require.NoError(t, err)
	_, err = LatencyFigure(bench.ParameterCommitteeSize, set)
	require.Error(t, err)
	assert.True(t, bench.IsPlotError(err))

	// the throughput can still be compared
	_, err = TPSFigure(bench.ParameterCommitteeSize, set)
	require.NoError(t, err)
}

func TestPloter(t *testing.T) {
	c4 := unittest.ConfigFixture()
	c8 := unittest.ConfigFixture(unittest.WithCommitteeSize(8))
	set, err := NewResultSet(bench.DefaultUnits, []*bench.AggregateResult{
		resultFixture(c4, 990, 0.05),
		resultFixture(c8, 980, 0.07),
	})
	require.NoError(t, err)

	registry := prometheus.NewRegistry()
	collector := metrics.NewPipelineCollector(registry)
	renderer := &recorder{}
	ploter := NewPloter(unittest.Logger(), collector, renderer)

	path, err := ploter.PlotTPS(bench.ParameterCommitteeSize, set)
	require.NoError(t, err)
	assert.Equal(t, "tps-committee_size.fake", path)
	path, err = ploter.PlotLatency(bench.ParameterCommitteeSize, set)
	require.NoError(t, err)
	assert.Equal(t, "latency-committee_size.fake", path)
	assert.Len(t, renderer.figures, 2)

	_, err = ploter.PlotTPS(bench.ParameterDuration, set)
	require.Error(t, err)
	assert.True(t, bench.IsPlotError(err))
	assert.Len(t, renderer.figures, 2, "nothing is rendered for an insufficient comparison")

	for _, plot := range []func(bench.Parameter, *ResultSet) (string, error){ploter.PlotTPS, ploter.PlotLatency} {
		_, err = plot(bench.Parameter("nodes"), set)
		require.Error(t, err)
		assert.True(t, bench.IsPlotError(err))
	}
	assert.Len(t, renderer.figures, 2)

	renderer.err = errors.New("disk on fire")
	_, err = ploter.PlotTPS(bench.ParameterCommitteeSize, set)
	require.Error(t, err)
	assert.ErrorIs(t, err, renderer.err)

	count, err := testutil.GatherAndCount(registry, "benchmark_plot_figures_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestGonumRenderer(t *testing.T) {
	_, err := NewGonumRenderer(".", "bmp")
	require.Error(t, err)

	unittest.RunWithTempDir(t, func(dir string) {
		renderer, err := NewGonumRenderer(dir, "svg")
		require.NoError(t, err)

		path, err := renderer.Render(&Figure{
			Name:   "tps-committee_size",
			Title:  "Throughput by Committee size",
			XLabel: "Committee size",
			YLabel: "Throughput (tx/s)",
			Curves: []Curve{
				{Label: "1000 tx/s, 512 B, 30 s", Points: []Point{{X: 4, Y: 990, YErr: 1.5}, {X: 8, Y: 980, YErr: 2}}},
				{Label: "500 tx/s, 512 B, 30 s", Points: []Point{{X: 4, Y: 498, YErr: 0}, {X: 8, Y: 495, YErr: 1}}},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "tps-committee_size.svg"), path)

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(content), "<svg")
	})
}

func TestGnuplotRenderer(t *testing.T) {
	unittest.RunWithTempDir(t, func(dir string) {
		renderer := &GnuplotRenderer{log: unittest.Logger(), dir: dir, format: "png"}

		path, err := renderer.Render(&Figure{
			Name:   "latency-committee_size",
			Title:  "Latency by Committee size",
			XLabel: "Committee size",
			YLabel: "Latency (s)",
			Curves: []Curve{
				{Label: "1000 tx/s, 512 B, 30 s", Points: []Point{{X: 4, Y: 0.05, YErr: 0.001}, {X: 8, Y: 0.07, YErr: 0.002}}},
				{Label: "500 tx/s, 512 B, 30 s", Points: []Point{{X: 4, Y: 0.03, YErr: 0}}},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "latency-committee_size.gp"), path)

		data, err := os.ReadFile(filepath.Join(dir, "latency-committee_size.dat"))
		require.NoError(t, err)
		assert.Equal(t, "# 1000 tx/s, 512 B, 30 s\n4 0.05 0.001\n8 0.07 0.002\n\n\n# 500 tx/s, 512 B, 30 s\n4 0.03 0\n", string(data))

		script, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(script), "set terminal pngcairo")
		assert.Contains(t, string(script), `set output "latency-committee_size.png"`)
		assert.Contains(t, string(script), `"latency-committee_size.dat" index 0 using 1:2:3 with yerrorlines title "1000 tx/s, 512 B, 30 s"`)
		assert.Contains(t, string(script), `"latency-committee_size.dat" index 1 using 1:2:3 with yerrorlines title "500 tx/s, 512 B, 30 s"`)
	})
}

// Three runs of committee size 4 and one of committee size 8 go from raw logs
// to a two-point comparison.
func TestPlotRunLogs(t *testing.T) {
	log := unittest.Logger()
	collector := metrics.NewNoopCollector()

	unittest.RunWithTempDir(t, func(dir string) {
		c4 := unittest.ConfigFixture()
		c8 := unittest.ConfigFixture(unittest.WithCommitteeSize(8))

		var files []string
		for i, latency := range []time.Duration{49 * time.Millisecond, 50 * time.Millisecond, 51 * time.Millisecond} {
			name := fmt.Sprintf("logs-4/run-%d/node-0.log", i)
			files = append(files, unittest.WriteFile(t, dir, name, unittest.RunLog(c4, 30000, 300, latency)))
		}
		files = append(files, unittest.WriteFile(t, dir, "logs-8/run-0/node-0.log", unittest.RunLog(c8, 30000, 600, 80*time.Millisecond)))

		batch, err := logparser.NewBatchParser(log, collector, 4).ParseFiles(context.Background(), files)
		require.NoError(t, err)
		require.Len(t, batch.Records, 4)

		// one report per committee size, as produced by separate benchmark campaigns
		var reports []string
		for _, committee := range []uint64{4, 8} {
			var records []*bench.LogRecord
			for _, r := range batch.Records {
				if r.Config.CommitteeSize == committee {
					records = append(records, r)
				}
			}
			runs, err := runstats.ComputeRuns(log, collector, records)
			require.NoError(t, err)

			agg := aggregator.New(log, collector)
			for _, run := range runs {
				agg.Add(run)
			}
			results, err := agg.Results()
			require.NoError(t, err)

			report := filepath.Join(dir, "results", fmt.Sprintf("committee-%d.txt", committee))
			require.NoError(t, aggregator.WriteReportFile(report, bench.DefaultUnits, results))
			reports = append(reports, report)
		}

		set, err := Load(reports)
		require.NoError(t, err)
		require.Len(t, set.Results, 2)
		assert.Equal(t, 3, set.Results[0].RunCount)
		assert.Equal(t, float64(990), set.Results[0].TPSMean)
		assert.InDelta(t, 0.05, set.Results[0].LatencyMean, 1e-9)
		assert.Equal(t, 1, set.Results[1].RunCount)
		assert.Equal(t, float64(980), set.Results[1].TPSMean)

		renderer := &recorder{}
		ploter := NewPloter(log, collector, renderer)
		_, err = ploter.PlotTPS(bench.ParameterCommitteeSize, set)
		require.NoError(t, err)
		_, err = ploter.PlotLatency(bench.ParameterCommitteeSize, set)
		require.NoError(t, err)

		require.Len(t, renderer.figures, 2)
		for _, fig := range renderer.figures {
			require.Len(t, fig.Curves, 1)
			points := fig.Curves[0].Points
			require.Len(t, points, 2)
			assert.Equal(t, float64(4), points[0].X)
			assert.Equal(t, float64(8), points[1].X)
		}
		tps := renderer.figures[0].Curves[0].Points
		assert.True(t, tps[0].Y > tps[1].Y)
	})
}
