// Package plot compares aggregated benchmark results across configurations and
// renders throughput and latency figures.
package plot

import (
	"sort"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/onflow/consensus-bench/model/bench"
	"github.com/onflow/consensus-bench/module/aggregator"
)

// ResultSet is a set of aggregate results expressed in one set of units, with
// at most one result per configuration.
type ResultSet struct {
	Units   bench.Units
	Results []*bench.AggregateResult // ordered by configuration
}

// NewResultSet builds a result set.
//
// Expected errors:
//   - bench.PlotError if two results share a configuration
func NewResultSet(units bench.Units, results []*bench.AggregateResult) (*ResultSet, error) {
	seen := make(map[bench.Config]struct{}, len(results))
	for _, r := range results {
		if _, ok := seen[r.Config]; ok {
			return nil, bench.NewPlotErrorf("duplicate results for configuration (%s)", r.Config)
		}
		seen[r.Config] = struct{}{}
	}
	sorted := append([]*bench.AggregateResult(nil), results...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Config.Less(sorted[j].Config)
	})
	return &ResultSet{Units: units, Results: sorted}, nil
}

// Load reads aggregation reports into a single result set.
//
// Expected errors:
//   - bench.ParseError if a report is malformed
//   - bench.PlotError if no file is given, if the reports use different units,
//     or if a configuration appears in more than one report
func Load(files []string) (*ResultSet, error) {
	if len(files) == 0 {
		return nil, bench.NewPlotErrorf("no result files to load")
	}
	files = append([]string(nil), files...)
	slices.Sort(files)

	var (
		units   bench.Units
		results []*bench.AggregateResult
		origin  = make(map[bench.Config]string)
	)
	for i, file := range files {
		fileUnits, fileResults, err := aggregator.ReadReportFile(file)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			units = fileUnits
		} else if fileUnits != units {
			return nil, bench.NewPlotErrorf("%s uses units (tps=%s latency=%s) but %s uses (tps=%s latency=%s)",
				file, fileUnits.Throughput, fileUnits.Latency, files[0], units.Throughput, units.Latency)
		}
		for _, r := range fileResults {
			if previous, ok := origin[r.Config]; ok {
				return nil, bench.NewPlotErrorf("configuration (%s) found in both %s and %s", r.Config, previous, file)
			}
			origin[r.Config] = file
			results = append(results, r)
		}
	}
	return NewResultSet(units, results)
}

// SeriesPoint is the result of one value of the varied parameter.
type SeriesPoint struct {
	Value  uint64
	Result *bench.AggregateResult
}

// Series holds results that differ only in the varied parameter.
type Series struct {
	Param  bench.Parameter
	Fixed  bench.Config  // shared configuration, with the varied field zeroed
	Points []SeriesPoint // ascending by value
}

// Label describes the fixed part of the configuration.
func (s *Series) Label() string {
	parts := make([]string, 0, len(bench.Parameters)-1)
	for _, p := range bench.Parameters {
		if p != s.Param {
			parts = append(parts, p.Format(s.Fixed))
		}
	}
	return strings.Join(parts, ", ")
}

// Group splits the result set into series along param. Series are ordered by
// their fixed configuration.
//
// Expected errors:
//   - bench.PlotError if param is not a known parameter
//   - bench.PlotError if fewer than two distinct values of param are present
func (rs *ResultSet) Group(param bench.Parameter) ([]*Series, error) {
	if _, err := bench.ParseParameter(string(param)); err != nil {
		return nil, bench.NewPlotErrorf("cannot group results: %w", err)
	}
	byFixed := make(map[bench.Config]*Series)
	values := make(map[uint64]struct{})
	for _, r := range rs.Results {
		fixed := param.Without(r.Config)
		s, ok := byFixed[fixed]
		if !ok {
			s = &Series{Param: param, Fixed: fixed}
			byFixed[fixed] = s
		}
		v := param.Value(r.Config)
		values[v] = struct{}{}
		s.Points = append(s.Points, SeriesPoint{Value: v, Result: r})
	}
	if len(values) < 2 {
		return nil, bench.NewPlotErrorf("cannot compare %s: found %d distinct value(s), need at least 2", param, len(values))
	}

	series := maps.Values(byFixed)
	sort.Slice(series, func(i, j int) bool {
		return series[i].Fixed.Less(series[j].Fixed)
	})
	for _, s := range series {
		sort.Slice(s.Points, func(i, j int) bool {
			return s.Points[i].Value < s.Points[j].Value
		})
	}
	return series, nil
}
