package aggregator

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"

	"github.com/onflow/consensus-bench/model/bench"
	utilsio "github.com/onflow/consensus-bench/utils/io"
)

// Report layout:
//
//	# consensus benchmark summary
//	# units: tps=tx/s latency=s
//	committee_size=4 input_rate=1000 tx_size=512 duration=30 run_count=3 tps=990±1.5 latency=0.05±0.0012
//
// One line per configuration, ordered by configuration, fields always in this
// order. Numbers use the shortest representation that reads back to the same
// float64. A latency that was never measured is written as n/a.
const (
	reportTitle  = "# consensus benchmark summary"
	unitsPrefix  = "# units:"
	stdevSep     = "±"
	notAvailable = "n/a"

	keyRunCount = "run_count"
	keyTPS      = "tps"
	keyLatency  = "latency"
)

// reportKeys lists the keys of a result line in order.
var reportKeys = []string{
	string(bench.ParameterCommitteeSize),
	string(bench.ParameterInputRate),
	string(bench.ParameterTxSize),
	string(bench.ParameterDuration),
	keyRunCount,
	keyTPS,
	keyLatency,
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteReport writes the results ordered by configuration. Latencies are
// converted from seconds into the latency unit of units. The output only
// depends on the set of results.
func WriteReport(w io.Writer, units bench.Units, results []*bench.AggregateResult) error {
	scale, ok := units.LatencyScale()
	if !ok {
		return fmt.Errorf("unsupported latency unit %q", units.Latency)
	}
	if units.Throughput != bench.UnitTxPerSecond {
		return fmt.Errorf("unsupported throughput unit %q", units.Throughput)
	}

	sorted := append([]*bench.AggregateResult(nil), results...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Config.Less(sorted[j].Config)
	})

	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, reportTitle)
	fmt.Fprintf(bw, "%s %s=%s %s=%s\n", unitsPrefix, keyTPS, units.Throughput, keyLatency, units.Latency)
	for _, r := range sorted {
		latency := notAvailable
		if r.HasLatency() {
			latency = formatFloat(r.LatencyMean*scale) + stdevSep + formatFloat(r.LatencyStdev*scale)
		}
		fmt.Fprintf(bw, "%s=%d %s=%d %s=%d %s=%d %s=%d %s=%s%s%s %s=%s\n",
			bench.ParameterCommitteeSize, r.Config.CommitteeSize,
			bench.ParameterInputRate, r.Config.InputRate,
			bench.ParameterTxSize, r.Config.TxSize,
			bench.ParameterDuration, r.Config.Duration,
			keyRunCount, r.RunCount,
			keyTPS, formatFloat(r.TPSMean), stdevSep, formatFloat(r.TPSStdev),
			keyLatency, latency,
		)
	}
	return bw.Flush()
}

// WriteReportFile atomically replaces the report at path.
func WriteReportFile(path string, units bench.Units, results []*bench.AggregateResult) error {
	return utilsio.WriteFileAtomic(path, func(w io.Writer) error {
		return WriteReport(w, units, results)
	})
}

// ReadReport parses a report written by WriteReport. Values are returned in the
// units of the report, not converted back to seconds, so that rewriting them
// with the same units reproduces the report byte for byte. A report without a
// units line uses bench.DefaultUnits.
func ReadReport(r io.Reader) (bench.Units, []*bench.AggregateResult, error) {
	units := bench.DefaultUnits
	seen := make(map[bench.Config]struct{})
	var results []*bench.AggregateResult

	scanner := bufio.NewScanner(r)
	for n := 1; scanner.Scan(); n++ {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, unitsPrefix):
			if len(results) > 0 {
				return units, nil, fmt.Errorf("line %d: units declared after results", n)
			}
			u, err := parseUnits(strings.TrimPrefix(line, unitsPrefix))
			if err != nil {
				return units, nil, fmt.Errorf("line %d: %w", n, err)
			}
			units = u
		case strings.HasPrefix(line, "#"):
			continue
		default:
			result, err := parseResult(line)
			if err != nil {
				return units, nil, fmt.Errorf("line %d: %w", n, err)
			}
			if _, ok := seen[result.Config]; ok {
				return units, nil, fmt.Errorf("line %d: duplicate configuration (%s)", n, result.Config)
			}
			seen[result.Config] = struct{}{}
			results = append(results, result)
		}
	}
	if err := scanner.Err(); err != nil {
		return units, nil, fmt.Errorf("could not read report: %w", err)
	}
	return units, results, nil
}

// ReadReportFile reads the report at path. Any malformed content is returned
// as a bench.ParseError naming the file.
func ReadReportFile(path string) (bench.Units, []*bench.AggregateResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return bench.Units{}, nil, fmt.Errorf("could not open report %s: %w", path, err)
	}
	defer f.Close()

	units, results, err := ReadReport(f)
	if err != nil {
		return bench.Units{}, nil, bench.NewParseError(path, err)
	}
	return units, results, nil
}

func parseUnits(text string) (bench.Units, error) {
	var units bench.Units
	fields := strings.Fields(text)
	if len(fields) != 2 {
		return units, fmt.Errorf("malformed units %q", text)
	}
	for i, key := range []string{keyTPS, keyLatency} {
		k, v, ok := strings.Cut(fields[i], "=")
		if !ok || k != key || v == "" {
			return units, fmt.Errorf("malformed units %q", text)
		}
		if key == keyTPS {
			units.Throughput = v
		} else {
			units.Latency = v
		}
	}
	if units.Throughput != bench.UnitTxPerSecond {
		return units, fmt.Errorf("unsupported throughput unit %q", units.Throughput)
	}
	if _, ok := units.LatencyScale(); !ok {
		return units, fmt.Errorf("unsupported latency unit %q", units.Latency)
	}
	return units, nil
}

func parseResult(line string) (*bench.AggregateResult, error) {
	fields := strings.Fields(line)
	if len(fields) != len(reportKeys) {
		return nil, fmt.Errorf("expected %d fields, found %d", len(reportKeys), len(fields))
	}
	values := make([]string, len(fields))
	for i, field := range fields {
		key, value, ok := strings.Cut(field, "=")
		if !ok || key != reportKeys[i] {
			return nil, fmt.Errorf("expected field %q, found %q", reportKeys[i], field)
		}
		values[i] = value
	}

	var cfg [4]uint64
	for i := range cfg {
		v, err := strconv.ParseUint(values[i], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q", reportKeys[i], values[i])
		}
		cfg[i] = v
	}
	runCount, err := strconv.Atoi(values[4])
	if err != nil || runCount < 1 {
		return nil, fmt.Errorf("invalid %s %q", keyRunCount, values[4])
	}

	result := &bench.AggregateResult{
		Config: bench.Config{
			CommitteeSize: cfg[0],
			InputRate:     cfg[1],
			TxSize:        cfg[2],
			Duration:      cfg[3],
		},
		RunCount: runCount,
	}
	result.TPSMean, result.TPSStdev, err = parseMeanStdev(values[5])
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", keyTPS, err)
	}
	if values[6] == notAvailable {
		result.LatencyMean, result.LatencyStdev = bench.UndefinedLatency, bench.UndefinedLatency
		return result, nil
	}
	result.LatencyMean, result.LatencyStdev, err = parseMeanStdev(values[6])
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", keyLatency, err)
	}
	return result, nil
}

func parseMeanStdev(text string) (float64, float64, error) {
	m, s, ok := strings.Cut(text, stdevSep)
	if !ok {
		return 0, 0, fmt.Errorf("expected mean%sstdev, found %q", stdevSep, text)
	}
	mean, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid mean %q", m)
	}
	stdev, err := strconv.ParseFloat(s, 64)
	if err != nil || stdev < 0 {
		return 0, 0, fmt.Errorf("invalid stdev %q", s)
	}
	return mean, stdev, nil
}

// Summary prints the results as a table for operators, including the totals
// that are not persisted in reports. Latencies of results are expressed in
// units: bench.DefaultUnits for computed results, the report's units for
// results loaded with ReadReport. The table always shows milliseconds.
func Summary(w io.Writer, units bench.Units, results []*bench.AggregateResult) {
	scale, ok := units.LatencyScale()
	if !ok {
		scale = 1
	}
	toMillis := 1000 / scale

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Committee", "Rate (tx/s)", "Tx size", "Duration", "Runs", "TPS", "Latency (ms)", "Committed", "Errors"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.SetBorder(false)

	for _, r := range results {
		latency := notAvailable
		if r.HasLatency() {
			latency = fmt.Sprintf("%.1f %s %.1f", r.LatencyMean*toMillis, stdevSep, r.LatencyStdev*toMillis)
		}
		table.Append([]string{
			strconv.FormatUint(r.Config.CommitteeSize, 10),
			humanize.Comma(int64(r.Config.InputRate)),
			humanize.IBytes(r.Config.TxSize),
			fmt.Sprintf("%ds", r.Config.Duration),
			strconv.Itoa(r.RunCount),
			fmt.Sprintf("%s %s %s", humanize.CommafWithDigits(r.TPSMean, 0), stdevSep, humanize.CommafWithDigits(r.TPSStdev, 0)),
			latency,
			humanize.Comma(int64(r.Committed)),
			humanize.Comma(int64(r.ErrorCount)),
		})
	}
	table.Render()
}
