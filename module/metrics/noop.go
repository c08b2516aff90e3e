package metrics

import (
	"time"

	"github.com/onflow/consensus-bench/module"
)

type NoopCollector struct{}

var _ module.BenchmarkMetrics = (*NoopCollector)(nil)

func NewNoopCollector() *NoopCollector {
	nc := &NoopCollector{}
	return nc
}

func (nc *NoopCollector) LogParsed(duration time.Duration, samples int) {}
func (nc *NoopCollector) LogFailed()                                      {}
func (nc *NoopCollector) LogTruncated()                                   {}
func (nc *NoopCollector) SamplesDiscarded(count uint64)                   {}
func (nc *NoopCollector) RunComputed(throughput float64)                  {}
func (nc *NoopCollector) ConfigAggregated(runs int)                       {}
func (nc *NoopCollector) FigureRendered(kind string)                      {}
