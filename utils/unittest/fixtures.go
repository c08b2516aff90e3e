package unittest

import (
	"flag"
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/onflow/consensus-bench/model/bench"
)

var seed = flag.Int64("seed", 0, "seed of randomized fixtures, 0 picks one from the clock")

// FixtureRand returns the source of randomized fixture orderings. The seed is
// logged, and a failing ordering is replayed by passing it back with -seed.
func FixtureRand(t testing.TB) *rand.Rand {
	s := *seed
	if s == 0 {
		s = time.Now().UnixNano()
	}
	t.Logf("fixture seed %d", s)
	return rand.New(rand.NewSource(s))
}

// StartTime is the wall clock origin of every fixture log.
var StartTime = time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC)

// ConfigFixture returns the configuration of the default local benchmark.
func ConfigFixture(opts ...func(*bench.Config)) bench.Config {
	c := bench.Config{
		CommitteeSize: 4,
		InputRate:     1000,
		TxSize:        512,
		Duration:      30,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func WithCommitteeSize(n uint64) func(*bench.Config) {
	return func(c *bench.Config) {
		c.CommitteeSize = n
	}
}

func WithInputRate(rate uint64) func(*bench.Config) {
	return func(c *bench.Config) {
		c.InputRate = rate
	}
}

// LogBuilder writes node logs in the format produced by the benchmark binaries.
// Event times are offsets from StartTime.
type LogBuilder struct {
	lines []string
}

func NewLogBuilder() *LogBuilder {
	return &LogBuilder{}
}

func (b *LogBuilder) entry(at time.Duration, level string, target string, msg string, args ...interface{}) *LogBuilder {
	ts := StartTime.Add(at).Format(time.RFC3339Nano)
	b.lines = append(b.lines, fmt.Sprintf("[%s %s %s] %s", ts, level, target, fmt.Sprintf(msg, args...)))
	return b
}

// Header writes the role and configuration lines.
func (b *LogBuilder) Header(role bench.Role, c bench.Config) *LogBuilder {
	b.entry(0, "INFO", "node", "Node role: %s", role)
	b.entry(0, "INFO", "benchmark", "Committee size: %d nodes", c.CommitteeSize)
	b.entry(0, "INFO", "benchmark", "Transactions rate: %d tx/s", c.InputRate)
	b.entry(0, "INFO", "benchmark", "Transactions size: %d B", c.TxSize)
	return b.entry(0, "INFO", "benchmark", "Benchmark duration: %d s", c.Duration)
}

// Run writes the run identity line.
func (b *LogBuilder) Run(id string) *LogBuilder {
	return b.entry(0, "INFO", "benchmark", "Run: %s", id)
}

// NodeParameters writes the consensus and mempool settings lines.
func (b *LogBuilder) NodeParameters(p bench.NodeParameters) *LogBuilder {
	b.entry(0, "INFO", "consensus::config", "Timeout delay set to %d ms", p.TimeoutDelay)
	b.entry(0, "INFO", "consensus::config", "Sync retry delay set to %d ms", p.SyncRetryDelay)
	b.entry(0, "INFO", "mempool::config", "Queue capacity set to %d payloads", p.QueueCapacity)
	return b.entry(0, "INFO", "mempool::config", "Max payload size set to %d B", p.MaxPayloadSize)
}

func (b *LogBuilder) Created(at time.Duration, id uint64) *LogBuilder {
	return b.entry(at, "INFO", "client", "Created tx %d", id)
}

func (b *LogBuilder) Executed(at time.Duration, id uint64) *LogBuilder {
	return b.entry(at, "INFO", "consensus::core", "Executed tx %d", id)
}

func (b *LogBuilder) CreatedBatch(at time.Duration, id uint64, txs uint64) *LogBuilder {
	return b.entry(at, "INFO", "mempool::core", "Created B%d (%d tx)", id, txs)
}

func (b *LogBuilder) CommittedBatch(at time.Duration, id uint64) *LogBuilder {
	return b.entry(at, "INFO", "consensus::core", "Committed B%d", id)
}

func (b *LogBuilder) Error(at time.Duration, msg string) *LogBuilder {
	return b.entry(at, "ERROR", "consensus::core", "%s", msg)
}

// Line appends a raw line.
func (b *LogBuilder) Line(raw string) *LogBuilder {
	b.lines = append(b.lines, raw)
	return b
}

// String returns the log with every line newline terminated.
func (b *LogBuilder) String() string {
	if len(b.lines) == 0 {
		return ""
	}
	return strings.Join(b.lines, "\n") + "\n"
}

// RunLog builds the log of a single node run in which txs transactions are
// created at a constant pace and all but the last unfinished ones are executed
// after latency. The first creation happens at StartTime and the last execution
// exactly duration seconds later.
func RunLog(c bench.Config, txs uint64, unfinished uint64, latency time.Duration) string {
	b := NewLogBuilder().Header(bench.RoleLeader, c)
	span := time.Duration(c.Duration) * time.Second
	executed := txs - unfinished
	step := span - latency
	if executed > 1 {
		step = (span - latency) / time.Duration(executed-1)
	}
	for i := uint64(0); i < txs; i++ {
		created := time.Duration(i) * step
		if i == executed-1 {
			created = span - latency
		}
		b.Created(created, i)
		if i < executed {
			b.Executed(created+latency, i)
		}
	}
	return b.String()
}
