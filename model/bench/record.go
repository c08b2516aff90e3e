package bench

import (
	"fmt"
	"time"
)

// EventKind distinguishes single transactions from batches of transactions.
type EventKind uint8

const (
	KindTx EventKind = iota
	KindBatch
)

// EventID correlates a creation event with its execution event.
type EventID struct {
	Kind EventKind
	Num  uint64
}

func (id EventID) String() string {
	if id.Kind == KindBatch {
		return fmt.Sprintf("B%d", id.Num)
	}
	return fmt.Sprintf("tx %d", id.Num)
}

// Less orders tx IDs before batch IDs, then by number.
func (id EventID) Less(other EventID) bool {
	if id.Kind != other.Kind {
		return id.Kind < other.Kind
	}
	return id.Num < other.Num
}

// Event is a single timestamped creation or execution of a transaction or batch.
type Event struct {
	ID  EventID
	At  time.Time
	Txs uint64 // number of transactions carried by the event
}

// Sample is a matched creation/execution pair.
type Sample struct {
	ID         EventID
	CreatedAt  time.Time
	ExecutedAt time.Time
	Txs        uint64
}

// Latency is the elapsed time between creation and execution.
// It may be zero or negative when node clocks are skewed.
func (s Sample) Latency() time.Duration {
	return s.ExecutedAt.Sub(s.CreatedAt)
}

// LogRecord is the structured content of one node's log for one run.
// It is created by the log parser and never modified afterwards.
type LogRecord struct {
	Source string // file the record was parsed from
	RunID  string
	Role   Role
	Config Config
	Node   NodeParameters

	// Samples holds the matched pairs ordered by creation time, then ID.
	Samples []Sample
	// Pending holds creations without an execution in this log, ordered like Samples.
	Pending []Event
	// Orphans holds executions without a creation in this log, ordered by time, then ID.
	Orphans []Event

	Unfinished uint64 // transactions created but never executed in this log
	ErrorCount uint64
	Malformed  uint64 // complete event lines that did not match the grammar
	Truncated  bool   // a partial final line was dropped
}

// Created returns the number of transactions created in this log.
func (r *LogRecord) Created() uint64 {
	var n uint64
	for _, s := range r.Samples {
		n += s.Txs
	}
	return n + r.Unfinished
}

// Executed returns the number of transactions matched in this log.
func (r *LogRecord) Executed() uint64 {
	var n uint64
	for _, s := range r.Samples {
		n += s.Txs
	}
	return n
}
