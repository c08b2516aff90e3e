package logparser

import (
	"fmt"
	"sort"
	"strings"

	"github.com/onflow/consensus-bench/model/bench"
)

// faultMarker identifies a crashed task on any line, inside or outside an entry.
const faultMarker = "panicked at"

// headerField describes one configuration line echoed in a log header.
type headerField struct {
	name     string
	pattern  Pattern
	required bool
	set      func(r *bench.LogRecord, value string) error
}

func numeric(dst func(r *bench.LogRecord) *uint64) func(*bench.LogRecord, string) error {
	return func(r *bench.LogRecord, value string) error {
		v, err := parseUint(value)
		if err != nil {
			return fmt.Errorf("non-numeric value %q", value)
		}
		*dst(r) = v
		return nil
	}
}

var headerFields = []headerField{
	{
		name:    "role",
		pattern: MustCompile("Node role: {word}"),
		set: func(r *bench.LogRecord, value string) error {
			role, err := bench.ParseRole(value)
			if err != nil {
				return err
			}
			r.Role = role
			return nil
		},
	},
	{
		name:    "run",
		pattern: MustCompile("Run: {word}"),
		set: func(r *bench.LogRecord, value string) error {
			r.RunID = value
			return nil
		},
	},
	{
		name:     "committee size",
		pattern:  MustCompile("Committee size: {int} nodes"),
		required: true,
		set:      numeric(func(r *bench.LogRecord) *uint64 { return &r.Config.CommitteeSize }),
	},
	{
		name:     "transactions rate",
		pattern:  MustCompile("Transactions rate: {int} tx/s"),
		required: true,
		set:      numeric(func(r *bench.LogRecord) *uint64 { return &r.Config.InputRate }),
	},
	{
		name:     "transactions size",
		pattern:  MustCompile("Transactions size: {int} B"),
		required: true,
		set:      numeric(func(r *bench.LogRecord) *uint64 { return &r.Config.TxSize }),
	},
	{
		name:     "benchmark duration",
		pattern:  MustCompile("Benchmark duration: {int} s"),
		required: true,
		set:      numeric(func(r *bench.LogRecord) *uint64 { return &r.Config.Duration }),
	},
	{
		name:    "timeout delay",
		pattern: MustCompile("Timeout delay set to {int} ms"),
		set:     numeric(func(r *bench.LogRecord) *uint64 { return &r.Node.TimeoutDelay }),
	},
	{
		name:    "sync retry delay",
		pattern: MustCompile("Sync retry delay set to {int} ms"),
		set:     numeric(func(r *bench.LogRecord) *uint64 { return &r.Node.SyncRetryDelay }),
	},
	{
		name:    "queue capacity",
		pattern: MustCompile("Queue capacity set to {int} payloads"),
		set:     numeric(func(r *bench.LogRecord) *uint64 { return &r.Node.QueueCapacity }),
	},
	{
		name:    "max payload size",
		pattern: MustCompile("Max payload size set to {int} B"),
		set:     numeric(func(r *bench.LogRecord) *uint64 { return &r.Node.MaxPayloadSize }),
	},
}

var (
	txID       = MustCompile("tx {int}")
	batchCount = MustCompile("( {int} tx )")
)

type eventType uint8

const (
	eventCreated eventType = iota
	eventExecuted
)

var eventKeywords = map[string]eventType{
	"Created":   eventCreated,
	"Executed":  eventExecuted,
	"Committed": eventExecuted,
}

type parser struct {
	source   string
	record   *bench.LogRecord
	seen     map[string]string // header field -> raw value
	created  map[bench.EventID]bench.Event
	executed map[bench.EventID]bench.Event
}

// Parse parses the content of one log. It fails with a bench.ParseError only
// when the configuration header cannot be recovered; malformed event lines are
// counted and skipped. A final line that is not newline terminated is a partial
// write: it is dropped and the record is marked as truncated.
func Parse(source string, text string) (*bench.LogRecord, error) {
	p := &parser{
		source:   source,
		record:   &bench.LogRecord{Source: source},
		seen:     make(map[string]string),
		created:  make(map[bench.EventID]bench.Event),
		executed: make(map[bench.EventID]bench.Event),
	}

	lines, truncated := splitLines(text)
	for i, line := range lines {
		err := p.parseLine(line)
		if err != nil {
			return nil, bench.NewParseErrorf(source, "line %d: %w", i+1, err)
		}
	}
	p.record.Truncated = truncated

	err := p.checkHeader()
	if err != nil {
		return nil, bench.NewParseError(source, err)
	}
	p.match()
	return p.record, nil
}

// splitLines returns the complete lines of the text and whether a partial final
// line was dropped.
func splitLines(text string) ([]string, bool) {
	if text == "" {
		return nil, false
	}
	lines := strings.Split(text, "\n")
	partial := lines[len(lines)-1] != ""
	lines = lines[:len(lines)-1]
	for i := range lines {
		lines[i] = strings.TrimSuffix(lines[i], "\r")
	}
	return lines, partial
}

func (p *parser) parseLine(line string) error {
	fault := strings.Contains(line, faultMarker)
	if fault {
		p.record.ErrorCount++
	}

	entry, ok := ParseEntry(line)
	if !ok {
		return nil
	}
	if entry.Level == LevelError && !fault {
		p.record.ErrorCount++
	}

	tokens := Lex(entry.Message)
	if len(tokens) == 0 {
		return nil
	}
	for _, field := range headerFields {
		if !field.pattern.HasPrefix(tokens) {
			continue
		}
		args, ok := field.pattern.Match(tokens)
		if !ok {
			if !field.required {
				p.record.Malformed++
				return nil
			}
			return fmt.Errorf("malformed %s header %q", field.name, entry.Message)
		}
		return p.setHeader(field, args[0])
	}

	typ, ok := eventKeywords[tokens[0].Text]
	if !ok {
		return nil
	}
	event, ok := parseEvent(tokens[1:])
	if !ok || (typ == eventCreated && event.Txs == 0) {
		p.record.Malformed++
		return nil
	}
	event.At = entry.At
	switch typ {
	case eventCreated:
		keepEarliest(p.created, event)
	case eventExecuted:
		keepEarliest(p.executed, event)
	}
	return nil
}

// setHeader records a header value. Only the configuration fields are fatal
// when invalid or conflicting; any other header keeps its first valid value and
// a bad line is counted as malformed.
func (p *parser) setHeader(field headerField, value string) error {
	if previous, ok := p.seen[field.name]; ok {
		if previous == value {
			return nil
		}
		if !field.required {
			p.record.Malformed++
			return nil
		}
		return fmt.Errorf("conflicting %s header: %q and %q", field.name, previous, value)
	}
	err := field.set(p.record, value)
	if err != nil {
		if !field.required {
			p.record.Malformed++
			return nil
		}
		return fmt.Errorf("invalid %s header: %w", field.name, err)
	}
	p.seen[field.name] = value
	return nil
}

func (p *parser) checkHeader() error {
	var missing []string
	for _, field := range headerFields {
		if _, ok := p.seen[field.name]; field.required && !ok {
			missing = append(missing, field.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", bench.ErrMissingHeader, strings.Join(missing, ", "))
	}
	return nil
}

// parseEvent parses the identifier following an event keyword. A created batch
// without a transaction count is returned with Txs set to zero.
func parseEvent(tokens []Token) (bench.Event, bool) {
	if args, ok := txID.MatchPrefix(tokens); ok {
		num, err := parseUint(args[0])
		if err != nil {
			return bench.Event{}, false
		}
		return bench.Event{ID: bench.EventID{Kind: bench.KindTx, Num: num}, Txs: 1}, true
	}

	if len(tokens) == 0 || !isBatchID(tokens[0]) {
		return bench.Event{}, false
	}
	num, err := parseUint(tokens[0].Text[1:])
	if err != nil {
		return bench.Event{}, false
	}
	event := bench.Event{ID: bench.EventID{Kind: bench.KindBatch, Num: num}}
	rest := tokens[1:]
	if len(rest) == 0 || rest[0].Text != "(" {
		return event, true
	}
	args, ok := batchCount.MatchPrefix(rest)
	if !ok {
		return bench.Event{}, false
	}
	event.Txs, err = parseUint(args[0])
	if err != nil {
		return bench.Event{}, false
	}
	return event, true
}

// keepEarliest stores the event unless an earlier event with the same ID is
// already known. The transaction count is kept from whichever event carries one.
func keepEarliest(events map[bench.EventID]bench.Event, event bench.Event) {
	existing, ok := events[event.ID]
	if !ok {
		events[event.ID] = event
		return
	}
	if event.At.Before(existing.At) {
		existing.At = event.At
	}
	if existing.Txs == 0 {
		existing.Txs = event.Txs
	}
	events[event.ID] = existing
}

// match pairs creations with executions and orders the results.
func (p *parser) match() {
	r := p.record
	for id, created := range p.created {
		executed, ok := p.executed[id]
		if !ok {
			r.Pending = append(r.Pending, created)
			r.Unfinished += created.Txs
			continue
		}
		r.Samples = append(r.Samples, bench.Sample{
			ID:         id,
			CreatedAt:  created.At,
			ExecutedAt: executed.At,
			Txs:        created.Txs,
		})
	}
	for id, executed := range p.executed {
		if _, ok := p.created[id]; !ok {
			r.Orphans = append(r.Orphans, executed)
		}
	}

	sort.Slice(r.Samples, func(i, j int) bool {
		a, b := r.Samples[i], r.Samples[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.Less(b.ID)
	})
	sortEvents(r.Pending)
	sortEvents(r.Orphans)
}

// sortEvents orders events by time, then ID.
func sortEvents(events []bench.Event) {
	sort.Slice(events, func(i, j int) bool {
		if !events[i].At.Equal(events[j].At) {
			return events[i].At.Before(events[j].At)
		}
		return events[i].ID.Less(events[j].ID)
	})
}
