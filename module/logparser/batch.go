package logparser

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/onflow/consensus-bench/model/bench"
	"github.com/onflow/consensus-bench/module"
)

// BatchResult holds the records of a batch of log files together with the
// failures of the files that had to be skipped.
type BatchResult struct {
	Records  []*bench.LogRecord // sorted by source
	Failures *multierror.Error  // one entry per skipped file, sorted by message
}

// Skipped returns the number of files that could not be used.
func (r *BatchResult) Skipped() int {
	if r.Failures == nil {
		return 0
	}
	return len(r.Failures.Errors)
}

// BatchParser parses the log files of one aggregation batch concurrently.
type BatchParser struct {
	log     zerolog.Logger
	metrics module.LogParserMetrics
	workers int
	onDone  func()
}

type BatchOption func(*BatchParser)

// WithProgress registers a callback invoked once per processed file, whether
// it succeeded or not. The callback may be called from several goroutines.
func WithProgress(onDone func()) BatchOption {
	return func(b *BatchParser) {
		b.onDone = onDone
	}
}

// NewBatchParser returns a parser using at most workers goroutines. A
// non-positive worker count uses one worker per CPU.
func NewBatchParser(log zerolog.Logger, metrics module.LogParserMetrics, workers int, opts ...BatchOption) *BatchParser {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	b := &BatchParser{
		log:     log.With().Str("component", "log_parser").Logger(),
		metrics: metrics,
		workers: workers,
		onDone:  func() {},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ParseFiles parses every file. A file that cannot be parsed is logged, recorded
// in the result's failures and skipped; the batch only fails with
// bench.ErrNoUsableLogs when no file at all produced a record. Once the context
// is canceled no new file is started and the context error is returned.
func (b *BatchParser) ParseFiles(ctx context.Context, files []string) (*BatchResult, error) {
	var (
		mu        sync.Mutex
		records   = make([]*bench.LogRecord, 0, len(files))
		failures  *multierror.Error
		truncated = atomic.NewUint64(0)
	)

	pool := workerpool.New(b.workers)
	for _, file := range files {
		if ctx.Err() != nil {
			break
		}
		file := file
		pool.Submit(func() {
			defer b.onDone()
			if ctx.Err() != nil {
				return
			}

			start := time.Now()
			record, err := ParseFile(file)
			if err != nil {
				b.metrics.LogFailed()
				b.log.Warn().Err(err).Str("file", file).Msg("skipping unusable log")
				mu.Lock()
				failures = multierror.Append(failures, err)
				mu.Unlock()
				return
			}

			b.metrics.LogParsed(time.Since(start), len(record.Samples))
			if record.Truncated {
				truncated.Inc()
				b.metrics.LogTruncated()
				b.log.Warn().Str("file", file).Msg("log ends with a partial line, parsed up to the last complete line")
			}
			if record.Malformed > 0 {
				b.log.Debug().Str("file", file).Uint64("lines", record.Malformed).Msg("ignored malformed event lines")
			}

			mu.Lock()
			records = append(records, record)
			mu.Unlock()
		})
	}
	pool.StopWait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("log parsing interrupted: %w", err)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Source < records[j].Source
	})
	if failures != nil {
		sort.Slice(failures.Errors, func(i, j int) bool {
			return failures.Errors[i].Error() < failures.Errors[j].Error()
		})
	}
	result := &BatchResult{Records: records, Failures: failures}

	b.log.Info().
		Int("files", len(files)).
		Int("parsed", len(records)).
		Int("skipped", result.Skipped()).
		Uint64("truncated", truncated.Load()).
		Msg("parsed log batch")

	if len(records) == 0 {
		if failures != nil {
			return result, bench.NewParseError("", fmt.Errorf("%w: %v", bench.ErrNoUsableLogs, failures.ErrorOrNil()))
		}
		return result, bench.NewParseError("", bench.ErrNoUsableLogs)
	}
	return result, nil
}
