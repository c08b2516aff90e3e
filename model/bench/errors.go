package bench

import (
	"errors"
	"fmt"
)

var (
	ErrMissingHeader = errors.New("missing configuration header")
	ErrNoUsableLogs  = errors.New("no usable log files")
	ErrEmptyRun      = errors.New("no records for run")
	ErrNoRuns        = errors.New("no runs to aggregate")
)

// ParseError indicates malformed or incomplete benchmark input. It is always
// attributable to a single file (Source) or to a single aggregation batch.
type ParseError struct {
	Source string
	Err    error
}

func NewParseError(source string, err error) error {
	return ParseError{Source: source, Err: err}
}

func NewParseErrorf(source string, msg string, args ...interface{}) error {
	return ParseError{Source: source, Err: fmt.Errorf(msg, args...)}
}

func (e ParseError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("parse error: %s", e.Err.Error())
	}
	return fmt.Sprintf("parse error in %s: %s", e.Source, e.Err.Error())
}

func (e ParseError) Unwrap() error {
	return e.Err
}

// IsParseError returns whether err is a ParseError
func IsParseError(err error) bool {
	var e ParseError
	return errors.As(err, &e)
}

// ConfigMismatchError indicates that statistics of different configurations were
// about to be combined. It is surfaced wrapped in a ParseError.
type ConfigMismatchError struct {
	RunID    string
	Expected Config
	Detected Config
}

func NewConfigMismatchError(source string, runID string, expected, detected Config) error {
	return ParseError{
		Source: source,
		Err:    ConfigMismatchError{RunID: runID, Expected: expected, Detected: detected},
	}
}

func (e ConfigMismatchError) Error() string {
	return fmt.Sprintf("configuration mismatch in run %q: expected (%s), detected (%s)", e.RunID, e.Expected, e.Detected)
}

// IsConfigMismatchError returns whether err is a ConfigMismatchError
func IsConfigMismatchError(err error) bool {
	var e ConfigMismatchError
	return errors.As(err, &e)
}

// PlotError indicates that aggregated results are insufficient or inconsistent
// for rendering a comparison. No artifact is written when it is returned.
type PlotError struct {
	Err error
}

func NewPlotErrorf(msg string, args ...interface{}) error {
	return PlotError{Err: fmt.Errorf(msg, args...)}
}

func (e PlotError) Error() string {
	return fmt.Sprintf("plot error: %s", e.Err.Error())
}

func (e PlotError) Unwrap() error {
	return e.Err
}

// IsPlotError returns whether err is a PlotError
func IsPlotError(err error) bool {
	var e PlotError
	return errors.As(err, &e)
}
