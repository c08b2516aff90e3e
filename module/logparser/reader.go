package logparser

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/onflow/consensus-bench/model/bench"
)

// ReadFile returns the decompressed content of a log file. Files ending in
// ".gz" are gzip compressed and files ending in ".zst" are zstd compressed;
// anything else is read as plain text.
func ReadFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("could not open log %s: %w", path, err)
	}
	defer f.Close()

	var r io.Reader = f
	switch {
	case strings.HasSuffix(path, ".gz"):
		gz, err := gzip.NewReader(f)
		if err != nil {
			return "", bench.NewParseErrorf(path, "invalid gzip stream: %w", err)
		}
		defer gz.Close()
		r = gz
	case strings.HasSuffix(path, ".zst"):
		dec, err := zstd.NewReader(f)
		if err != nil {
			return "", bench.NewParseErrorf(path, "invalid zstd stream: %w", err)
		}
		defer dec.Close()
		r = dec
	}

	data, err := io.ReadAll(r)
	if err != nil {
		// a compressed log cut short by a killed process still yields the
		// bytes decoded so far
		if len(data) > 0 && errors.Is(err, io.ErrUnexpectedEOF) {
			return string(data), nil
		}
		return "", fmt.Errorf("could not read log %s: %w", path, err)
	}
	return string(data), nil
}

// ParseFile reads and parses one log file. When the log does not name its run,
// the run identity is the name of the directory holding the file.
func ParseFile(path string) (*bench.LogRecord, error) {
	text, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	record, err := Parse(path, text)
	if err != nil {
		return nil, err
	}
	if record.RunID == "" {
		record.RunID = RunIDFromPath(path)
	}
	return record, nil
}

// RunIDFromPath returns the default run identity of a log file.
func RunIDFromPath(path string) string {
	dir := filepath.Base(filepath.Dir(path))
	if dir == "." || dir == string(filepath.Separator) {
		return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return dir
}
