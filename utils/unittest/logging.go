package unittest

import (
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var verbose = flag.Bool("vv", false, "print the logs of the pipeline under test")

// Logger returns the logger handed to pipeline components in tests. Logs are
// dropped unless the -vv flag is set, in which case they are printed to stderr
// in the console format of the bench command, down to trace level.
func Logger() zerolog.Logger {
	if !*verbose {
		return zerolog.Nop()
	}
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339Nano}
	return zerolog.New(writer).Level(zerolog.TraceLevel).With().Timestamp().Str("source", "test").Logger()
}
