// Package monitoring holds the process-wide diagnostic logger.
package monitoring

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logf is the package-level diagnostic logger. It defaults to a zerolog
// console writer on stderr but may be replaced by SetLogger. Tests or
// production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = newZerologf(os.Stderr, zerolog.InfoLevel)

// Debugf is the verbose counterpart of Logf. It is muted unless Init is
// called with debug enabled.
var Debugf func(format string, v ...interface{}) = func(string, ...interface{}) {}

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Options configures Init.
type Options struct {
	Out   io.Writer
	Debug bool
	Quiet bool
}

// Init installs a zerolog console logger tagged with app as the sink of
// Logf and Debugf.
func Init(app string, opts Options) zerolog.Logger {
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	level := zerolog.InfoLevel
	if opts.Debug {
		level = zerolog.DebugLevel
	}
	if opts.Quiet {
		level = zerolog.Disabled
	}

	logger := zerolog.New(zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
	}).Level(level).With().Timestamp().Str("app", app).Logger()

	Logf = func(format string, v ...interface{}) {
		logger.Info().Msg(fmt.Sprintf(format, v...))
	}
	Debugf = func(format string, v ...interface{}) {
		logger.Debug().Msg(fmt.Sprintf(format, v...))
	}
	return logger
}

func newZerologf(out io.Writer, level zerolog.Level) func(string, ...interface{}) {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}).
		Level(level).With().Timestamp().Logger()
	return func(format string, v ...interface{}) {
		logger.Info().Msg(fmt.Sprintf(format, v...))
	}
}
