package runtest

import (
	"fmt"
	"os"
)

// stdoutLogger implements Logger for CLI mode, writing to stdout/stderr.
type stdoutLogger struct {
	verbose bool
	debug   bool
}

// NewStdoutLogger creates a logger that writes to stdout/stderr.
func NewStdoutLogger(verbose, debug bool) Logger {
	return &stdoutLogger{verbose: verbose, debug: debug}
}

func (l *stdoutLogger) Debug(format string, args ...interface{}) {
	if l.debug {
		fmt.Printf(format, args...)
	}
}

func (l *stdoutLogger) Info(format string, args ...interface{}) {
	if l.verbose || l.debug {
		fmt.Printf(format, args...)
	}
}

func (l *stdoutLogger) Error(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
}

func (l *stdoutLogger) IsDebugEnabled() bool   { return l.debug }
func (l *stdoutLogger) IsVerboseEnabled() bool { return l.verbose }

// silentLogger suppresses all output. Used when the report format owns the
// whole output stream (junit to stdout must stay machine-parseable).
type silentLogger struct{}

// NewSilentLogger creates a logger that discards everything.
func NewSilentLogger() Logger { return silentLogger{} }

func (silentLogger) Debug(format string, args ...interface{}) {}
func (silentLogger) Info(format string, args ...interface{})  {}
func (silentLogger) Error(format string, args ...interface{}) {}
func (silentLogger) IsDebugEnabled() bool                     { return false }
func (silentLogger) IsVerboseEnabled() bool                   { return false }
