// Package logging builds the charmbracelet loggers handed to the decoder and
// the analysis context. Level, prefix and destination come from the
// environment.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

const (
	envLevel  = "STATICFLOW_LOG_LEVEL"
	envPrefix = "STATICFLOW_LOG_PREFIX"
	envToFile = "STATICFLOW_LOG_TO_FILE"
)

// LoggerCloser wraps a logger and provides a Close method for cleanup
type LoggerCloser struct {
	*log.Logger
	closer io.Closer
}

// Close closes the underlying writer if it's closeable
func (lc *LoggerCloser) Close() error {
	if lc.closer != nil {
		return lc.closer.Close()
	}
	return nil
}

// Level is the level named by STATICFLOW_LOG_LEVEL, info when unset or
// unknown.
func Level() log.Level {
	lvl, err := log.ParseLevel(os.Getenv(envLevel))
	if err != nil || os.Getenv(envLevel) == "" {
		return log.InfoLevel
	}
	return lvl
}

// NewLoggerWithWriter creates a new logger with the provided writer. Close
// closes w unless it is stdout or stderr.
func NewLoggerWithWriter(w io.Writer) *LoggerCloser {
	lg := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Level:           Level(),
	})

	prefix := os.Getenv(envPrefix)
	if prefix == "" {
		prefix = "staticflow "
	}

	var closer io.Closer
	if c, ok := w.(io.Closer); ok && w != io.Writer(os.Stderr) && w != io.Writer(os.Stdout) {
		closer = c
	}

	return &LoggerCloser{
		Logger: lg.WithPrefix(prefix),
		closer: closer,
	}
}

// NewLogger creates a new logger based on environment variables
// STATICFLOW_LOG_LEVEL: debug, info, warn, error (default: info)
// STATICFLOW_LOG_PREFIX: prefix for log messages (default: "staticflow ")
// STATICFLOW_LOG_TO_FILE: when set to "1", logs to a timestamped file instead of stderr
func NewLogger() *LoggerCloser {
	output := io.Writer(os.Stderr)

	if os.Getenv(envToFile) == "1" {
		timestamp := time.Now().Format("20060102-150405")
		logFile := fmt.Sprintf("staticflow-%s.log", timestamp)

		f, err := os.OpenFile(logFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err == nil {
			output = f
		}
		// If file creation fails, fall back to stderr
	}

	return NewLoggerWithWriter(output)
}

// IsDebug returns true if debug logging is enabled
func IsDebug() bool {
	return Level() == log.DebugLevel
}
