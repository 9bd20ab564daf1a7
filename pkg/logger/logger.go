// Package logger builds the process logger shared by every closer component.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// Options controls how the process logger renders.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // text or json
	Output io.Writer
}

// New creates a logger and installs it as the charmbracelet default so
// package-level log calls agree with injected loggers.
//
// Output defaults to stderr because stdout carries the MCP stdio protocol.
func New(opts Options) *log.Logger {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}

	level, err := log.ParseLevel(strings.ToLower(opts.Level))
	if err != nil {
		level = log.InfoLevel
	}

	logOpts := log.Options{
		Level:           level,
		ReportTimestamp: true,
	}

	if strings.EqualFold(opts.Format, "json") {
		logOpts.Formatter = log.JSONFormatter
	}

	logger := log.NewWithOptions(opts.Output, logOpts)
	log.SetDefault(logger)

	return logger
}

// Discard returns a logger that drops everything, for tests.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
}

// Or returns logger when it is set, otherwise the charmbracelet default.
func Or(logger *log.Logger) *log.Logger {
	if logger != nil {
		return logger
	}

	return log.Default()
}
