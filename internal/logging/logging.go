// Package logging builds the structured logger shared by the server, the
// scheduler and the services.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/phuslu/log"
)

// Formats accepted by New.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// New returns a logger writing to w at the given level ("debug", "info",
// "warn", "error"). Unknown levels fall back to info. The console format is
// human-readable; anything else emits one JSON object per line.
func New(level, format string, w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}

	logger := &log.Logger{
		Level:      parseLevel(level),
		TimeFormat: time.RFC3339,
	}
	if strings.EqualFold(format, FormatConsole) {
		logger.Writer = &log.ConsoleWriter{
			Writer:         w,
			ColorOutput:    false,
			EndWithMessage: true,
		}
	} else {
		logger.Writer = &log.IOWriter{Writer: w}
	}
	return logger
}

// Nop returns a logger that discards everything. Used by tests.
func Nop() *log.Logger {
	return &log.Logger{
		Level:  log.PanicLevel,
		Writer: &log.IOWriter{Writer: io.Discard},
	}
}

func parseLevel(level string) log.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic":
		return log.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	default:
		return log.InfoLevel
	}
}
