package logging

import (
	"io"
	"os"
	"strings"

	"github.com/kataras/golog"
)

// Logger is the leveled logger handed to every component.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// New returns a golog-backed logger writing to out at the given level
// (debug, info, warn, error, disable). Unknown levels fall back to info.
func New(prefix string, out io.Writer, level string) Logger {
	if out == nil {
		out = os.Stderr
	}
	l := golog.New()
	l.SetOutput(out)
	l.SetLevel(normalizeLevel(level))
	l.SetTimeFormat("2006-01-02 15:04:05")
	if prefix != "" {
		l.SetPrefix("[" + prefix + "] ")
	}
	return l
}

// Child derives a logger with an extra prefix segment when the underlying
// logger is golog, and returns parent unchanged otherwise.
func Child(parent Logger, name string) Logger {
	if g, ok := parent.(*golog.Logger); ok {
		return g.Child(name)
	}
	return parent
}

// Nop discards everything.
func Nop() Logger { return nopLogger{} }

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return nopLogger{}
	}
	return l
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}

func normalizeLevel(level string) string {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return "debug"
	case "warn", "warning":
		return "warn"
	case "error":
		return "error"
	case "disable", "none", "off":
		return "disable"
	default:
		return "info"
	}
}
