// Package logger provides the component logger for gspace.
// Messages are structured zerolog events. Debug and info output only appears
// in verbose mode (--verbose); warnings and errors are always written.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr
	level             = levelFor(false)
	base              = newBase()
)

// sink forwards events to the current output and drops those below the
// current level, so loggers derived before SetVerbose or SetOutput still
// follow them.
type sink struct{}

func (sink) Write(p []byte) (int, error) {
	return sink{}.WriteLevel(zerolog.NoLevel, p)
}

func (sink) WriteLevel(l zerolog.Level, p []byte) (int, error) {
	mu.RLock()
	defer mu.RUnlock()
	if l != zerolog.NoLevel && l < level {
		return len(p), nil
	}
	return output.Write(p)
}

func levelFor(v bool) zerolog.Level {
	if v {
		return zerolog.DebugLevel
	}
	if env := os.Getenv("GSPACE_LOG_LEVEL"); env != "" {
		if parsed, err := zerolog.ParseLevel(env); err == nil {
			return parsed
		}
	}
	return zerolog.WarnLevel
}

func newBase() zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	return zerolog.New(sink{}).With().Timestamp().Str("service", "gspace").Logger()
}

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
	level = levelFor(v)
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the output writer for logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// Base returns the base logger. It writes through the shared sink, so
// copies stay in step with SetVerbose and SetOutput.
func Base() zerolog.Logger {
	return base
}

// WithComponent returns a child logger annotated with the component name,
// e.g. "gspace.client" or "gspace.auth".
func WithComponent(component string) zerolog.Logger {
	return base.With().Str("component", component).Logger()
}

// Debug logs a formatted debug message.
func Debug(format string, args ...any) {
	l := Base()
	l.Debug().Msg(fmt.Sprintf(format, args...))
}

// Info logs a formatted informational message.
func Info(format string, args ...any) {
	l := Base()
	l.Info().Msg(fmt.Sprintf(format, args...))
}

// Warn logs a formatted warning.
func Warn(format string, args ...any) {
	l := Base()
	l.Warn().Msg(fmt.Sprintf(format, args...))
}

// Error logs a formatted error message.
func Error(format string, args ...any) {
	l := Base()
	l.Error().Msg(fmt.Sprintf(format, args...))
}

// Section logs a section marker in verbose mode.
func Section(name string) {
	l := Base()
	l.Debug().Str("section", name).Msg("=== " + name + " ===")
}
