// Package logging builds the zerolog loggers shared by the interop runtime,
// its plugins and the cssharp-interop tool.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config mirrors the log section of the interop configuration.
type Config struct {
	// Level is one of trace, debug, info, warn or error.
	Level string
	// Pretty selects the colored console writer over JSON lines.
	Pretty bool
	// Output defaults to os.Stderr. Stdout belongs to the host.
	Output io.Writer
}

var levels = map[string]zerolog.Level{
	"trace": zerolog.TraceLevel,
	"debug": zerolog.DebugLevel,
	"info":  zerolog.InfoLevel,
	"warn":  zerolog.WarnLevel,
	"error": zerolog.ErrorLevel,
}

// ValidLevel reports whether name is an accepted level name.
func ValidLevel(name string) bool {
	_, ok := levels[name]
	return ok
}

// ParseLevel maps a level name to zerolog. Unknown names give info.
func ParseLevel(name string) zerolog.Level {
	if lvl, ok := levels[name]; ok {
		return lvl
	}
	return zerolog.InfoLevel
}

// New builds a timestamped logger.
func New(cfg Config) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	var w io.Writer = os.Stderr
	if cfg.Output != nil {
		w = cfg.Output
	}
	if cfg.Pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}

	return zerolog.New(w).Level(ParseLevel(cfg.Level)).With().Timestamp().Logger()
}

// NewWithComponent is New with a "component" field attached.
func NewWithComponent(cfg Config, component string) zerolog.Logger {
	return New(cfg).With().Str("component", component).Logger()
}
