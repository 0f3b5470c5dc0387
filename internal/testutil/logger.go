package testutil

import (
	"bytes"
	"io"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

// NewTestLogger returns a logger that discards everything but still runs
// every event builder, so field construction is exercised.
func NewTestLogger(t *testing.T) zerolog.Logger {
	t.Helper()
	return zerolog.New(io.Discard).Level(zerolog.TraceLevel)
}

// NewTestLoggerWithOutput returns a console logger routed through t.Log, so
// output shows up only for failing or verbose tests.
func NewTestLoggerWithOutput(t *testing.T) zerolog.Logger {
	return zerolog.New(zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
		w.Out = zerolog.NewTestWriter(t)
		w.NoColor = true
	})).With().Timestamp().Logger()
}

// NewCapturingLogger returns a logger writing JSON lines into the returned
// buffer, for asserting on what was logged.
func NewCapturingLogger() (zerolog.Logger, *LogBuffer) {
	buf := &LogBuffer{}
	return zerolog.New(buf), buf
}

// LogBuffer is a goroutine-safe log sink.
type LogBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// String returns everything written so far.
func (b *LogBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Lines returns the number of log lines written so far.
func (b *LogBuffer) Lines() int {
	return bytes.Count([]byte(b.String()), []byte("\n"))
}
