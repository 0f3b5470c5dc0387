package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// emitAll logs one message per level and returns the messages that were
// written.
func emitAll(t *testing.T, level string) []string {
	t.Helper()
	var buf bytes.Buffer
	logger := New(Config{Level: level, Output: &buf})

	logger.Trace().Msg("trace")
	logger.Debug().Msg("debug")
	logger.Info().Msg("info")
	logger.Warn().Msg("warn")
	logger.Error().Msg("error")

	var got []string
	dec := json.NewDecoder(&buf)
	for dec.More() {
		var line map[string]any
		require.NoError(t, dec.Decode(&line))
		got = append(got, line["message"].(string))
	}
	return got
}

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		level string
		want  []string
	}{
		{"trace", []string{"trace", "debug", "info", "warn", "error"}},
		{"debug", []string{"debug", "info", "warn", "error"}},
		{"info", []string{"info", "warn", "error"}},
		{"warn", []string{"warn", "error"}},
		{"error", []string{"error"}},
		{"bogus", []string{"info", "warn", "error"}},
		{"", []string{"info", "warn", "error"}},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.want, emitAll(t, tt.level))
		})
	}
}

func TestNew_TimestampedJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "info", Output: &buf})
	logger.Info().Str("sig", "UTIL_Remove").Msg("resolved")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "UTIL_Remove", line["sig"])
	assert.Contains(t, line, "time")
}

func TestNew_Pretty(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "info", Pretty: true, Output: &buf})
	logger.Info().Msg("hooked")

	out := buf.String()
	assert.Contains(t, out, "hooked")
	assert.False(t, json.Valid(buf.Bytes()), "console writer output is not JSON")
}

func TestNew_NilOutput(t *testing.T) {
	assert.NotPanics(t, func() {
		logger := New(Config{Level: "error"})
		logger.Debug().Msg("dropped")
	})
}

func TestNewWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithComponent(Config{Level: "info", Output: &buf}, "hooks")
	logger.Info().Msg("dispatch")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hooks", line["component"])
	assert.Equal(t, "dispatch", line["message"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.TraceLevel, ParseLevel("trace"))
	assert.Equal(t, zerolog.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("verbose"))

	assert.True(t, ValidLevel("warn"))
	assert.False(t, ValidLevel("verbose"))
	assert.False(t, ValidLevel("WARN"))
}
