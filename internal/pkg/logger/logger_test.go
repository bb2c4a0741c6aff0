package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"fatal":   zerolog.FatalLevel,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestConfigureJSONComponent(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "debug", Format: FormatJSON, Output: &buf})
	t.Cleanup(func() { Configure(Config{Level: "info", Format: FormatText}) })

	jobsLogger := Component("jobs")
	jobsLogger.Debug().Str("postID", "p1").Msg("swept")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "jobs", line["component"])
	assert.Equal(t, "p1", line["postID"])
	assert.Equal(t, "swept", line["message"])
	assert.Equal(t, "debug", line["level"])
}

func TestConfigureFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "error", Format: FormatJSON, Output: &buf})
	t.Cleanup(func() { Configure(Config{Level: "info", Format: FormatText}) })

	Info().Msg("dropped")
	assert.Empty(t, buf.String())

	Error().Msg("kept")
	assert.Contains(t, buf.String(), "kept")
}
