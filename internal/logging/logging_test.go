package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log, err := New("debug", FormatJSON, &buf)
	require.NoError(t, err)

	log.Debug().Str("component", "connection").Msg("Connected")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "debug", line["level"])
	assert.Equal(t, "connection", line["component"])
	assert.Equal(t, "Connected", line["message"])
	assert.Contains(t, line, "time")
}

func TestNewFiltersByLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log, err := New("WARN", "", &buf)
	require.NoError(t, err)

	log.Info().Msg("hidden")
	assert.Zero(t, buf.Len())

	log.Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNewConsole(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log, err := New("info", FormatConsole, &buf)
	require.NoError(t, err)

	log.Info().Str("url", "ws://x").Msg("Connected")
	assert.Contains(t, buf.String(), "Connected")
	assert.Contains(t, buf.String(), "url=")
}

func TestNewRejectsBadInput(t *testing.T) {
	t.Parallel()

	_, err := New("loud", FormatJSON, &bytes.Buffer{})
	assert.Error(t, err)

	_, err = New("info", "xml", &bytes.Buffer{})
	assert.Error(t, err)
}
