package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	l := FromWriter(&buf, zerolog.DebugLevel)

	l.Info("forecast done",
		String("symbol", "AAPL"),
		Int("bars", 300),
		Float("confidence", 61.5),
		Bool("neural", false),
		Duration("duration_ms", 1500*time.Millisecond),
		Error(errors.New("boom")),
	)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	assert.Equal(t, "info", m["level"])
	assert.Equal(t, "forecast done", m["message"])
	assert.Equal(t, "AAPL", m["symbol"])
	assert.EqualValues(t, 300, m["bars"])
	assert.EqualValues(t, 61.5, m["confidence"])
	assert.Equal(t, false, m["neural"])
	assert.EqualValues(t, 1500, m["duration_ms"])
	assert.Equal(t, "boom", m["error"])
}

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := FromWriter(&buf, zerolog.WarnLevel)
	l.Debug("hidden")
	l.Info("hidden")
	assert.Zero(t, buf.Len())
	l.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestWithCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	l := FromWriter(&buf, zerolog.InfoLevel).With(String("component", "neural"))
	l.Info("trained")
	assert.Contains(t, buf.String(), `"component":"neural"`)
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(&Config{Level: "chatty", Output: "stdout"})
	require.Error(t, err)
}

func TestNopDiscards(t *testing.T) {
	l := Nop()
	l.Error("nothing", String("k", "v"))
}
