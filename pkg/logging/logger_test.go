package logging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(buf *bytes.Buffer) Logger {
	formatter := NewTextFormatter()
	formatter.DisableColors = true
	formatter.DisableTimestamp = true
	return New(buf, formatter)
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	logger.Debug("hidden")
	logger.Info("shown")

	output := buf.String()
	assert.NotContains(t, output, "hidden")
	assert.Contains(t, output, "shown")

	buf.Reset()
	logger.SetLevel(DebugLevel)
	logger.Debug("now visible")
	assert.Contains(t, buf.String(), "now visible")
	assert.Equal(t, DebugLevel, logger.GetLevel())
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	logger.Info("server started",
		String("component", "launcher"),
		String("address", "http://localhost:3000"),
		Int("attempt", 2),
	)

	line := buf.String()
	assert.True(t, strings.HasPrefix(line, "[INFO] launcher: server started | "), line)
	assert.Contains(t, line, "address=http://localhost:3000")
	assert.Contains(t, line, "attempt=2")
}

func TestTextFormatQuotesSpaces(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	logger.Warn("odd output", String("line", "Server listening on port 3000"))
	assert.Contains(t, buf.String(), `line="Server listening on port 3000"`)
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	child := logger.WithFields(String("transport", "sse"))
	child.Info("connected")
	assert.Contains(t, buf.String(), "transport=sse")

	buf.Reset()
	logger.Info("no inherited fields")
	assert.NotContains(t, buf.String(), "transport=sse")
}

func TestErrorField(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	logger.Error("request failed", ErrorField(fmt.Errorf("connection refused")))
	assert.Contains(t, buf.String(), `error="connection refused"`)
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, NewJSONFormatter())

	logger.Info("tool listed",
		String("tool", "search"),
		Duration("elapsed", 1500*time.Millisecond),
		Bool("cached", false),
	)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "INFO", decoded["level"])
	assert.Equal(t, "tool listed", decoded["message"])
	assert.Equal(t, "search", decoded["tool"])
	assert.NotEmpty(t, decoded["timestamp"])
}

func TestNopLogger(t *testing.T) {
	logger := NewNop()
	logger.Error("discarded", Any("data", map[string]int{"a": 1}))
	assert.Equal(t, logger, logger.WithFields(String("k", "v")))
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", DebugLevel.String())
	assert.Equal(t, "INFO", InfoLevel.String())
	assert.Equal(t, "WARN", WarnLevel.String())
	assert.Equal(t, "ERROR", ErrorLevel.String())
	assert.Equal(t, "UNKNOWN", Level(42).String())
}
