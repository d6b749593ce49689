package monitoring_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/osamaeid908/pigweed/monitoring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := monitoring.NewJSON("kvs", &buf)

	logger.Log(monitoring.Info, "gc", "sector reclaimed", map[string]any{"sector": 2})

	var entry monitoring.Entry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry.Level)
	assert.Equal(t, "kvs", entry.Component)
	assert.Equal(t, "gc", entry.EventType)
	assert.Equal(t, "sector reclaimed", entry.Message)
	assert.EqualValues(t, 2, entry.Details["sector"])
	assert.False(t, entry.Timestamp.IsZero())
}

func TestJSONLoggerOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	logger := monitoring.NewJSON("kvs", &buf)

	logger.Log(monitoring.Warn, "scan", "corrupt entry", nil)
	logger.Log(monitoring.Error, "write", "device failure", nil)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	assert.Len(t, lines, 2)
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", monitoring.Debug.String())
	assert.Equal(t, "INFO", monitoring.Info.String())
	assert.Equal(t, "WARN", monitoring.Warn.String())
	assert.Equal(t, "ERROR", monitoring.Error.String())
	assert.Equal(t, "UNKNOWN", monitoring.Level(42).String())
}

func TestNop(t *testing.T) {
	// Nop satisfies Logger and swallows everything.
	var logger monitoring.Logger = monitoring.Nop{}
	logger.Log(monitoring.Error, "noop", "nothing happens", nil)
}
