package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf).With(String("component", "registry"))

	l.Info("model ready",
		String("version", "linear-1"),
		Int("pairs", 42),
		Float64("rmse", 1.5),
		Duration("took", 1500*time.Millisecond),
		Bool("cached", true),
		Strings("symbols", []string{"A", "B"}),
		Error(errors.New("boom")),
	)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "model ready", entry["message"])
	assert.Equal(t, "registry", entry["component"])
	assert.Equal(t, "linear-1", entry["version"])
	assert.Equal(t, 42.0, entry["pairs"])
	assert.Equal(t, 1.5, entry["rmse"])
	assert.Equal(t, 1500.0, entry["took"])
	assert.Equal(t, true, entry["cached"])
	assert.Equal(t, "A, B", entry["symbols"])
	assert.Equal(t, "boom", entry["error"])
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(&Config{Level: "loud"})
	assert.Error(t, err)
}

func TestNopDiscards(t *testing.T) {
	Nop().Error("ignored", String("k", "v"))
}
