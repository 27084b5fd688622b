package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"":        LevelInfo,
		"warning": LevelWarn,
		"error":   LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestNew_JSONWithAttributes(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelDebug, Format: "json", Output: &buf})
	l = With(l, "simulation_id", "sim-1")

	l.Info("hello", "k", "v")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "sim-1", entry["simulation_id"])
	assert.Equal(t, "v", entry["k"])
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelWarn, Format: "text", Output: &buf})

	l.Info("hidden")
	l.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestWith_NoOpPassthrough(t *testing.T) {
	assert.Equal(t, NoOpLogger{}, With(NoOpLogger{}, "a", 1))
	assert.Equal(t, NoOpLogger{}, With(nil))
}

func TestLogTurn(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelDebug, Format: "text", Output: &buf})

	LogTurn(l, TurnRecord{Role: "agent", Name: "A", Turn: 1, Tokens: 3, Duration: time.Millisecond})
	LogTurn(l, TurnRecord{Role: "agent", Name: "B", Turn: 2, Err: errors.New("boom")})

	out := buf.String()
	assert.Contains(t, out, "turn completed")
	assert.Contains(t, out, "turn failed")
	assert.True(t, strings.Contains(out, "error=boom"))
}
