package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"DEBUG", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"WARNING", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"unknown", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, ParseLevel(tt.input), "ParseLevel(%q)", tt.input)
	}
}

func TestNewJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "info", Output: &buf})

	logger.Debug("hidden")
	logger.Info("loaded", zap.String("package", "tree-view"))
	require.NoError(t, logger.Sync())

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "loaded", entry["message"])
	assert.Equal(t, "tree-view", entry["package"])
	assert.Equal(t, "packhost", entry["logger"])
}

func TestNewDevelopmentOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "debug", Development: true, Output: &buf})

	logger.Debug("activating")
	assert.Contains(t, buf.String(), "activating")
	assert.Contains(t, buf.String(), "DEBUG")
}
