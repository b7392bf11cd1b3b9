package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/roundkeeper/internal/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestTextHandlerIsDefault(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, "", slog.LevelInfo))
	logger.Info("round active", slog.Uint64("round_id", 5))

	assert.Contains(t, buf.String(), "msg=\"round active\"")
	assert.Contains(t, buf.String(), "round_id=5")
}

func TestJSONHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, "json", slog.LevelInfo))
	logger.Debug("hidden")
	logger.Info("tick", slog.String("decision", "wait"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "tick", line["msg"])
	assert.Equal(t, "wait", line["decision"])
}

func TestFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keeper.log")
	logger, closeFn := New(config.LogConfig{Level: "info", File: path, MaxSizeMB: 1})
	logger.Info("written to file")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}
