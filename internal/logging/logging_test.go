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
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"Warn", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.in)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestNewWriterFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, slog.LevelWarn)
	l.Info("hidden")
	l.Warn("fault", "kind", "tick_overrun")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "fault", rec["msg"])
	assert.Equal(t, "tick_overrun", rec["kind"])
}

func TestNewWritesToDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	l, closer, err := New(dir, "info")
	require.NoError(t, err)
	l.Info("session started", "session", "abc")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"session":"abc"`)
}
