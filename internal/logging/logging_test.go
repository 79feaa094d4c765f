package logging

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogFilePath(t *testing.T) {
	sessionStart := time.Date(2026, 2, 12, 21, 38, 36, 0, time.UTC)

	tests := []struct {
		name          string
		logsDir       string
		extensionName string
		want          string
	}{
		{
			name:          "basic path",
			logsDir:       "sweeplogs",
			extensionName: "worldsweep",
			want:          filepath.Join("sweeplogs", "worldsweep.20260212_213836.log"),
		},
		{
			name:          "relative path with dot",
			logsDir:       "./sweeplogs",
			extensionName: "worldsweep",
			want:          filepath.Join(".", "sweeplogs", "worldsweep.20260212_213836.log"),
		},
		{
			name:          "absolute path",
			logsDir:       filepath.Join("/var", "log", "worldsweep"),
			extensionName: "worldsweep",
			want:          filepath.Join("/var", "log", "worldsweep", "worldsweep.20260212_213836.log"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LogFilePath(tt.logsDir, tt.extensionName, sessionStart)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"TRACE", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"WARN", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"loud", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLevel(tt.in), "level %q", tt.in)
	}
}

func TestNew_CreatesLogFile(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	m, err := New(Options{
		Level:         "debug",
		Dir:           filepath.Join(dir, "logs"),
		ExtensionName: "worldsweep",
		SessionStart:  start,
	})
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })

	_, err = os.Stat(LogFilePath(filepath.Join(dir, "logs"), "worldsweep", start))
	assert.NoError(t, err)
}

func TestWriteLog_WritesToFile(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	m, err := New(Options{
		Level:         "debug",
		Dir:           dir,
		ExtensionName: "worldsweep",
		SessionStart:  start,
	})
	require.NoError(t, err)

	m.WriteLog(":SWEEP:RUN:", "requested from mission", "info")
	require.NoError(t, m.Close())

	data, err := os.ReadFile(LogFilePath(dir, "worldsweep", start))
	require.NoError(t, err)
	assert.Contains(t, string(data), "requested from mission")
	assert.Contains(t, string(data), ":SWEEP:RUN:")
}

func TestRemoveOldLogs(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	m, err := New(Options{
		Level:         "error",
		Dir:           dir,
		ExtensionName: "worldsweep",
		SessionStart:  start,
	})
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })

	old := filepath.Join(dir, "worldsweep.20250101_000000.log")
	require.NoError(t, os.WriteFile(old, []byte("old"), 0o644))
	stale := time.Now().Add(-10 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(old, stale, stale))

	recent := filepath.Join(dir, "worldsweep.20260301_000000.log")
	require.NoError(t, os.WriteFile(recent, []byte("recent"), 0o644))

	other := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(other, []byte("keep"), 0o644))
	require.NoError(t, os.Chtimes(other, stale, stale))

	m.RemoveOldLogs(7)

	_, err = os.Stat(old)
	assert.True(t, os.IsNotExist(err), "stale log should be removed")
	_, err = os.Stat(recent)
	assert.NoError(t, err)
	_, err = os.Stat(other)
	assert.NoError(t, err)
}
