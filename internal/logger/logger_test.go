package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LogConfig{Format: "json"})
	l.Info().Str("bill_id", "B-1").Msg("bill added")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "B-1", entry["bill_id"])
	assert.Equal(t, "bill added", entry["message"])
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LogConfig{Format: "console"})
	l.Warn().Msg("low balance")
	assert.Contains(t, buf.String(), "low balance")
}

func TestSetup_BadLevel(t *testing.T) {
	err := Setup(LogConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestSetup_FileOutput(t *testing.T) {
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	path := filepath.Join(t.TempDir(), "billbox.log")
	require.NoError(t, Setup(LogConfig{Level: "debug", Format: "json", Output: path}))

	l := WithComponent("test")
	l.Info().Msg("hello")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"test"`)
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
	require.NoError(t, Close())
}

func TestSetup_ReplacesFile(t *testing.T) {
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })
	dir := t.TempDir()

	tests := []struct {
		name   string
		output string
	}{
		{"first file", filepath.Join(dir, "a.log")},
		{"second file", filepath.Join(dir, "b.log")},
		{"stderr", "stderr"},
	}
	var opened *os.File
	for _, tt := range tests {
		require.NoError(t, Setup(LogConfig{Level: "info", Format: "json", Output: tt.output}), tt.name)
		if opened != nil {
			_, err := opened.Write([]byte("x"))
			assert.ErrorIs(t, err, os.ErrClosed, "%s: earlier file still open", tt.name)
		}
		opened = logFile
	}
	assert.Nil(t, logFile)
	require.NoError(t, Close())
}

func TestClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "billbox.log")
	require.NoError(t, Setup(LogConfig{Level: "info", Format: "json", Output: path}))
	f := logFile
	require.NotNil(t, f)

	require.NoError(t, Close())
	_, err := f.Write([]byte("x"))
	assert.ErrorIs(t, err, os.ErrClosed)
	assert.NoError(t, Close(), "closing twice is a no-op")
}
