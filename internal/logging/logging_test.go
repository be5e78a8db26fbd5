package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":      slog.LevelInfo,
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		" warn": slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestNew_WritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "server.log")

	logger, closer, err := New(Options{Level: "debug", Format: "json", File: path})
	require.NoError(t, err)

	logger.Info("check-in saved", slog.String("user_id", "u1"))
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"check-in saved"`)
	assert.Contains(t, string(data), `"user_id":"u1"`)
}

func TestNew_RejectsUnknownLevel(t *testing.T) {
	_, _, err := New(Options{Level: "shout"})
	assert.Error(t, err)
}

func TestNewCLI_RespectsVerbosity(t *testing.T) {
	var buf bytes.Buffer

	NewCLI(&buf, false).Debug("hidden")
	assert.Empty(t, buf.String())

	NewCLI(&buf, true).Debug("shown", slog.Int("users", 3))
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "users=3")
}
