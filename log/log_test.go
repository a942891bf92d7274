package log

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesGroupAndMessage(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Level: "debug", Group: "test", Out: &buf})

	logger.Info().Str("Address", "127.0.0.1:8080").Msg("Server listening")

	out := buf.String()
	assert.Contains(t, out, "Server listening")
	assert.Contains(t, out, "Group=test")
	assert.Contains(t, out, "Address=127.0.0.1:8080")
}

func TestUnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Level: "chatty", Out: &buf})

	assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())
	logger.Debug().Msg("hidden")
	assert.Empty(t, buf.String())
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "beacon.log")
	var buf bytes.Buffer
	logger := New(Options{File: path, Out: &buf})

	logger.Warn().Msg("to both sinks")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to both sinks")
	assert.Contains(t, buf.String(), "to both sinks")
}

func TestGnetLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewGnetLogger(New(Options{Level: "debug", Out: &buf}))

	logger.Infof("engine started with %d loops", 4)
	assert.Contains(t, buf.String(), "engine started with 4 loops")
	assert.Contains(t, buf.String(), "Component=gnet")
}
