package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAppendsToFileAndConsole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "deduplication.log")
	var console bytes.Buffer

	logger, closer, err := New(path, "info", &console)
	require.NoError(t, err)
	logger.Info().Str("file", "a.txt").Msg("kept")
	logger.Debug().Msg("hidden at info level")
	require.NoError(t, closer.Close())

	logger, closer, err = New(path, "info", nil)
	require.NoError(t, err)
	logger.Warn().Str("file", "b.txt").Msg("dropped")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, "kept")
	assert.Contains(t, out, "file=a.txt")
	assert.Contains(t, out, "dropped")
	assert.NotContains(t, out, "hidden at info level")
	assert.NotContains(t, out, "\x1b[")

	assert.Contains(t, console.String(), "kept")
}

func TestNewConsoleOnly(t *testing.T) {
	var console bytes.Buffer
	logger, closer, err := New("-", "debug", &console)
	require.NoError(t, err)
	logger.Debug().Msg("visible")
	assert.NoError(t, closer.Close())
	assert.Contains(t, console.String(), "visible")
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, _, err := New("", "loud", nil)
	assert.Error(t, err)
}
