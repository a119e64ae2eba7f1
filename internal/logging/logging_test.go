package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recordstore/internal/config"
)

func TestWriterConsoleAndFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "recordstore.log")
	var console bytes.Buffer

	w := writer(config.LogConfig{File: path, JSON: true}, &console)
	logger := zerolog.New(w)
	logger.Info().Str("entity", "sellers").Msg("record created")

	assert.Contains(t, console.String(), `"entity":"sellers"`)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "record created")
}

func TestWriterConsoleOnly(t *testing.T) {
	var console bytes.Buffer
	w := writer(config.LogConfig{}, &console)
	logger := zerolog.New(w)
	logger.Warn().Msg("careful")
	assert.Contains(t, console.String(), "careful")
}

func TestLevels(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	applyLevel("debug")
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
	applyLevel("nonsense")
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())

	assert.Equal(t, "info", LevelFromVerbosity(0, "info"))
	assert.Equal(t, "debug", LevelFromVerbosity(1, "info"))
	assert.Equal(t, "trace", LevelFromVerbosity(3, "info"))
}
