package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestInteractiveWithoutFileIsNop(t *testing.T) {
	logger, err := New(Options{Interactive: true})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.ErrorLevel))
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jwtlens.log")
	logger, err := New(Options{Level: "info", File: path, Interactive: true})
	require.NoError(t, err)

	logger.Info("analysis finished")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "analysis finished")
}

func TestVerboseEnablesDebug(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jwtlens.log")
	logger, err := New(Options{Level: "warn", File: path, Verbose: true})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestInvalidLevel(t *testing.T) {
	_, err := New(Options{Level: "chatty"})
	assert.Error(t, err)
}
