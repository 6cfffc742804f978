package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInitWritesRotatingFile(t *testing.T) {
	old := Log
	defer func() { Log = old }()

	path := filepath.Join(t.TempDir(), "phub.log")
	Init("info", false, FileOptions{Filename: path, MaxSizeMB: 1})
	Info("hello", zap.String("k", "v"))
	Debug("hidden")
	Sync()

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"msg":"hello"`)
	assert.Contains(t, string(b), `"k":"v"`)
	assert.NotContains(t, string(b), "hidden")
}

func TestInitBadLevelFallsBack(t *testing.T) {
	old := Log
	defer func() { Log = old }()

	Init("nope", true, FileOptions{})
	assert.True(t, Log.Core().Enabled(zap.InfoLevel))
	assert.False(t, Log.Core().Enabled(zap.DebugLevel))
}
