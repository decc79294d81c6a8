package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, zapcore.InfoLevel, cfg.Level)
	assert.False(t, cfg.Development)
}

func TestInitReturnsUsableLogger(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Level = zapcore.DebugLevel

	log, level, err := Init(&cfg)
	require.NoError(t, err)
	require.NotNil(t, log)
	defer log.Sync()

	assert.Equal(t, zapcore.DebugLevel, level.Level())
	log.Infow("test message", "key", "value")

	level.SetLevel(zapcore.WarnLevel)
	assert.Equal(t, zapcore.WarnLevel, level.Level())
}
