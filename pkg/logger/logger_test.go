package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestInit_LevelOverride(t *testing.T) {
	Init("fitbit-exporter", "prod", "warn", zap.String("run_id", "r-1"))
	t.Cleanup(func() { log, sugar = nil, nil })

	require.NotNil(t, L())
	assert.False(t, L().Core().Enabled(zapcore.InfoLevel))
	assert.True(t, L().Core().Enabled(zapcore.WarnLevel))
}

func TestL_LazyInit(t *testing.T) {
	log, sugar = nil, nil
	t.Cleanup(func() { log, sugar = nil, nil })

	assert.NotNil(t, L())
	assert.NotNil(t, S())
}
