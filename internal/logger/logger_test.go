package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/totegamma/healthvault/internal/config"
)

func TestNew(t *testing.T) {
	log, err := New(config.Log{})
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, log.Core().Enabled(zapcore.DebugLevel))

	log, err = New(config.Log{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))

	_, err = New(config.Log{Level: "loud"})
	assert.Error(t, err)
	_, err = New(config.Log{Format: "xml"})
	assert.Error(t, err)
}

func TestFieldsOnEveryEntry(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := newLogger(core, zap.String("service", "healthvault"), zap.String("mode", "all"))

	log.Info("started")
	log.Named("registry").Warn("publish failed")

	require.Equal(t, 2, logs.Len())
	for _, entry := range logs.All() {
		fields := entry.ContextMap()
		assert.Equal(t, "healthvault", fields["service"])
		assert.Equal(t, "all", fields["mode"])
	}
}
