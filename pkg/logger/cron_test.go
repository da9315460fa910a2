package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestCronLoggerWritesToZap(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := Cron(zap.New(core))

	l.Info("wake", "now", "2025-02-01")
	l.Error(errors.New("boom"), "job panicked", "entry", 1)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "cron", entries[0].LoggerName)
	assert.Equal(t, "wake", entries[0].Message)

	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	fields := entries[1].ContextMap()
	assert.Equal(t, "boom", fields["error"])
	assert.Equal(t, int64(1), fields["entry"])
}
