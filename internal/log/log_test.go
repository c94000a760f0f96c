package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestUseLoggerCapturesFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	UseLogger(zap.New(core))
	t.Cleanup(func() { UseLogger(zap.NewNop()) })

	Infow("period tagged", "period", "p1", "rasters", 7)
	Warnw("period failed", "period", "p2")
	Debugw("scene skipped")

	entries := logs.All()
	assert.Len(t, entries, 3)
	assert.Equal(t, "period tagged", entries[0].Message)
	assert.Equal(t, "p1", entries[0].ContextMap()["period"])
	assert.Equal(t, int64(7), entries[0].ContextMap()["rasters"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
}

func TestInit(t *testing.T) {
	assert.NoError(t, Init(true))
	Infof("initialized %s", "debug")
	Sync()
	UseLogger(zap.NewNop())
}
