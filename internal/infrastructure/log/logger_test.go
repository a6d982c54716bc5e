package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitDefault(t *testing.T) {
	assert.NotNil(t, Default().Logger)
	Default().Debug("test init default")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel(" WARN "))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel(""))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("verbose"))
}

func TestLogger_ForRun(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := &Logger{zap.New(core)}

	l.Named("fdd").ForRun("run-1", "site-a").With(zap.String("rule", "fc1")).Info("evaluated")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "run-1", fields["run_id"])
		assert.Equal(t, "site-a", fields["site_id"])
		assert.Equal(t, "fc1", fields["rule"])
		assert.Equal(t, "fdd", entries[0].LoggerName)
	}
}

func TestNewNop(t *testing.T) {
	NewNop().Error("dropped")
}
