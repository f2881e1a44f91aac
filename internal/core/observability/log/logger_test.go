package log

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerFieldsReachCore(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewWithCore(core).With(Component("decoder"))

	logger.Warn("frame rejected",
		Int("pairs", 3),
		Uint32("slot", 7),
		Duration("took", time.Second),
		Error(errors.New("odd length")))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
	fields := entry.ContextMap()
	assert.Equal(t, "decoder", fields["component"])
	assert.EqualValues(t, 3, fields["pairs"])
	assert.EqualValues(t, 7, fields["slot"])
	assert.Equal(t, "odd length", fields["error"])
}

func TestSetLevelFiltersChildren(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	root := NewWithCore(core)
	child := root.With(String("k", "v"))

	root.SetLevel(LevelWarn)
	child.Info("dropped")
	child.Warn("kept")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "kept", logs.All()[0].Message)
	assert.Equal(t, LevelWarn, child.GetLevel())
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"":      LevelInfo,
		"debug": LevelDebug,
		"warn":  LevelWarn,
		"error": LevelError,
		"off":   LevelNone,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestNopLoggerIsSilent(t *testing.T) {
	logger := NewNop()
	logger.Error("ignored")
	assert.Equal(t, LevelNone, logger.GetLevel())
}
