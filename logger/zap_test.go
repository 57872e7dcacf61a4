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

func TestZapLoggerFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core))

	l.Info("payment signed", map[string]any{"call_id": "abc", "amount": "0.010000"})
	l.Error("fetch failed", map[string]any{"error": errors.New("boom")})

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)

	assert.Equal(t, "payment signed", entries[0].Message)
	assert.Equal(t, "abc", entries[0].ContextMap()["call_id"])
	assert.Equal(t, "0.010000", entries[0].ContextMap()["amount"])

	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "boom", entries[1].ContextMap()["error"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("info"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("verbose"))
}

func TestMerge(t *testing.T) {
	base := map[string]any{"call_id": "1", "url": "a"}
	out := Merge(base, map[string]any{"url": "b", "status": 402})

	assert.Equal(t, map[string]any{"call_id": "1", "url": "b", "status": 402}, out)
	assert.Equal(t, "a", base["url"])
}
