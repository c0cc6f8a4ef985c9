package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRequestIDIsAttached(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := New(zap.New(core))

	ctx := ContextWithRequestID(context.Background(), "req-1")
	l.Info(ctx, "hello", zap.String("k", "v"))
	l.Warn(context.Background(), "no id")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "req-1", entries[0].ContextMap()[requestID])
	assert.Equal(t, "v", entries[0].ContextMap()["k"])
	_, has := entries[1].ContextMap()[requestID]
	assert.False(t, has)
}

func TestLoggerRoundTripsThroughContext(t *testing.T) {
	l := Nop()
	ctx := ContextWithLogger(context.Background(), l)

	got, ok := GetFromContext(ctx)
	require.True(t, ok)
	assert.Same(t, l, got)

	_, ok = GetFromContext(context.Background())
	assert.False(t, ok)
}
