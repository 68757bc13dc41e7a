package logctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromCtx_EnrichesBase(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core).Sugar()

	ctx := WithUserID(WithTraceID(context.Background(), "trace-1"), "user-1")
	FromCtx(ctx, base).Info("hello")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "trace-1", fields["trace_id"])
		assert.Equal(t, "user-1", fields["user_id"])
	}
}

func TestFromCtx_PrefersStoredLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	stored := zap.New(core).Sugar().With("component", "req")

	ctx := WithLogger(context.Background(), stored)
	FromCtx(ctx, zap.NewNop().Sugar()).Info("hello")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "req", entries[0].ContextMap()["component"])
	}
	assert.Equal(t, "", TraceID(ctx))
}
