package trace

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeNoneKeepsNoopTracer(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ExporterType = ExporterNone
	require.NoError(t, Initialize(context.Background(), cfg))
	defer Shutdown(context.Background())

	ctx, span := InstrumentCycle(context.Background(), "det-1", 7, 2048)
	defer span.End()
	assert.False(t, span.SpanContext().IsValid())
	assert.Empty(t, TraceID(ctx))
}

func TestInitializeStdout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ExporterType = ExporterStdout
	require.NoError(t, Initialize(context.Background(), cfg))
	assert.ErrorIs(t, Initialize(context.Background(), cfg), ErrAlreadyInitialized)

	ctx, span := InstrumentModelLoad(context.Background(), "model.onnx")
	assert.True(t, span.SpanContext().IsValid())
	assert.Len(t, TraceID(ctx), 32)
	span.End()

	require.NoError(t, Shutdown(context.Background()))
	require.NoError(t, Shutdown(context.Background()))
}

func TestInitializeUnknownExporter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ExporterType = "carrier-pigeon"
	assert.Error(t, Initialize(context.Background(), cfg))
}

func TestWithSpanReturnsError(t *testing.T) {
	boom := errors.New("boom")
	err := WithSpan(context.Background(), "test", func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)

	assert.NoError(t, WithSpan(context.Background(), "test", func(context.Context) error { return nil }))
}

func TestAttrs(t *testing.T) {
	attrs := DetectorAttrs("det-1", 3)
	require.Len(t, attrs, 2)
	assert.Equal(t, AttrDetectorID, string(attrs[0].Key))
	assert.Equal(t, int64(3), attrs[1].Value.AsInt64())

	trig := TriggerAttrs("ARMED", 0.9, 0.8, true, false)
	assert.Len(t, trig, 5)
	assert.Len(t, ErrorAttrs("inference", "bad"), 2)
}
