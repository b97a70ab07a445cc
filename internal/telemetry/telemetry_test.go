package telemetry

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestProviderLogsSpans(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	p := New(logger, true)
	tracer := p.Tracer("test")

	_, ok := tracer.Start(context.Background(), "sweep")
	ok.SetAttributes(attribute.Int("expired", 2))
	ok.End()

	_, bad := tracer.Start(context.Background(), "confirm")
	Fail(bad, errors.New("RESERVATION_EXPIRED"))
	bad.End()

	require.NoError(t, p.Shutdown(context.Background()))

	out := buf.String()
	assert.Contains(t, out, "span=sweep")
	assert.Contains(t, out, "expired=2")
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "RESERVATION_EXPIRED")
}

func TestDisabledProvider(t *testing.T) {
	p := New(nil, false)

	_, span := p.Tracer("test").Start(context.Background(), "noop")
	span.End()

	assert.False(t, span.SpanContext().IsValid())
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestTracerProviderExposesSDK(t *testing.T) {
	var buf bytes.Buffer
	p := New(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), true)

	_, span := p.TracerProvider().Tracer("http").Start(context.Background(), "GET /health")
	span.End()
	require.NoError(t, p.Shutdown(context.Background()))

	assert.True(t, span.SpanContext().IsValid())
	assert.Contains(t, buf.String(), "GET /health")
}
