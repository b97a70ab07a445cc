// Package telemetry wires OpenTelemetry tracing into the service. Finished
// spans are reported through slog rather than shipped to a collector.
package telemetry

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Provider owns the tracer provider for the process.
type Provider struct {
	provider *sdktrace.TracerProvider
}

// New returns a provider that logs every finished span to logger. When
// enabled is false the returned provider hands out the global no-op
// tracer.
func New(logger *slog.Logger, enabled bool) *Provider {
	if !enabled {
		return &Provider{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		provider: sdktrace.NewTracerProvider(
			sdktrace.WithSpanProcessor(&logSpanProcessor{logger: logger}),
		),
	}
}

// Tracer returns a named tracer.
func (p *Provider) Tracer(name string) trace.Tracer {
	if p == nil || p.provider == nil {
		return otel.Tracer(name)
	}
	return p.provider.Tracer(name)
}

// TracerProvider returns the underlying provider, or the global one when
// tracing is disabled.
func (p *Provider) TracerProvider() trace.TracerProvider {
	if p == nil || p.provider == nil {
		return otel.GetTracerProvider()
	}
	return p.provider
}

// Shutdown flushes and stops the provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.provider == nil {
		return nil
	}
	return p.provider.Shutdown(ctx)
}

// logSpanProcessor reports finished spans as log lines. Failed spans are
// logged at WARN, everything else at DEBUG.
type logSpanProcessor struct {
	logger *slog.Logger
}

func (p *logSpanProcessor) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

func (p *logSpanProcessor) OnEnd(span sdktrace.ReadOnlySpan) {
	attrs := []any{
		"span", span.Name(),
		"trace", span.SpanContext().TraceID().String(),
		"duration", span.EndTime().Sub(span.StartTime()).Round(time.Microsecond),
	}
	for _, kv := range span.Attributes() {
		attrs = append(attrs, string(kv.Key), kv.Value.Emit())
	}

	status := span.Status()
	if status.Code == codes.Error {
		attrs = append(attrs, "error", status.Description)
		p.logger.Warn("span failed", attrs...)
		return
	}
	p.logger.Debug("span", attrs...)
}

func (p *logSpanProcessor) Shutdown(context.Context) error   { return nil }
func (p *logSpanProcessor) ForceFlush(context.Context) error { return nil }

// Fail marks span as failed with err.
func Fail(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
