package telemetry

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/signal-sync/signal-sync/internal/config"
	"github.com/signal-sync/signal-sync/internal/signal"
)

const tracerName = "signal-sync"

// SetupTracing installs the global tracer provider described by cfg, with
// spans exported to w. The returned function flushes and stops the provider.
// When tracing is disabled the global no-op provider is left in place.
func SetupTracing(cfg config.TracingConfig, w io.Writer) (func(context.Context) error, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}
	tp, err := NewTracerProvider(cfg, w)
	if err != nil {
		return nil, err
	}
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// NewTracerProvider builds an SDK provider batching spans to cfg.Exporter.
func NewTracerProvider(cfg config.TracingConfig, w io.Writer) (*sdktrace.TracerProvider, error) {
	var exp sdktrace.SpanExporter
	switch cfg.Exporter {
	case "stdout", "":
		e, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("stdout exporter: %w", err)
		}
		exp = e
	default:
		return nil, fmt.Errorf("unknown trace exporter %q", cfg.Exporter)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", tracerName),
		)),
	), nil
}

// StartSessionSpan opens the span covering one sync session. The global
// tracer provider is used, so spans are dropped unless main installs one.
func StartSessionSpan(ctx context.Context, id, name, remoteAddr string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "signal.session",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("signal.session_id", id),
			attribute.String("signal.name", name),
			attribute.String("net.peer.addr", remoteAddr),
		),
	)
}

// EndSessionSpan records the termination on span and ends it.
func EndSessionSpan(span trace.Span, t signal.Termination) {
	span.SetAttributes(
		attribute.String("signal.cause", t.Cause.String()),
		attribute.Int64("signal.ticks", int64(t.Ticks)),
		attribute.Int64("signal.sent", int64(t.Sent)),
	)
	if t.Cause.Expected() || t.Err == nil {
		span.SetStatus(codes.Ok, "")
	} else {
		span.RecordError(t.Err)
		span.SetStatus(codes.Error, t.Err.Error())
	}
	span.End()
}
