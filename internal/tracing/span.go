package tracing

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

var propagator = propagation.NewCompositeTextMapPropagator(
	propagation.TraceContext{},
	propagation.Baggage{},
)

func orNoop(tracer trace.Tracer) trace.Tracer {
	if tracer == nil {
		return noop.NewTracerProvider().Tracer(instrumentationName)
	}
	return tracer
}

// StartTaskSpan starts the span covering one orchestrated engine process.
func StartTaskSpan(ctx context.Context, tracer trace.Tracer, file string) (context.Context, trace.Span) {
	ctx, span := orNoop(tracer).Start(ctx, "task "+filepath.Base(file),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	span.SetAttributes(attribute.String("perfsuite.file", file))
	return ctx, span
}

// StartStageSpan starts a span for a pipeline stage such as "summarize" or "compare".
func StartStageSpan(ctx context.Context, tracer trace.Tracer, stage string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := orNoop(tracer).Start(ctx, stage)
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	return ctx, span
}

// EndSpan finishes a span, recording error status if applicable.
func EndSpan(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// EnvCarrier returns the W3C trace context of ctx as KEY=VALUE pairs
// (TRACEPARENT, TRACESTATE, BAGGAGE) for a child process environment.
// It returns nil when ctx carries no valid span.
func EnvCarrier(ctx context.Context) []string {
	carrier := propagation.MapCarrier{}
	propagator.Inject(ctx, carrier)
	if len(carrier) == 0 {
		return nil
	}
	keys := carrier.Keys()
	sort.Strings(keys)
	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, strings.ToUpper(k)+"="+carrier[k])
	}
	return env
}

// ExtractEnv rebuilds a context from values produced by EnvCarrier.
func ExtractEnv(ctx context.Context, env []string) context.Context {
	carrier := propagation.MapCarrier{}
	for _, kv := range env {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		switch k = strings.ToLower(k); k {
		case "traceparent", "tracestate", "baggage":
			carrier[k] = v
		}
	}
	return propagator.Extract(ctx, carrier)
}
