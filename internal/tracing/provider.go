// Package tracing provides OpenTelemetry initialization and W3C trace context propagation.
package tracing

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/torosent/perfsuite/internal/config"
)

const (
	// DefaultServiceName is reported when neither config nor OTEL_SERVICE_NAME set one.
	DefaultServiceName  = "perfsuite"
	instrumentationName = "github.com/torosent/perfsuite"

	clientKey = attribute.Key("perfsuite.client")
)

// Provider owns the suite's TracerProvider and the decision whether spawned
// test processes inherit the orchestrator's trace context.
type Provider struct {
	tp        *sdktrace.TracerProvider
	tracer    trace.Tracer
	propagate bool
}

// SuiteAttributes describes the suite being measured. Empty values are skipped.
func SuiteAttributes(client, environment string) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	if client != "" {
		attrs = append(attrs, clientKey.String(client))
	}
	if environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(environment))
	}
	return attrs
}

// plan is the resolved tracing setup. The exporter, the sampler and the
// child-process propagation decision all come from the same plan.
type plan struct {
	serviceName string
	endpoint    string
	protocol    string
	sampleRate  float64
	propagate   bool
}

func resolve(cfg config.TracingConfig) (plan, error) {
	if !cfg.Enabled() {
		return plan{}, nil
	}
	p := plan{
		serviceName: firstNonEmpty(cfg.ServiceName, os.Getenv("OTEL_SERVICE_NAME"), DefaultServiceName),
		endpoint:    firstNonEmpty(cfg.Endpoint, os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
		protocol:    strings.ToLower(firstNonEmpty(cfg.Protocol, "grpc")),
		sampleRate:  cfg.SampleRate,
		propagate:   cfg.ShouldPropagate(),
	}
	if p.endpoint == "" {
		// Nothing is exported, but an upstream TRACEPARENT may still be relayed.
		return p, nil
	}
	if p.protocol != "grpc" && p.protocol != "http" {
		return plan{}, fmt.Errorf("unsupported OTLP protocol %q: use \"grpc\" or \"http\"", p.protocol)
	}
	if p.sampleRate < 0 || p.sampleRate > 1.0 {
		return plan{}, fmt.Errorf("tracing sample_rate must be between 0.0 and 1.0, got %g", p.sampleRate)
	}
	return p, nil
}

func (p plan) exporting() bool { return p.endpoint != "" }

func (p plan) sampler() sdktrace.Sampler {
	switch {
	case p.sampleRate >= 1.0:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case p.sampleRate <= 0:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(p.sampleRate))
	}
}

func (p plan) resource(ctx context.Context, version string, attrs []attribute.KeyValue) (*resource.Resource, error) {
	kvs := []attribute.KeyValue{semconv.ServiceName(p.serviceName)}
	if version != "" {
		kvs = append(kvs, semconv.ServiceVersion(version))
	}
	kvs = append(kvs, attrs...)
	return resource.New(ctx, resource.WithAttributes(kvs...))
}

// Init creates the suite's TracerProvider. attrs are attached to the resource
// so every span carries the client and environment under test. Returns a
// provider with a no-op tracer when nothing is exported.
func Init(ctx context.Context, cfg config.TracingConfig, attrs ...attribute.KeyValue) (*Provider, error) {
	p, err := resolve(cfg)
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}
	if !p.exporting() {
		return &Provider{propagate: p.propagate}, nil
	}

	res, err := p.resource(ctx, cfg.ServiceVersion, attrs)
	if err != nil {
		return nil, fmt.Errorf("tracing resource: %w", err)
	}

	exporter, err := p.exporter(ctx, cfg.Insecure)
	if err != nil {
		return nil, fmt.Errorf("tracing exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(p.sampler()),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagator)

	return &Provider{
		tp:        tp,
		tracer:    tp.Tracer(instrumentationName),
		propagate: p.propagate,
	}, nil
}

// Tracer returns the configured tracer, or a no-op tracer when nothing is exported.
func (p *Provider) Tracer() trace.Tracer {
	if p == nil || p.tracer == nil {
		return noop.NewTracerProvider().Tracer(instrumentationName)
	}
	return p.tracer
}

// ShouldPropagate reports whether spawned test processes get TRACEPARENT.
func (p *Provider) ShouldPropagate() bool {
	return p != nil && p.propagate
}

// Shutdown flushes pending spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

func (p plan) exporter(ctx context.Context, plaintext bool) (sdktrace.SpanExporter, error) {
	if p.protocol == "http" {
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(p.endpoint)}
		if plaintext {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	}
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(p.endpoint)}
	if plaintext {
		opts = append(opts,
			otlptracegrpc.WithInsecure(),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
	}
	return otlptracegrpc.New(ctx, opts...)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
