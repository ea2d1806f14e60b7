package tracing

import (
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"

	"github.com/torosent/perfsuite/internal/config"
)

func TestSuiteAttributes(t *testing.T) {
	tests := []struct {
		name        string
		client      string
		environment string
		want        map[attribute.Key]string
	}{
		{"both", "web", "staging", map[attribute.Key]string{"perfsuite.client": "web", "deployment.environment": "staging"}},
		{"client only", "web", "", map[attribute.Key]string{"perfsuite.client": "web"}},
		{"none", "", "", map[attribute.Key]string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SuiteAttributes(tt.client, tt.environment)
			if len(got) != len(tt.want) {
				t.Fatalf("SuiteAttributes() len = %d, want %d", len(got), len(tt.want))
			}
			for _, kv := range got {
				if kv.Value.AsString() != tt.want[kv.Key] {
					t.Errorf("%s = %q, want %q", kv.Key, kv.Value.AsString(), tt.want[kv.Key])
				}
			}
		})
	}
}

func TestPlanResource(t *testing.T) {
	p := plan{serviceName: "checkout"}
	res, err := p.resource(context.Background(), "1.4.0", SuiteAttributes("web", "prod"))
	if err != nil {
		t.Fatalf("resource() error = %v", err)
	}
	want := map[attribute.Key]string{
		"service.name":           "checkout",
		"service.version":        "1.4.0",
		"perfsuite.client":       "web",
		"deployment.environment": "prod",
	}
	set := res.Set()
	for k, v := range want {
		got, ok := set.Value(k)
		if !ok {
			t.Errorf("resource missing %s", k)
			continue
		}
		if got.AsString() != v {
			t.Errorf("%s = %q, want %q", k, got.AsString(), v)
		}
	}
}

func TestPlanResourceOmitsEmptyVersion(t *testing.T) {
	res, err := plan{serviceName: "perfsuite"}.resource(context.Background(), "", nil)
	if err != nil {
		t.Fatalf("resource() error = %v", err)
	}
	if _, ok := res.Set().Value("service.version"); ok {
		t.Error("service.version set for an empty version")
	}
}

func TestResolvePropagation(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	off := false
	on := true
	tests := []struct {
		name          string
		cfg           config.TracingConfig
		wantExporting bool
		wantPropagate bool
	}{
		{"disabled", config.TracingConfig{SampleRate: 1}, false, false},
		{"exporting", config.TracingConfig{Endpoint: "localhost:4317", SampleRate: 1}, true, true},
		{"relay only", config.TracingConfig{Propagate: &on}, false, true},
		{"exporting without propagation", config.TracingConfig{Endpoint: "localhost:4317", Propagate: &off}, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := resolve(tt.cfg)
			if err != nil {
				t.Fatalf("resolve() error = %v", err)
			}
			if p.exporting() != tt.wantExporting {
				t.Errorf("exporting() = %v, want %v", p.exporting(), tt.wantExporting)
			}
			if p.propagate != tt.wantPropagate {
				t.Errorf("propagate = %v, want %v", p.propagate, tt.wantPropagate)
			}
		})
	}
}

func TestResolveEndpointFromEnv(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")
	t.Setenv("OTEL_SERVICE_NAME", "")
	p, err := resolve(config.TracingConfig{Protocol: "GRPC", SampleRate: 1})
	if err != nil {
		t.Fatalf("resolve() error = %v", err)
	}
	if p.endpoint != "collector:4317" {
		t.Errorf("endpoint = %q, want %q", p.endpoint, "collector:4317")
	}
	if p.protocol != "grpc" {
		t.Errorf("protocol = %q, want %q", p.protocol, "grpc")
	}
	if p.serviceName != DefaultServiceName {
		t.Errorf("serviceName = %q, want %q", p.serviceName, DefaultServiceName)
	}
}

func TestPlanSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1, "ParentBased{root:AlwaysOnSampler"},
		{0, "ParentBased{root:AlwaysOffSampler"},
		{0.25, "ParentBased{root:TraceIDRatioBased{0.25}"},
	}
	for _, tt := range tests {
		got := plan{sampleRate: tt.rate}.sampler().Description()
		if !strings.HasPrefix(got, tt.want) {
			t.Errorf("sampler(%g) = %q, want prefix %q", tt.rate, got, tt.want)
		}
	}
}
