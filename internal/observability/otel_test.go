package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/tbourn/karigpt-broker/internal/config"
)

func keepGlobals(t *testing.T) {
	t.Helper()
	tp := otel.GetTracerProvider()
	prop := otel.GetTextMapPropagator()
	exp, res := newExporter, newResource
	t.Cleanup(func() {
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(prop)
		newExporter, newResource = exp, res
	})
}

func enabled(name string) config.OTELConfig {
	return config.OTELConfig{
		Enabled:     true,
		Insecure:    true,
		Endpoint:    "localhost:4317",
		ServiceName: name,
		SampleRatio: 1,
	}
}

func TestSetup_DisabledIsNoop(t *testing.T) {
	keepGlobals(t)
	before := otel.GetTracerProvider()

	shutdown, err := Setup(context.Background(), config.OTELConfig{Enabled: false}, "v0")
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("noop shutdown: %v", err)
	}
	if otel.GetTracerProvider() != before {
		t.Fatalf("disabled tracing must not replace the provider")
	}
}

func TestSetup_InstallsProvider(t *testing.T) {
	keepGlobals(t)

	for _, insecure := range []bool{true, false} {
		cfg := enabled("karigpt-test")
		cfg.Insecure = insecure
		shutdown, err := Setup(context.Background(), cfg, "v1.0.0")
		if err != nil {
			t.Fatalf("Setup(insecure=%v): %v", insecure, err)
		}
		if _, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); !ok {
			t.Fatalf("expected sdk tracer provider")
		}
		_, span := otel.Tracer("test").Start(context.Background(), "gate.handle")
		span.End()

		ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
		_ = shutdown(ctx)
		cancel()
	}
}

func TestSetup_BlankServiceNameUsesDefault(t *testing.T) {
	keepGlobals(t)
	var got string
	newResource = func(_ context.Context, service, version string) (*resource.Resource, error) {
		got = service
		return resource.NewSchemaless(attribute.String("service.version", version)), nil
	}

	shutdown, err := Setup(context.Background(), enabled("  "), "v2")
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	defer func() { _ = shutdown(context.Background()) }()
	if got != DefaultServiceName {
		t.Fatalf("service name = %q; want %q", got, DefaultServiceName)
	}
}

func TestSetup_ErrorsLeaveGlobalsIntact(t *testing.T) {
	cases := map[string]func(){
		"exporter": func() {
			newExporter = func(context.Context, ...otlptracegrpc.Option) (*otlptrace.Exporter, error) {
				return nil, errors.New("exporter down")
			}
		},
		"resource": func() {
			newResource = func(context.Context, string, string) (*resource.Resource, error) {
				return nil, errors.New("bad resource")
			}
		},
	}
	for name, breakSeam := range cases {
		t.Run(name, func(t *testing.T) {
			keepGlobals(t)
			breakSeam()
			before := otel.GetTracerProvider()

			if _, err := Setup(context.Background(), enabled("svc"), "v0"); err == nil {
				t.Fatalf("expected error")
			}
			if otel.GetTracerProvider() != before {
				t.Fatalf("provider replaced on failure")
			}
		})
	}
}
