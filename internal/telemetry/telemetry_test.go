package telemetry

import (
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/mmynk/ajo/internal/engine"
	"github.com/mmynk/ajo/internal/models"
	"github.com/mmynk/ajo/internal/storage/memory"
)

func TestSetup_NoopWhenEndpointEmpty(t *testing.T) {
	shutdown, err := Setup(context.Background(), Options{ServiceName: "ajo-test", Version: "dev"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestSetup_CreatesProviderWhenEndpointSet(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	// Use a non-routable address so no actual export happens.
	shutdown, err := Setup(context.Background(), Options{
		ServiceName: "ajo-test",
		Version:     "dev",
		Endpoint:    "http://192.0.2.1:4318",
		SampleRatio: 1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); !ok {
		t.Errorf("expected sdk provider to be registered, got %T", otel.GetTracerProvider())
	}
	// Shutdown should flush cleanly even though the endpoint is unreachable.
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestEngineSpans(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	recorder := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))

	ctx := context.Background()
	e := engine.New(memory.New())
	id, err := e.CreateGroup(ctx, "alice", 100, 60, 2, 1)
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	if err := e.Contribute(ctx, id, "mallory", 100, 2); err != models.ErrNotAMember {
		t.Fatalf("expected ErrNotAMember, got %v", err)
	}

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if spans[0].Name() != "engine.CreateGroup" || spans[0].Status().Code != codes.Ok {
		t.Errorf("unexpected first span: %s %v", spans[0].Name(), spans[0].Status())
	}
	if spans[1].Name() != "engine.Contribute" || spans[1].Status().Code != codes.Error {
		t.Errorf("unexpected second span: %s %v", spans[1].Name(), spans[1].Status())
	}
}

func TestNewProvider(t *testing.T) {
	ctx := context.Background()
	opts := Options{
		ServiceName:  "ajo-test",
		Version:      "dev",
		SampleRatio:  1,
		Storage:      "memory",
		PayoutPolicy: "full-or-expired",
	}

	t.Run("tags spans with the deployment", func(t *testing.T) {
		exporter := tracetest.NewInMemoryExporter()
		tp, err := NewProvider(ctx, opts, exporter)
		if err != nil {
			t.Fatalf("NewProvider failed: %v", err)
		}
		_, span := tp.Tracer("test").Start(ctx, "engine.CreateGroup")
		span.End()
		if err := tp.ForceFlush(ctx); err != nil {
			t.Fatalf("flush failed: %v", err)
		}

		spans := exporter.GetSpans()
		if len(spans) != 1 {
			t.Fatalf("expected 1 span, got %d", len(spans))
		}
		attrs := spans[0].Resource.Set()
		for key, want := range map[attribute.Key]string{
			StorageKey:      "memory",
			PayoutPolicyKey: "full-or-expired",
			"service.name":  "ajo-test",
		} {
			if got, ok := attrs.Value(key); !ok || got.AsString() != want {
				t.Errorf("resource %s = %q, want %q", key, got.AsString(), want)
			}
		}
	})

	t.Run("zero ratio drops root spans", func(t *testing.T) {
		exporter := tracetest.NewInMemoryExporter()
		opts := opts
		opts.SampleRatio = 0
		tp, err := NewProvider(ctx, opts, exporter)
		if err != nil {
			t.Fatalf("NewProvider failed: %v", err)
		}
		_, span := tp.Tracer("test").Start(ctx, "engine.Contribute")
		span.End()
		if err := tp.ForceFlush(ctx); err != nil {
			t.Fatalf("flush failed: %v", err)
		}
		if n := len(exporter.GetSpans()); n != 0 {
			t.Errorf("expected no spans, got %d", n)
		}
	})
}

func TestSampler(t *testing.T) {
	tests := []struct {
		ratio float64
		want  string
	}{
		{1, "ParentBased{root:AlwaysOnSampler"},
		{2, "ParentBased{root:AlwaysOnSampler"},
		{0, "ParentBased{root:AlwaysOffSampler"},
		{0.25, "ParentBased{root:TraceIDRatioBased{0.25}"},
	}
	for _, tt := range tests {
		if got := Sampler(tt.ratio).Description(); !strings.HasPrefix(got, tt.want) {
			t.Errorf("Sampler(%v) = %q, want prefix %q", tt.ratio, got, tt.want)
		}
	}
}
