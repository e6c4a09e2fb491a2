package emit

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecordingTracer(t *testing.T) (*tracetest.InMemoryExporter, *OTelEmitter) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return exporter, NewOTelEmitter(otel.Tracer("test"))
}

func attributeMap(attrs []attribute.KeyValue) map[string]any {
	m := make(map[string]any, len(attrs))
	for _, kv := range attrs {
		m[string(kv.Key)] = kv.Value.AsInterface()
	}
	return m
}

func TestOTelEmitter(t *testing.T) {
	t.Run("event becomes ended span with attributes", func(t *testing.T) {
		exporter, emitter := newRecordingTracer(t)

		emitter.Emit(Event{
			RunID:  "sess-001",
			Step:   1,
			NodeID: "gst_processing",
			Msg:    "node_completed",
			Meta: map[string]any{
				"intent":      "gst_filing",
				"duration_ms": int64(42),
			},
		})

		spans := exporter.GetSpans()
		if len(spans) != 1 {
			t.Fatalf("expected 1 span, got %d", len(spans))
		}
		span := spans[0]
		if span.Name != "node_completed" {
			t.Errorf("span name = %q, want %q", span.Name, "node_completed")
		}

		attrs := attributeMap(span.Attributes)
		if got := attrs["run_id"]; got != "sess-001" {
			t.Errorf("run_id = %v, want %q", got, "sess-001")
		}
		if got := attrs["step"]; got != int64(1) {
			t.Errorf("step = %v, want 1", got)
		}
		if got := attrs["node_id"]; got != "gst_processing" {
			t.Errorf("node_id = %v, want %q", got, "gst_processing")
		}
		if got := attrs["intent"]; got != "gst_filing" {
			t.Errorf("intent = %v, want %q", got, "gst_filing")
		}
		if got := attrs["duration_ms"]; got != int64(42) {
			t.Errorf("duration_ms = %v, want 42", got)
		}

		if !span.EndTime.After(span.StartTime) {
			t.Error("span was not ended")
		}
	})

	t.Run("error meta sets error status", func(t *testing.T) {
		exporter, emitter := newRecordingTracer(t)

		emitter.Emit(Event{
			RunID:  "sess-002",
			Step:   3,
			NodeID: "posting",
			Msg:    "node_failed",
			Meta:   map[string]any{"error": "unbalanced voucher"},
		})

		spans := exporter.GetSpans()
		if len(spans) != 1 {
			t.Fatalf("expected 1 span, got %d", len(spans))
		}
		span := spans[0]
		if span.Status.Code != codes.Error {
			t.Errorf("status code = %v, want %v", span.Status.Code, codes.Error)
		}
		if span.Status.Description != "unbalanced voucher" {
			t.Errorf("status description = %q, want %q", span.Status.Description, "unbalanced voucher")
		}
		if len(span.Events) == 0 {
			t.Error("expected recorded error event on span")
		}
	})

	t.Run("non-primitive meta stringified", func(t *testing.T) {
		exporter, emitter := newRecordingTracer(t)

		emitter.Emit(Event{
			RunID:  "sess-003",
			Step:   1,
			NodeID: "intent",
			Msg:    "node_completed",
			Meta:   map[string]any{"entities": []string{"08-2026"}},
		})

		attrs := attributeMap(exporter.GetSpans()[0].Attributes)
		if got := attrs["entities"]; got != "[08-2026]" {
			t.Errorf("entities = %v, want stringified slice", got)
		}
	})
}
