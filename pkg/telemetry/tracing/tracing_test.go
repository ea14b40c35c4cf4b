package tracing_test

import (
	"context"
	"testing"

	"github.com/fluxorio/asyncnet/pkg/telemetry/tracing"
)

func TestNewStdoutProviderStartsAndShutsDown(t *testing.T) {
	tp, shutdown, err := tracing.New(context.Background(), tracing.Config{
		ServiceName: "asyncnet-test",
		Exporter:    tracing.ExporterStdout,
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if tp == nil {
		t.Fatal("New returned a nil TracerProvider")
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			t.Fatalf("shutdown returned error: %v", err)
		}
	}()

	_, span := tracing.StartProviderSpan(context.Background(), "asyncnet/test", "DoWork")
	span.End()
}

func TestNewRejectsUnknownExporter(t *testing.T) {
	_, _, err := tracing.New(context.Background(), tracing.Config{
		ServiceName: "asyncnet-test",
		Exporter:    "not-a-real-exporter",
	})
	if err == nil {
		t.Fatal("expected an error for an unknown exporter")
	}
}
