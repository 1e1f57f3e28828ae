package tracing

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestSetupDisabled(t *testing.T) {
	shutdown, err := Setup("")
	if err != nil {
		t.Fatalf("Setup err: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown err: %v", err)
	}
}

func TestSetupWritesSpans(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.json")
	shutdown, err := Setup(path)
	if err != nil {
		t.Fatalf("Setup err: %v", err)
	}

	_, span := otel.Tracer("test").Start(context.Background(), "dispatcher.turn")
	span.End()

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown err: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read trace file: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected exported span")
	}
}
