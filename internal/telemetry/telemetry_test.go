package telemetry

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

func TestSetup_NilConfigIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), nil)
	if err != nil {
		t.Fatalf("Setup(nil): %v", err)
	}
	if shutdown == nil {
		t.Fatal("shutdown func is nil")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("noop shutdown: %v", err)
	}
}

func TestBuildResource_ServiceName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", DefaultServiceName},
		{"waste-sync", "waste-sync"},
	}
	for _, tt := range tests {
		res, err := buildResource(tt.in)
		if err != nil {
			t.Fatalf("buildResource(%q): %v", tt.in, err)
		}
		got, ok := res.Set().Value(semconv.ServiceNameKey)
		if !ok || got.AsString() != tt.want {
			t.Errorf("service.name = %q, want %q", got.AsString(), tt.want)
		}
	}
}

// memExporter keeps exported log records in memory.
type memExporter struct {
	mu      sync.Mutex
	records []sdklog.Record
}

func (e *memExporter) Export(_ context.Context, recs []sdklog.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range recs {
		e.records = append(e.records, r.Clone())
	}
	return nil
}

func (e *memExporter) Shutdown(context.Context) error   { return nil }
func (e *memExporter) ForceFlush(context.Context) error { return nil }

func attrsOf(r sdklog.Record) map[string]string {
	out := make(map[string]string)
	r.WalkAttributes(func(kv otellog.KeyValue) bool {
		out[kv.Key] = kv.Value.String()
		return true
	})
	return out
}

func TestSlogHandler_MirrorsRecords(t *testing.T) {
	exp := &memExporter{}
	provider := sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewSimpleProcessor(exp)))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	var buf bytes.Buffer
	text := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})
	logger := slog.New(NewSlogHandler(text, provider)).With("component", "sync")

	logger.Debug("hidden")
	logger.WithGroup("plan").Info("sync complete", "created", 2, "dry_run", false)
	logger.Error("fetch failed", "error", "timeout")

	if !strings.Contains(buf.String(), "sync complete") {
		t.Errorf("text output missing record: %q", buf.String())
	}
	if strings.Contains(buf.String(), "hidden") {
		t.Error("debug record leaked through info handler")
	}

	if len(exp.records) != 2 {
		t.Fatalf("exported %d records, want 2", len(exp.records))
	}

	first := exp.records[0]
	if first.Body().AsString() != "sync complete" {
		t.Errorf("body = %q", first.Body().AsString())
	}
	if first.Severity() != otellog.SeverityInfo {
		t.Errorf("severity = %v, want info", first.Severity())
	}
	attrs := attrsOf(first)
	if attrs["component"] != "sync" {
		t.Errorf("component = %q, want sync", attrs["component"])
	}
	if attrs["plan.created"] != "2" {
		t.Errorf("plan.created = %q, want 2 (attrs %v)", attrs["plan.created"], attrs)
	}

	if exp.records[1].Severity() != otellog.SeverityError {
		t.Errorf("second severity = %v, want error", exp.records[1].Severity())
	}
}
