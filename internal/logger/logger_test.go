package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestInit(t *testing.T) {
	var buf bytes.Buffer
	l := InitWriter(&buf, "test-service", "debug")
	l.Info().Msg("hello")

	out := buf.String()
	if !strings.Contains(out, `"service":"test-service"`) {
		t.Errorf("expected service field, got %s", out)
	}
	if zerolog.GlobalLevel() != zerolog.DebugLevel {
		t.Errorf("expected debug level, got %v", zerolog.GlobalLevel())
	}

	InitWriter(&buf, "test-service", "nonsense")
	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Errorf("expected fallback to info, got %v", zerolog.GlobalLevel())
	}
}

func TestTraceID_RoundTrip(t *testing.T) {
	ctx := context.Background()

	if tid := TraceID(ctx); tid != "" {
		t.Errorf("expected empty trace id, got %q", tid)
	}

	ctx = WithTraceID(ctx, "test-trace-123")
	if tid := TraceID(ctx); tid != "test-trace-123" {
		t.Errorf("expected 'test-trace-123', got %q", tid)
	}
}

func TestGenerateTraceID(t *testing.T) {
	ts := time.Date(2024, 1, 15, 10, 30, 0, 123456789, time.UTC)
	tid := GenerateTraceID("BTCUSDT", ts)

	if !strings.HasPrefix(tid, "BTCUSDT-") {
		t.Errorf("expected trace id to start with 'BTCUSDT-', got %s", tid)
	}
	if !strings.Contains(tid, "123456789") {
		t.Errorf("expected trace id to contain nanoseconds, got %s", tid)
	}
}

func TestCtx(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	plain := Ctx(context.Background(), base)
	plain.Info().Msg("plain")
	if strings.Contains(buf.String(), "trace_id") {
		t.Errorf("unexpected trace_id without context value: %s", buf.String())
	}

	buf.Reset()
	traced := Ctx(WithTraceID(context.Background(), "abc-123"), base)
	traced.Info().Msg("traced")
	if !strings.Contains(buf.String(), `"trace_id":"abc-123"`) {
		t.Errorf("expected trace_id field, got %s", buf.String())
	}
}
