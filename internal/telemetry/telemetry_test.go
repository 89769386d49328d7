package telemetry

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"info+2", slog.LevelInfo + 2},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Level: "warn", Service: "conduit", Output: &buf})

	logger.Info("skipped")
	WithTxn(WithFlowID(logger, "orders"), "t-1", "r-1").Warn("stage failed")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one record, got %q", buf.String())
	}

	var rec map[string]any
	if err := sonic.UnmarshalString(lines[0], &rec); err != nil {
		t.Fatalf("expected JSON record: %v", err)
	}
	for k, want := range map[string]string{
		"msg":           "stage failed",
		"service":       "conduit",
		"flow_id":       "orders",
		"txn_id":        "t-1",
		"remote_txn_id": "r-1",
	} {
		if rec[k] != want {
			t.Errorf("%s = %v, want %q", k, rec[k], want)
		}
	}
}

func TestNewLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(LoggerConfig{Format: "TEXT", Output: &buf}).Info("hello", "stage_id", "fetch")

	if !strings.Contains(buf.String(), "msg=hello") || !strings.Contains(buf.String(), "stage_id=fetch") {
		t.Errorf("unexpected text record %q", buf.String())
	}
}

func TestLoggerContext(t *testing.T) {
	fallback := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	ctx := context.Background()

	if FromContextOr(ctx, fallback) != fallback {
		t.Error("expected fallback without logger in context")
	}

	reqLogger := fallback.With("txn_id", "t-1")
	ctx = WithLogger(ctx, reqLogger)
	if FromContextOr(ctx, fallback) != reqLogger || FromContext(ctx) != reqLogger {
		t.Error("expected request logger from context")
	}
}
