package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestNewFanoutHandlerSingleHandler(t *testing.T) {
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, nil)

	if h := newFanoutHandler(nil, inner); h != inner {
		t.Fatalf("expected single handler to be returned unwrapped, got %T", h)
	}
}

func TestFanoutHandlerRespectsEachLevel(t *testing.T) {
	var info, debug bytes.Buffer
	h := newFanoutHandler(
		slog.NewTextHandler(&info, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewTextHandler(&debug, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)
	logger := slog.New(h).With(slog.String(FieldComponent, "ledger"))

	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected fanout enabled when any handler accepts debug")
	}
	logger.Debug("detail")
	logger.Info("summary")

	if strings.Contains(info.String(), "detail") || !strings.Contains(info.String(), "summary") {
		t.Fatalf("unexpected info output: %q", info.String())
	}
	if !strings.Contains(debug.String(), "detail") || !strings.Contains(debug.String(), "component=ledger") {
		t.Fatalf("unexpected debug output: %q", debug.String())
	}
}
