package logging_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	jsoniter "github.com/json-iterator/go"

	"lendkeeper/internal/config"
	"lendkeeper/internal/logging"
)

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("ledger ready")

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "lendkeeper.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "ledger ready") {
		t.Fatalf("expected message in log file, got %q", content)
	}
}

func TestConsoleLoggerFormatsComponentAndFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{
		Format:      "console",
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ledger := logging.NewComponentLogger(logger, "ledger")
	ledger.Info("resource borrowed",
		logging.String(logging.FieldResourceID, "B-100"),
		logging.String("note", "two words"),
	)
	ledger.Debug("suppressed")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(content)
	if !strings.Contains(line, "INFO ledger: resource borrowed") {
		t.Fatalf("expected component prefix, got %q", line)
	}
	if !strings.Contains(line, "resource_id=B-100") {
		t.Fatalf("expected resource field, got %q", line)
	}
	if !strings.Contains(line, `note="two words"`) {
		t.Fatalf("expected quoted value, got %q", line)
	}
	if strings.Contains(line, "suppressed") {
		t.Fatalf("debug line should be filtered at info level: %q", line)
	}
	if strings.Contains(line, "\x1b[") {
		t.Fatalf("file output must not carry colour codes: %q", line)
	}
}

func TestJSONLoggerIncludesContextFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	logger, err := logging.New(logging.Options{
		Format:      "json",
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := logging.WithBatchID(context.Background(), "batch-1")
	ctx = logging.WithActor(ctx, "librarian")
	logging.WithContext(ctx, logger).Info("bulk finished")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var payload map[string]any
	if err := jsoniter.Unmarshal(content, &payload); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if payload["batch_id"] != "batch-1" {
		t.Fatalf("expected batch_id field, got %v", payload)
	}
	if payload["actor"] != "librarian" {
		t.Fatalf("expected actor field, got %v", payload)
	}
	if payload["level"] != "info" {
		t.Fatalf("expected lowercase level, got %v", payload["level"])
	}
	if _, ok := payload["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", payload)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestContextHelpersIgnoreBlankValues(t *testing.T) {
	ctx := logging.WithActor(context.Background(), "   ")
	if _, ok := logging.ActorFromContext(ctx); ok {
		t.Fatal("blank actor should not be stored")
	}
	if fields := logging.ContextFields(ctx); len(fields) != 0 {
		t.Fatalf("expected no fields, got %v", fields)
	}
}

func TestConsoleColourAppliesToStreamsOnly(t *testing.T) {
	dir := t.TempDir()
	stderrPath := filepath.Join(dir, "stderr")
	fakeStderr, err := os.Create(stderrPath)
	if err != nil {
		t.Fatalf("create stderr stand-in: %v", err)
	}
	defer fakeStderr.Close()
	realStderr := os.Stderr
	os.Stderr = fakeStderr
	defer func() { os.Stderr = realStderr }()

	colour := true
	logPath := filepath.Join(dir, "lendkeeper.log")
	logger, err := logging.New(logging.Options{
		Format:      "console",
		Level:       "info",
		OutputPaths: []string{"stderr", logPath},
		Color:       &colour,
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Warn("resource overdue", logging.String(logging.FieldResourceID, "B-1"))

	console, err := os.ReadFile(stderrPath)
	if err != nil {
		t.Fatalf("read stderr stand-in: %v", err)
	}
	if !strings.Contains(string(console), "\x1b[33mWARN\x1b[0m") {
		t.Fatalf("expected coloured level on stderr, got %q", console)
	}
	file, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(file), "WARN resource overdue") || strings.Contains(string(file), "\x1b[") {
		t.Fatalf("expected plain log file line, got %q", file)
	}
}
