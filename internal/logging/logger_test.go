package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"bookforge/internal/services"
)

func TestConsoleHandlerIncludesRunAndStage(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, lvl))

	ctx := services.WithRunID(context.Background(), "book-1")
	ctx = services.WithStage(ctx, "content")
	WithContext(ctx, logger).Info("stage started", Int("chapters", 12))

	out := buf.String()
	for _, want := range []string{"book-1", "stage=content", "stage started", "chapters=12"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output %q", want, out)
		}
	}
}

func TestConsoleHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelWarn)
	logger := slog.New(newConsoleHandler(&buf, lvl))

	logger.Info("hidden")
	logger.Warn("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info record should be suppressed: %q", out)
	}
	if !strings.Contains(out, "visible") {
		t.Fatalf("warn record missing: %q", out)
	}
}

func TestJSONHandlerFieldNames(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newJSONHandler(&buf, lvl))

	logger.Error("backend failed", String("backend", "ollama"))

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("parse json record: %v", err)
	}
	if record["msg"] != "backend failed" {
		t.Fatalf("unexpected msg field: %v", record["msg"])
	}
	if record["level"] != "error" {
		t.Fatalf("unexpected level field: %v", record["level"])
	}
	if _, ok := record["ts"]; !ok {
		t.Fatal("expected ts field")
	}
	if record["backend"] != "ollama" {
		t.Fatalf("unexpected backend field: %v", record["backend"])
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewComponentLogger(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, lvl))

	NewComponentLogger(logger, "orchestrator").Info("ready")
	if !strings.Contains(buf.String(), "orchestrator") {
		t.Fatalf("expected component in output %q", buf.String())
	}

	if NewComponentLogger(nil, "x") == nil {
		t.Fatal("expected nop logger for nil input")
	}
}
