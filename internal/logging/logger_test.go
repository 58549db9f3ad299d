package logging

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerWritesToBuffer(t *testing.T) {
	buffer := NewLogBuffer(10)
	logger := NewLoggerWithOutput(buffer, LevelInfo, nil)

	logger.Info("asset loaded", map[string]string{"asset_id": "triangle-vert"})

	entries := buffer.List()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Level != LevelInfo {
		t.Fatalf("expected info level, got %q", entry.Level)
	}
	if entry.Message != "asset loaded" {
		t.Fatalf("expected message asset loaded, got %q", entry.Message)
	}
	if entry.Context["asset_id"] != "triangle-vert" {
		t.Fatalf("expected context asset_id=triangle-vert, got %v", entry.Context)
	}
}

func TestLoggerFiltersByLevel(t *testing.T) {
	buffer := NewLogBuffer(10)
	logger := NewLoggerWithOutput(buffer, LevelWarning, nil)

	logger.Info("info", nil)
	logger.Warn("warn", nil)

	entries := buffer.List()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Level != LevelWarning {
		t.Fatalf("expected warning level, got %q", entries[0].Level)
	}
}

func TestLoggerWritesConsoleLine(t *testing.T) {
	var out bytes.Buffer
	logger := NewLoggerWithOutput(nil, LevelDebug, &out)

	logger.Debug("watch added", map[string]string{"path": "/tmp/a.vert"})

	line := out.String()
	if !strings.Contains(line, "watch added") {
		t.Fatalf("expected message in output, got %q", line)
	}
	if !strings.Contains(line, "/tmp/a.vert") {
		t.Fatalf("expected field in output, got %q", line)
	}
}

func TestLoggerWithForwardsFieldsToZap(t *testing.T) {
	core, observed := observer.New(zapcore.DebugLevel)
	logger := NewLoggerWithZap(nil, LevelDebug, zap.New(core)).With(map[string]string{
		"mulay.category": "asset",
	})

	logger.Error("reload failed", map[string]string{"asset_id": "frag"})

	entries := observed.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 zap entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["mulay.category"] != "asset" {
		t.Fatalf("expected base field, got %v", fields)
	}
	if fields["asset_id"] != "frag" {
		t.Fatalf("expected call field, got %v", fields)
	}
	if entries[0].Level != zapcore.ErrorLevel {
		t.Fatalf("expected error level, got %v", entries[0].Level)
	}
}

func TestLoggerSubscribeReceivesEntries(t *testing.T) {
	logger := Discard()
	output, cancel := logger.Subscribe()
	defer cancel()

	logger.Info("message", nil)

	select {
	case entry := <-output:
		if entry.Message != "message" {
			t.Fatalf("expected message, got %q", entry.Message)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for entry")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		" INFO ":  LevelInfo,
		"warn":    LevelWarning,
		"warning": LevelWarning,
		"error":   LevelError,
	}
	for raw, want := range cases {
		got, ok := ParseLevel(raw)
		if !ok || got != want {
			t.Fatalf("ParseLevel(%q) = %q, %v", raw, got, ok)
		}
	}
	if _, ok := ParseLevel("loud"); ok {
		t.Fatal("expected unknown level to fail")
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var logger *Logger
	logger.Info("ignored", nil)
	if logger.Enabled(LevelError) {
		t.Fatal("nil logger should not be enabled")
	}
}
