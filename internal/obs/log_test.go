package obs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSetLoggerRestore(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	restore := SetLogger(zap.New(core))

	LogRequest(zap.String("request_id", "req-1"), zap.Int("status", 200))
	restore()
	LogRequest(zap.String("request_id", "req-2"))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry on the observed logger, got %d", len(entries))
	}
	if entries[0].Message != "request_complete" {
		t.Fatalf("unexpected message %q", entries[0].Message)
	}
	if entries[0].ContextMap()["request_id"] != "req-1" {
		t.Fatalf("unexpected fields: %v", entries[0].ContextMap())
	}
}

func TestNewLoggerWritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api.log")
	l, err := NewLogger(LogConfig{Level: "debug", File: path, MaxSizeMB: 1})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	l.Debug("hello", zap.String("k", "v"))
	_ = l.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) || !strings.Contains(string(data), `"k":"v"`) {
		t.Fatalf("unexpected log file content: %s", data)
	}
}

func TestNewLoggerDefaultsToInfo(t *testing.T) {
	l, err := NewLogger(LogConfig{Level: "bogus"})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if l.Core().Enabled(zap.DebugLevel) {
		t.Fatalf("expected debug disabled by default")
	}
	if !l.Core().Enabled(zap.InfoLevel) {
		t.Fatalf("expected info enabled")
	}
}
