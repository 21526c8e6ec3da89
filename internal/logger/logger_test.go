package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Expected a JSON log line, got %q: %v", buf.String(), err)
	}
	return entry
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q): expected %v, got %v", in, want, got)
		}
	}
	if ValidLevel("verbose") {
		t.Error("Expected verbose to be rejected")
	}
	if !ValidLevel("Warn") {
		t.Error("Expected Warn to be accepted")
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "info")

	log.QueryCompleted("dump", "all", 3, 2, true)
	if buf.Len() != 0 {
		t.Errorf("Expected debug output to be filtered, got %q", buf.String())
	}

	log.KernelError(101, "Network is unreachable")
	entry := decodeLine(t, &buf)
	if entry["level"] != "WARN" {
		t.Errorf("Expected WARN, got %v", entry["level"])
	}
	if entry["errno"] != float64(101) {
		t.Errorf("Expected errno 101, got %v", entry["errno"])
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "info").WithComponent("monitor")

	log.MonitorStart(0x442)
	entry := decodeLine(t, &buf)
	if entry["component"] != "monitor" {
		t.Errorf("Expected component monitor, got %v", entry["component"])
	}
	if entry["groups"] != "0x442" {
		t.Errorf("Expected groups 0x442, got %v", entry["groups"])
	}
}
