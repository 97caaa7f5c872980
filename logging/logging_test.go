package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestLoggerText(t *testing.T) {
	var buf bytes.Buffer
	logger := Logger(&buf, false, slog.LevelInfo)
	logger.Debug("hidden")
	logger.Info("Association accepted", "calling_ae", "MODALITY")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug record written at info level: %q", out)
	}
	if !strings.Contains(out, "calling_ae=MODALITY") {
		t.Errorf("output %q lacks the attribute", out)
	}
}

func TestLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	Logger(&buf, true, slog.LevelDebug).Debug("PDV received", "size", 42)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if record["msg"] != "PDV received" || record["size"] != float64(42) {
		t.Errorf("record = %v", record)
	}
	if _, ok := record["source"]; !ok {
		t.Error("debug level should add the source location")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name   string
		want   slog.Level
		wantOK bool
	}{
		{"debug", slog.LevelDebug, true},
		{"WARN", slog.LevelWarn, true},
		{"Error", slog.LevelError, true},
		{"chatty", slog.LevelInfo, false},
	}
	for _, tt := range tests {
		got, ok := ParseLevel(tt.name)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v, %v", tt.name, got, ok, tt.want, tt.wantOK)
		}
	}
}
