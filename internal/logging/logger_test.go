package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestLevel(t *testing.T) {
	tests := []struct {
		env  string
		want log.Level
	}{
		{"", log.InfoLevel},
		{"debug", log.DebugLevel},
		{"warn", log.WarnLevel},
		{"error", log.ErrorLevel},
		{"loud", log.InfoLevel},
	}
	for _, tt := range tests {
		t.Setenv("STATICFLOW_LOG_LEVEL", tt.env)
		if got := Level(); got != tt.want {
			t.Errorf("Level() with %q = %v, want %v", tt.env, got, tt.want)
		}
	}
}

func TestNewLoggerWithWriter(t *testing.T) {
	t.Setenv("STATICFLOW_LOG_LEVEL", "warn")
	t.Setenv("STATICFLOW_LOG_PREFIX", "test")

	var buf bytes.Buffer
	lg := NewLoggerWithWriter(&buf)
	lg.Info("hidden")
	lg.Warn("shown", "addr", "0x1000")
	if err := lg.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message logged at warn level: %q", out)
	}
	if !strings.Contains(out, "test") || !strings.Contains(out, "shown") || !strings.Contains(out, "addr=0x1000") {
		t.Errorf("output = %q", out)
	}
	if IsDebug() {
		t.Error("IsDebug() at warn level")
	}
}
