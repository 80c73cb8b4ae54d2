package log

import (
	"bytes"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"", "info", false},
		{"debug", "debug", false},
		{"warn", "warn", false},
		{"loud", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			lvl, err := ParseLevel(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseLevel(%q) error = %v", tt.input, err)
			}
			if lvl.String() != tt.want {
				t.Errorf("ParseLevel(%q) = %s, want %s", tt.input, lvl.String(), tt.want)
			}
		})
	}
}

func TestNewLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(zap.NewAtomicLevelAt(zap.WarnLevel), &buf)

	logger.Info("hidden")
	logger.Warn("visible", zap.String("job", "EnhanceJob_a.jpg"))
	_ = logger.Sync()

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message should be filtered, got %q", out)
	}
	if !strings.Contains(out, "visible") || !strings.Contains(out, "EnhanceJob_a.jpg") {
		t.Errorf("warn message missing, got %q", out)
	}
}
