package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in     string
		wantOK bool
	}{
		{"debug", true},
		{"info", true},
		{"warn", true},
		{"error", true},
		{"verbose", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := parseLevel(tt.in)
			if (got != nil) != tt.wantOK {
				t.Errorf("parseLevel(%q) = %v, want ok=%v", tt.in, got, tt.wantOK)
			}
		})
	}
}

func TestNewWritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "marksync.log")

	log := New(Options{Level: "info", File: path})
	log.With(String("component", "test")).Info("hello file", Int("n", 1), Bool("ok", true))
	log.Debug("filtered out")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, `"msg":"hello file"`) {
		t.Errorf("log file missing message: %s", content)
	}
	if !strings.Contains(content, `"component":"test"`) {
		t.Errorf("log file missing With() field: %s", content)
	}
	if strings.Contains(content, "filtered out") {
		t.Errorf("debug line should be filtered at info level: %s", content)
	}
}

func TestNewNop(t *testing.T) {
	log := NewNop()
	log.Info("discarded")
	log.With(String("k", "v")).Warnf("discarded %d", 1)
	if err := log.Sync(); err != nil {
		t.Errorf("Sync() error = %v", err)
	}
}
