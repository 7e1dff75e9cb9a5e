package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger("warn", &buf)
	if err != nil {
		t.Fatalf("newLogger failed: %v", err)
	}

	logger.Info("hidden")
	logger.Warn("shown", "id", "e1")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record written at warn level: %q", out)
	}
	if !strings.Contains(out, "msg=shown") || !strings.Contains(out, "id=e1") {
		t.Errorf("output = %q, want warn record with id", out)
	}
}

func TestNewLogger_BadLevel(t *testing.T) {
	if _, err := newLogger("loud", &bytes.Buffer{}); err == nil {
		t.Error("expected error for unknown level")
	}
}
