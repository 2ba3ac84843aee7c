package logger

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

// captureStdout runs fn with os.Stdout redirected and returns what was written.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w
	defer func() { os.Stdout = old }()

	fn()

	w.Close()
	var buf bytes.Buffer
	buf.ReadFrom(r)
	return buf.String()
}

func TestInfo_Success_Warn_Error_NoPanic(t *testing.T) {
	captureStdout(t, func() {
		Info("TAG", "message")
		Success("TAG", "message")
		Warn("TAG", "message")
		Error("TAG", "message")
	})
}

func TestBanner_NoPanic(t *testing.T) {
	captureStdout(t, func() {
		Banner("v1.0.0")
		Banner("")
	})
}

func TestSectionAndStats_NoPanic(t *testing.T) {
	captureStdout(t, func() {
		Section("Test")
		Stats("key", 42)
	})
}

func TestLine_ContainsTagAndMessage(t *testing.T) {
	prev := colorEnabled
	colorEnabled = false
	defer func() { colorEnabled = prev }()

	out := captureStdout(t, func() {
		Warn("AODP", "batch 2/5 failed")
	})
	if !strings.Contains(out, "[AODP]") || !strings.Contains(out, "batch 2/5 failed") {
		t.Errorf("Warn output = %q, want tag and message", out)
	}
	if strings.Contains(out, "\033[") {
		t.Errorf("Warn output = %q, want no color codes when disabled", out)
	}
}

func TestStats_HumanizesIntegers(t *testing.T) {
	prev := colorEnabled
	colorEnabled = false
	defer func() { colorEnabled = prev }()

	out := captureStdout(t, func() {
		Stats("rows", 1234567)
	})
	if !strings.Contains(out, "1,234,567") {
		t.Errorf("Stats output = %q, want 1,234,567", out)
	}
}
