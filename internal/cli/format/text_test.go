package format

import (
	"bytes"
	"strings"
	"testing"

	"github.com/quietfjord/chromewire/internal/ipc"
)

func TestConsole_NoColor(t *testing.T) {
	entries := []ipc.ConsoleEntry{
		{Type: "error", Text: "boom", Timestamp: 1000, URL: "https://example.com/app.js", Line: 42},
		{Type: "log", Text: "hello"},
	}

	var buf bytes.Buffer
	if err := Console(&buf, entries, OutputOptions{UseColor: false}); err != nil {
		t.Fatalf("Console() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "ERROR boom") {
		t.Errorf("expected ERROR boom in output, got: %s", out)
	}
	if !strings.Contains(out, "app.js:42") {
		t.Errorf("expected source location in output, got: %s", out)
	}
	if !strings.Contains(out, "LOG hello") {
		t.Errorf("expected LOG hello in output, got: %s", out)
	}
}

func TestNetwork_NoColor(t *testing.T) {
	entries := []ipc.NetworkEntry{
		{Method: "GET", URL: "https://example.com/", Status: 200, Duration: 0.123},
		{Method: "POST", URL: "https://example.com/api", Failed: true, Error: "net::ERR_FAILED"},
	}

	var buf bytes.Buffer
	if err := Network(&buf, entries, OutputOptions{UseColor: false}); err != nil {
		t.Fatalf("Network() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "GET https://example.com/ 200 123ms") {
		t.Errorf("expected formatted GET line, got: %s", out)
	}
	if !strings.Contains(out, "POST https://example.com/api ERR 0ms") {
		t.Errorf("expected formatted failed POST line, got: %s", out)
	}
	if !strings.Contains(out, "net::ERR_FAILED") {
		t.Errorf("expected error message in output, got: %s", out)
	}
}

func TestDefaultOptions(t *testing.T) {
	// Just exercise the code path; TTY detection result depends on the
	// test runner's stdout and isn't asserted.
	_ = DefaultOptions()
}

func TestNewOutputOptions_JSONDisablesColor(t *testing.T) {
	opts := NewOutputOptions(true, false)
	if opts.UseColor {
		t.Error("expected UseColor=false when jsonOutput=true")
	}
}

func TestNewOutputOptions_NoColorFlag(t *testing.T) {
	opts := NewOutputOptions(false, true)
	if opts.UseColor {
		t.Error("expected UseColor=false when noColorFlag=true")
	}
}
