package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSetOutputLevels(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, false)
	defer Close()

	Info("cycle %d started", 1)
	Debug("hidden %s", "detail")
	Warn("retry %d", 2)
	Error("capture failed: %v", "boom")

	out := buf.String()
	for _, want := range []string{"[INFO] cycle 1 started", "[WARN] retry 2", "[ERROR] capture failed: boom"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in %q", want, out)
		}
	}
	if strings.Contains(out, "hidden") {
		t.Errorf("debug line written while not verbose: %q", out)
	}
}

func TestDebugWhenVerbose(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, true)
	defer Close()

	Debug("tree has %d nodes", 42)
	if !strings.Contains(buf.String(), "[DEBUG] tree has 42 nodes") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestInitCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "runner.log")
	if err := Init(path, false); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	Info("hello")
	Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "[INFO] hello") {
		t.Errorf("unexpected file content %q", data)
	}
}

func TestLogBeforeInitIsNoop(t *testing.T) {
	Close()
	Info("dropped")
	if GetWriter() == nil {
		t.Error("GetWriter should never return nil")
	}
}
