package runlog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogger_Stage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "run.log")
	l, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Stage(2, "HEALTH_CHECKING", "build failed: %s", "exit 1")
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "[iter 2][HEALTH_CHECKING] build failed: exit 1") {
		t.Fatalf("log missing stage line:\n%s", data)
	}
}

func TestLogger_Nop(t *testing.T) {
	var nilLogger *Logger
	nilLogger.Log("ignored")
	if err := nilLogger.Close(); err != nil {
		t.Fatal(err)
	}

	l := Nop()
	l.Stage(1, "INIT", "ignored")
	if l.Path() != "" {
		t.Fatal("nop logger should have no path")
	}
}

func TestLogf_PackageLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	l, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	SetDefault(l)
	defer SetDefault(nil)

	Logf("hello %d", 42)
	l.Close()

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "hello 42") {
		t.Fatalf("package logger did not write: %s", data)
	}
}
