package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPrintfAppendsTimestampedLines(t *testing.T) {
	dir := t.TempDir()
	l, err := New(dir)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	l.Printf("run %s seed %d\n", "toy", 3)
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "logs", "acta.log"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	line := strings.TrimSpace(string(data))
	if !strings.HasPrefix(line, "[") || !strings.HasSuffix(line, "] run toy seed 3") {
		t.Fatalf("unexpected line %q", line)
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	l.Printf("ignored")
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
}
