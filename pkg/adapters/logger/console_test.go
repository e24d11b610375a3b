package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/user/screenstream/pkg/ports"
)

func TestConsoleLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriterConsole(ports.LevelWarn, &buf)

	log.Debug("debug %d", 1)
	log.Info("info %d", 2)
	log.Warn("warn %d", 3)
	log.Error("error %d", 4)

	got := buf.String()
	if strings.Contains(got, "debug 1") || strings.Contains(got, "info 2") {
		t.Errorf("messages below the level were written: %q", got)
	}
	if !strings.Contains(got, "warn 3\n") || !strings.Contains(got, "error 4\n") {
		t.Errorf("expected warn and error lines, got %q", got)
	}
}

func TestConsoleLogger_Quiet(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriterConsole(ports.LevelQuiet, &buf)
	log.Error("boom")
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestConsoleLogger_WithComponent(t *testing.T) {
	var buf bytes.Buffer
	root := NewWriterConsole(ports.LevelDebug, &buf)
	root.WithComponent("capture").Info("component message %d", 3)
	root.Info("plain")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", buf.String())
	}
	if lines[0] != "[capture] component message 3" {
		t.Errorf("unexpected component line %q", lines[0])
	}
	if lines[1] != "plain" {
		t.Errorf("component leaked into parent logger: %q", lines[1])
	}
}
