package logging

import (
	"bytes"
	"log"
	"os"
	"strings"
	"testing"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	log.SetOutput(&buf)
	logLevelMutex.RLock()
	previous := LogLevel
	logLevelMutex.RUnlock()
	t.Cleanup(func() {
		log.SetOutput(os.Stderr)
		SetLogLevel(previous)
	})
	return &buf
}

func TestLevels(t *testing.T) {
	buf := captureLog(t)
	SetLogLevel(Warning)

	Debugf("debug %d", 1)
	Infof("info %d", 2)
	Warningf("warn %d", 3)
	Errorf("error %d", 4)

	out := buf.String()
	if strings.Contains(out, "debug 1") || strings.Contains(out, "info 2") {
		t.Errorf("messages below the level were printed: %q", out)
	}
	if !strings.Contains(out, "[WARN] warn 3") || !strings.Contains(out, "[ERROR] error 4") {
		t.Errorf("expected warning and error output, got %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	for name, want := range map[string]int{"debug": Debug, " INFO ": Info, "warn": Warning, "Critical": Critical} {
		got, ok := ParseLevel(name)
		if !ok || got != want {
			t.Errorf("ParseLevel(%q) = %d, %v; want %d", name, got, ok, want)
		}
	}
	if _, ok := ParseLevel("verbose"); ok {
		t.Error("expected unknown level to be rejected")
	}
}
