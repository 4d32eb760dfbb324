package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInit(t *testing.T) {
	configDir := filepath.Join(t.TempDir(), "config")

	if err := Init(Config{ConfigDir: configDir}); err != nil {
		t.Fatalf("Failed to initialize logger: %v", err)
	}

	logDir := filepath.Join(configDir, "logs")
	if _, err := os.Stat(logDir); os.IsNotExist(err) {
		t.Errorf("Log directory was not created: %s", logDir)
	}
	if Logger == nil {
		t.Fatal("Logger is nil after initialization")
	}

	Debug("Test debug message")
	Info("Test info message")
	Warn("Test warning message")
	Error("Test error message")
}

func TestLogFile(t *testing.T) {
	got := LogFile("/tmp/cfg")
	want := filepath.Join("/tmp/cfg", "logs", "streaktoot.log")
	if got != want {
		t.Errorf("LogFile() = %q, want %q", got, want)
	}
}

func TestInitDebugModeWritesToStderr(t *testing.T) {
	var buf bytes.Buffer
	err := Init(Config{
		Debug:     true,
		ConfigDir: t.TempDir(),
		Stderr:    &buf,
	})
	if err != nil {
		t.Fatalf("Failed to initialize logger in debug mode: %v", err)
	}

	Debug("hello from debug", "habit", "reading")

	out := buf.String()
	if !strings.Contains(out, "hello from debug") {
		t.Errorf("expected debug record on stderr, got %q", out)
	}
	if !strings.Contains(out, "streaktoot") {
		t.Errorf("expected prefix in output, got %q", out)
	}
}

func TestInitLevelOverride(t *testing.T) {
	var buf bytes.Buffer
	err := Init(Config{
		Debug:     true,
		Level:     "error",
		ConfigDir: t.TempDir(),
		Stderr:    &buf,
	})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	Warn("should be filtered")
	if buf.Len() != 0 {
		t.Errorf("warn record should be filtered at error level, got %q", buf.String())
	}
}

func TestInitInvalidLevel(t *testing.T) {
	if err := Init(Config{Level: "loud", ConfigDir: t.TempDir()}); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestLogFunctionsWithoutInit(t *testing.T) {
	Logger = nil

	// These should not panic when Logger is nil
	Debug("Test debug message")
	Info("Test info message")
	Warn("Test warning message")
	Error("Test error message")
	if With("k", "v") != nil {
		t.Error("With() should return nil before Init")
	}
}
