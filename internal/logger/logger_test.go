package logger

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerboseToggle(t *testing.T) {
	defer SetVerbose(false)

	SetVerbose(true)
	assert.True(t, IsVerbose())

	SetVerbose(false)
	assert.False(t, IsVerbose())
}

func TestDebugSuppressedWhenQuiet(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)
	SetVerbose(false)

	Debug("should not appear: %d", 42)
	assert.Empty(t, buf.String())
}

func TestDebugEmittedWhenVerbose(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer func() {
		SetVerbose(false)
		SetOutput(os.Stderr)
	}()
	SetVerbose(true)

	Debug("hello %s", "world")
	assert.Contains(t, buf.String(), "[DEBUG] hello world")
}

func TestSectionAndLevels(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer func() {
		SetVerbose(false)
		SetOutput(os.Stderr)
	}()
	SetVerbose(true)

	Section("Sync")
	Info("synced %d pages", 3)
	Warn("branch %s partial", "b1")

	out := buf.String()
	assert.Contains(t, out, "=== Sync ===")
	assert.Contains(t, out, "[INFO] synced 3 pages")
	assert.Contains(t, out, "[WARN] branch b1 partial")
}
