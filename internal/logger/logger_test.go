package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reset() {
	SetVerbose(false)
	SetOutput(os.Stderr)
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	return entry
}

func TestSetVerbose(t *testing.T) {
	defer reset()

	SetVerbose(false)
	assert.False(t, IsVerbose())

	SetVerbose(true)
	assert.True(t, IsVerbose())

	SetVerbose(false)
	assert.False(t, IsVerbose())
}

func TestDebug_WhenVerbose(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(true)

	Debug("test message %s", "arg")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "test message arg", entry["message"])
	assert.Equal(t, "gspace", entry["service"])
}

func TestDebug_WhenNotVerbose(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(false)

	Debug("test message")
	Info("info message")

	assert.Zero(t, buf.Len())
}

func TestWarn_AlwaysWritten(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)

	Warn("attachment %s not found", "a.txt")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "attachment a.txt not found", entry["message"])
}

func TestWithComponent(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)

	l := WithComponent("gspace.client")
	l.Error().Msg("boom")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "gspace.client", entry["component"])
	assert.Equal(t, "boom", entry["message"])
}

func TestSection(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(true)

	Section("Auth")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "Auth", entry["section"])
}

func TestWithComponent_FollowsLaterSettings(t *testing.T) {
	defer reset()

	l := WithComponent("gspace.drive")

	var buf bytes.Buffer
	SetOutput(&buf)
	l.Debug().Msg("hidden")
	assert.Zero(t, buf.Len())

	SetVerbose(true)
	l.Debug().Msg("listing files")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "gspace.drive", entry["component"])
	assert.Equal(t, "listing files", entry["message"])

	buf.Reset()
	SetVerbose(false)
	l.Info().Msg("quiet again")
	assert.Zero(t, buf.Len())
}

func TestLogLevelFromEnvironment(t *testing.T) {
	t.Cleanup(reset)
	t.Setenv("GSPACE_LOG_LEVEL", "info")

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(false)

	Debug("dropped")
	assert.Zero(t, buf.Len())
	Info("kept")
	assert.Equal(t, "kept", decodeLine(t, &buf)["message"])
}
