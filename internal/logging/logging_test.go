package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

func TestHandlerFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, slog.LevelInfo))

	logger.With("stop", "A").WithGroup("search").Info("journeys found", "round", 2, "note", "two words")

	line := buf.String()
	require.True(t, strings.HasSuffix(line, "\n"))
	fields := strings.SplitN(strings.TrimSuffix(line, "\n"), " ", 3)
	require.Len(t, fields, 3)
	assert.Len(t, fields[0], len("2006/01/02"))
	assert.Equal(t, "INFO journeys found stop=A search.round=2 search.note=\"two words\"", fields[2])
}

func TestHandlerLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, slog.LevelWarn))
	logger.Info("hidden")
	logger.Debug("hidden")
	assert.Empty(t, buf.String())
	logger.Error("shown")
	assert.Contains(t, buf.String(), "ERROR shown")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel("chatty"))
}

func TestSetup(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	Setup("debug", &buf)
	slog.Debug("timetable loaded", "stops", 3)
	assert.Contains(t, buf.String(), "DEBUG timetable loaded stops=3")
}
