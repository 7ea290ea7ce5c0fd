package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		level     LogLevel
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"trace shows all", LogLevelTrace, true, true, true},
		{"debug shows debug", LogLevelDebug, true, true, true},
		{"info hides debug", LogLevelInfo, false, true, true},
		{"warn hides info", LogLevelWarn, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			log := NewSlogLogger(&buf, tt.level, time.UTC)

			log.Debug("debug message")
			log.Info("info message")
			log.Warn("warn message")
			log.Error("error message")

			out := buf.String()
			assert.Equal(t, tt.wantDebug, strings.Contains(out, "debug message"))
			assert.Equal(t, tt.wantInfo, strings.Contains(out, "info message"))
			assert.Equal(t, tt.wantWarn, strings.Contains(out, "warn message"))
			assert.Contains(t, out, "error message")
		})
	}
}

func TestTextFormatting(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewSlogLogger(&buf, LogLevelDebug, time.UTC).Module("pipeline").Module("pitch")

	log.Info("frame analysed",
		String("state", "running"),
		Float64("frequency", 199.98765),
		Int("frame_samples", 1764),
		Duration("elapsed", 1500*time.Microsecond),
		Error(errors.New("no voice")))

	line := buf.String()
	assert.True(t, strings.HasPrefix(line, "INFO  frame analysed"), line)
	assert.Contains(t, line, "module=pipeline.pitch")
	assert.Contains(t, line, "frequency=199.988")
	assert.Contains(t, line, "frame_samples=1764")
	assert.Contains(t, line, "elapsed=1.5ms")
	assert.Contains(t, line, `error="no voice"`)
}

func TestWithFieldsAreImmutable(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := NewSlogLogger(&buf, LogLevelInfo, time.UTC).Module("datastore")
	child := base.With(String("session", "abc"))

	base.Info("parent")
	child.Info("child")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.NotContains(t, lines[0], "session=abc")
	assert.Contains(t, lines[1], "session=abc")
}

func TestWithContextTraceID(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewSlogLogger(&buf, LogLevelInfo, time.UTC)

	log.WithContext(WithTraceID(context.Background(), "req-42")).Info("handled")
	log.WithContext(context.Background()).Info("plain")

	out := buf.String()
	assert.Contains(t, out, "trace_id=req-42")
	assert.Equal(t, 1, strings.Count(out, "trace_id"))
}

func TestModuleLevelsResolveByPrefix(t *testing.T) {
	t.Parallel()

	cl, err := NewCentralLogger(&LoggingConfig{
		DefaultLevel: "warn",
		Console:      &ConsoleOutput{Enabled: false},
		FileOutput:   &FileOutput{Enabled: false},
		ModuleLevels: map[string]string{
			"pipeline":          "debug",
			"pipeline.formants": "error",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, slog.LevelDebug, cl.levelFor("pipeline.pitch"))
	assert.Equal(t, slog.LevelError, cl.levelFor("pipeline.formants"))
	assert.Equal(t, slog.LevelWarn, cl.levelFor("datastore"))

	sub, ok := cl.Module("pipeline").Module("formants").(*moduleLogger)
	require.True(t, ok)
	assert.Equal(t, slog.LevelError, sub.level)
}

func TestFileOutputIsJSON(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "test.log")
	cl, err := NewCentralLogger(&LoggingConfig{
		DefaultLevel: "info",
		Timezone:     "UTC",
		Console:      &ConsoleOutput{Enabled: false},
		FileOutput:   &FileOutput{Enabled: true, Path: path, Level: "info"},
	})
	require.NoError(t, err)

	cl.Module("analysis").Info("session started", String("session_id", "s1"))
	require.NoError(t, cl.Flush())
	require.NoError(t, cl.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &entry))
	assert.Equal(t, "session started", entry["msg"])
	assert.Equal(t, "analysis", entry["module"])
	assert.Equal(t, "s1", entry["session_id"])
}

func TestInvalidTimezone(t *testing.T) {
	t.Parallel()

	_, err := NewCentralLogger(&LoggingConfig{Timezone: "Mars/Olympus"})
	require.Error(t, err)
}

func TestMultiWriterHandlerFansOut(t *testing.T) {
	t.Parallel()

	var a, b bytes.Buffer
	h := newMultiWriterHandler(newTextHandler(&a, slog.LevelInfo), newTextHandler(&b, slog.LevelError))
	log := slog.New(h)

	log.Info("only a")
	log.Error("both")

	assert.Contains(t, a.String(), "only a")
	assert.Contains(t, a.String(), "both")
	assert.NotContains(t, b.String(), "only a")
	assert.Contains(t, b.String(), "both")
}
