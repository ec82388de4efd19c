package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// decodeLines parses every JSON line written to buf.
func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var out []map[string]any
	for line := range strings.SplitSeq(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry), "line: %s", line)
		out = append(out, entry)
	}
	return out
}

func TestSlogLoggerFieldsAndModule(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewSlogLogger(&buf, LogLevelDebug, time.UTC).Module("bridge").Module("poll")

	log.Info("published",
		Int("count", 3),
		Int64("watermark", 43),
		Float64("confidence", 0.876543),
		Bool("retained", false),
		Duration("elapsed", 1500*time.Millisecond),
		Error(fmt.Errorf("boom")),
	)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, "published", e["msg"])
	assert.Equal(t, "INFO", e["level"])
	assert.Equal(t, "bridge.poll", e["module"])
	assert.InDelta(t, 3, e["count"], 0)
	assert.InDelta(t, 43, e["watermark"], 0)
	assert.InDelta(t, 0.877, e["confidence"], 1e-9)
	assert.Equal(t, false, e["retained"])
	assert.Equal(t, "1.5s", e["elapsed"])
	assert.Equal(t, "boom", e["error"])
}

func TestSlogLoggerLevelFiltering(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewSlogLogger(&buf, LogLevelWarn, time.UTC)

	log.Trace("trace")
	log.Debug("debug")
	log.Info("info")
	log.Warn("warn")
	log.Error("error")
	log.Log(LogLevelInfo, "explicit info")
	log.Log(LogLevelError, "explicit error")

	var msgs []string
	for _, e := range decodeLines(t, &buf) {
		msgs = append(msgs, e["msg"].(string))
	}
	assert.Equal(t, []string{"warn", "error", "explicit error"}, msgs)
}

func TestTraceLevelRendered(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	NewSlogLogger(&buf, LogLevelTrace, time.UTC).Trace("sql")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "TRACE", entries[0]["level"])
}

func TestWithDoesNotLeakFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := NewSlogLogger(&buf, LogLevelInfo, time.UTC)
	child := base.With(String("request", "r1"))

	child.Info("child")
	base.Info("base")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "r1", entries[0]["request"])
	assert.NotContains(t, entries[1], "request")
}

func TestWithContextTraceID(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewSlogLogger(&buf, LogLevelInfo, time.UTC)

	log.WithContext(WithTraceID(context.Background(), "abc-123")).Info("traced")
	log.WithContext(context.Background()).Info("untraced")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "abc-123", entries[0]["trace_id"])
	assert.NotContains(t, entries[1], "trace_id")
}

func TestJSONTimestampUsesTimezone(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	NewSlogLogger(&buf, LogLevelInfo, time.UTC).Info("tick")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	ts, ok := entries[0]["time"].(string)
	require.True(t, ok)
	assert.True(t, strings.HasSuffix(ts, "Z"), "expected UTC timestamp, got %s", ts)
}

func TestNilModuleLoggerIsSafe(t *testing.T) {
	t.Parallel()

	var m *moduleLogger
	assert.NotPanics(t, func() {
		m.Info("ignored")
		m.Error("ignored")
		assert.Nil(t, m.Module("x"))
		assert.NoError(t, m.Flush())
	})
}

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"trace", "DEBUG-4"},
		{"debug", "DEBUG"},
		{"info", "INFO"},
		{"warn", "WARN"},
		{"error", "ERROR"},
		{"bogus", "INFO"},
		{"", "INFO"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, parseLogLevel(tt.in).String())
		})
	}
}

func TestCentralLoggerFileOutput(t *testing.T) {
	t.Parallel()

	logPath := filepath.Join(t.TempDir(), "nested", "api2ha.log")
	cl, err := NewCentralLogger(&LoggingConfig{
		DefaultLevel: "info",
		Timezone:     "UTC",
		Console:      &ConsoleOutput{Enabled: false},
		FileOutput:   &FileOutput{Enabled: true, Path: logPath, Level: "debug"},
		ModuleLevels: map[string]string{"datastore": "debug"},
	})
	require.NoError(t, err)

	cl.Module("datastore").Debug("schema classified", String("schema", "modern"))
	cl.Module("api").Debug("suppressed by default level")
	cl.Module("api").Info("listening")

	require.NoError(t, cl.Flush())
	require.NoError(t, cl.Close())
	require.NoError(t, cl.Close(), "second close is a no-op")

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)

	entries := decodeLines(t, bytes.NewBuffer(data))
	require.Len(t, entries, 2)
	assert.Equal(t, "datastore", entries[0]["module"])
	assert.Equal(t, "modern", entries[0]["schema"])
	assert.Equal(t, "listening", entries[1]["msg"])
}

func TestCentralLoggerRejectsBadInput(t *testing.T) {
	t.Parallel()

	_, err := NewCentralLogger(nil)
	require.Error(t, err)

	_, err = NewCentralLogger(&LoggingConfig{Timezone: "Mars/Olympus"})
	require.Error(t, err)
}

func TestApplyConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg := &LoggingConfig{}
	applyConfigDefaults(cfg)

	assert.Equal(t, DefaultLogLevel, cfg.DefaultLevel)
	require.NotNil(t, cfg.Console)
	assert.True(t, cfg.Console.Enabled)
	require.NotNil(t, cfg.FileOutput)
	assert.False(t, cfg.FileOutput.Enabled)
	assert.Equal(t, DefaultLogPath, cfg.FileOutput.Path)
}

func TestGormAdapterTrace(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	adapter := NewGormAdapter(NewSlogLogger(&buf, LogLevelTrace, time.UTC), 100*time.Millisecond)
	ctx := WithTraceID(context.Background(), "req-1")
	stmt := func() (string, int64) { return "SELECT 1", 1 }

	adapter.Trace(ctx, time.Now(), stmt, nil)
	adapter.Trace(ctx, time.Now().Add(-time.Second), stmt, nil)
	adapter.Trace(ctx, time.Now(), stmt, fmt.Errorf("database is locked"))
	adapter.Trace(ctx, time.Now(), stmt, gorm.ErrRecordNotFound)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 4)

	assert.Equal(t, "TRACE", entries[0]["level"])
	assert.Equal(t, "SELECT 1", entries[0]["sql"])
	assert.Equal(t, "req-1", entries[0]["trace_id"])

	assert.Equal(t, "WARN", entries[1]["level"])
	assert.Equal(t, "slow statement", entries[1]["msg"])

	assert.Equal(t, "WARN", entries[2]["level"])
	assert.Equal(t, "database is locked", entries[2]["error"])

	assert.Equal(t, "TRACE", entries[3]["level"])
}
