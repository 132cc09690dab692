package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fxarchive/pkg/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bufferLogger(buf *bytes.Buffer) *zerologLogger {
	zlog := zerolog.New(buf).Level(zerolog.DebugLevel)
	return &zerologLogger{logger: &zlog, fields: make(map[string]interface{})}
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &m))
	return m
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{"info level", &config.LoggingConfig{Level: "info"}, false},
		{"debug level", &config.LoggingConfig{Level: "debug"}, false},
		{"empty level defaults to info", &config.LoggingConfig{}, false},
		{"invalid level", &config.LoggingConfig{Level: "invalid"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}
}

func TestNewWithRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "fxarchive.log")

	var console bytes.Buffer
	l, err := newWithConsole(&config.LoggingConfig{
		Level:      "debug",
		File:       path,
		MaxSize:    1,
		MaxBackups: 1,
	}, &console)
	require.NoError(t, err)

	l.WithField("media_key", "abc").Info("hello file")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"hello file"`)
	assert.Contains(t, string(data), `"app":"fxarchive"`)
	assert.Contains(t, string(data), `"media_key":"abc"`)
	assert.Contains(t, console.String(), "hello file")
}

func TestLevelFiltering(t *testing.T) {
	var console bytes.Buffer
	l, err := newWithConsole(&config.LoggingConfig{Level: "warn"}, &console)
	require.NoError(t, err)

	l.Info("quiet")
	l.Warn("loud")

	assert.NotContains(t, console.String(), "quiet")
	assert.Contains(t, console.String(), "loud")
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":    zerolog.DebugLevel,
		"INFO":     zerolog.InfoLevel,
		"warning":  zerolog.WarnLevel,
		"error":    zerolog.ErrorLevel,
		"disabled": zerolog.Disabled,
	}
	for in, want := range tests {
		got, err := parseLogLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := parseLogLevel("chatty")
	assert.Error(t, err)
}

func TestWithFieldsDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := bufferLogger(&buf)

	child := parent.WithField("component", "crawler")
	child.WithFields(map[string]interface{}{"page": 2}).Info("child")
	line := decodeLine(t, &buf)
	assert.Equal(t, "crawler", line["component"])
	assert.Equal(t, float64(2), line["page"])

	buf.Reset()
	parent.Info("parent")
	line = decodeLine(t, &buf)
	assert.NotContains(t, line, "component")
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	l := bufferLogger(&buf)

	l.WithError(errors.New("boom")).Error("failed")
	line := decodeLine(t, &buf)
	assert.Equal(t, "boom", line["error"])

	assert.Same(t, l, l.WithError(nil))
}

func TestFieldTypes(t *testing.T) {
	var buf bytes.Buffer
	l := bufferLogger(&buf)

	l.InfoWithFields("typed", map[string]interface{}{
		"s":   "x",
		"i":   3,
		"b":   true,
		"f":   1.5,
		"d":   2 * time.Second,
		"ss":  []string{"a", "b"},
		"err": errors.New("bad"),
	})

	line := decodeLine(t, &buf)
	assert.Equal(t, "x", line["s"])
	assert.Equal(t, float64(3), line["i"])
	assert.Equal(t, true, line["b"])
	assert.Equal(t, 1.5, line["f"])
	assert.Equal(t, "bad", line["err"])
	assert.Len(t, line["ss"], 2)
}

func TestLogDownload(t *testing.T) {
	tl := NewTestLogger()

	LogDownload(tl, "k1", "2024-05-01", true, nil)
	LogDownload(tl, "k2", "", false, errors.New("timeout"))
	LogDownload(tl, "k3", "", false, nil)

	msgs := tl.GetMessages()
	require.Len(t, msgs, 3)

	assert.Equal(t, "DEBUG", msgs[0].Level)
	assert.Equal(t, "2024-05-01", msgs[0].Fields["date"])

	assert.Equal(t, "ERROR", msgs[1].Level)
	assert.Equal(t, "Download failed", msgs[1].Message)
	assert.EqualError(t, msgs[1].Error, "timeout")
	assert.NotContains(t, msgs[1].Fields, "date")

	assert.Equal(t, "Download skipped", msgs[2].Message)
}

func TestLogMilestone(t *testing.T) {
	tl := NewTestLogger()
	LogMilestone(tl, 10, 40)

	msgs := tl.GetMessagesByLevel("INFO")
	require.Len(t, msgs, 1)
	assert.Equal(t, "Download milestone reached", msgs[0].Message)
	assert.Equal(t, "25.0%", msgs[0].Fields["percentage"])
}

func TestComponentHelpers(t *testing.T) {
	tl := NewTestLogger()

	LogComponentStart(tl, "dispatcher", map[string]interface{}{"concurrency": 4})
	LogMetrics(tl, "dispatch", map[string]interface{}{"succeeded": 3})
	LogComponentStop(tl, "dispatcher", "done")
	LogRetry(tl, "http://x", 2, time.Second, "status_503")
	LogRequest(tl, "GET", "http://x", 503, time.Millisecond)

	msgs := tl.GetMessages()
	require.Len(t, msgs, 5)
	assert.Equal(t, 4, msgs[0].Fields["concurrency"])
	assert.Equal(t, "dispatcher", msgs[0].Fields["component"])
	assert.Equal(t, "metrics", msgs[1].Fields["type"])
	assert.Equal(t, "done", msgs[2].Fields["reason"])
	assert.Equal(t, "WARN", msgs[3].Level)
	assert.Equal(t, "HTTP request server error", msgs[4].Message)
}

func TestTestLoggerSharesSink(t *testing.T) {
	tl := NewTestLogger()
	child := tl.WithField("a", 1).WithError(errors.New("e"))
	child.Warn("from child")

	assert.True(t, tl.HasMessage("from child"))
	assert.True(t, tl.HasMessageContaining("child"))
	assert.Equal(t, 1, tl.CountMessages("from child"))
	assert.True(t, strings.Contains(tl.String(), "a=1 error=e"))

	tl.Clear()
	assert.Empty(t, tl.GetMessages())
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.WithField("k", "v").WithError(errors.New("x")).Error("ignored")
	assert.NotNil(t, l.GetZerolog())
}

func TestGlobalLogger(t *testing.T) {
	require.NoError(t, Initialize(&config.LoggingConfig{Level: "error"}))
	assert.NotNil(t, GetLogger())
	WithField("k", "v").Info("filtered")
}
