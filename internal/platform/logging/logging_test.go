package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, b []byte) map[string]any {
	t.Helper()

	var entry map[string]any
	require.NoError(t, json.Unmarshal(b, &entry))

	return entry
}

func TestWithCallIDAndHook(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	ctx := WithContext(context.Background(), logger)
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithHook(ctx, "call.route")
	ctx = WithCallID(ctx, "sip/42")

	FromContext(ctx).InfoContext(ctx, "routed")

	entry := decode(t, buf.Bytes())
	assert.Equal(t, "sip/42", entry["call_id"])
	assert.Equal(t, "call.route", entry["hook"])
	assert.Equal(t, "req-1", entry["request_id"])
}

func TestWithCallID_NoLoggerInContext(t *testing.T) {
	ctx := WithCallID(context.Background(), "sip/42")

	_, ok := Lookup(ctx)
	assert.True(t, ok, "the default logger is stored with the call id")
}

func TestLookup(t *testing.T) {
	_, ok := Lookup(context.Background())
	assert.False(t, ok)

	own := slog.New(slog.NewTextHandler(io.Discard, nil))
	got, ok := Lookup(WithContext(context.Background(), own))
	assert.True(t, ok)
	assert.Same(t, own, got)
}

func TestEnsure(t *testing.T) {
	fallback := slog.New(slog.NewTextHandler(io.Discard, nil))
	own := slog.New(slog.NewJSONHandler(io.Discard, nil))

	ctx := Ensure(context.Background(), fallback)
	assert.Same(t, fallback, FromContext(ctx))

	ctx = Ensure(WithContext(context.Background(), own), fallback)
	assert.Same(t, own, FromContext(ctx))
}

func TestNewWithWriter_TraceLevelName(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&Config{Level: "trace", Format: "json", Service: "callrelay"}, &buf)

	Trace(context.Background(), logger, "dispatch offered")

	entry := decode(t, buf.Bytes())
	assert.Equal(t, "TRACE", entry["level"])
	assert.Equal(t, "dispatch offered", entry["msg"])
	assert.Equal(t, "callrelay", entry["service_name"])
}

func TestNewWithWriter_TraceSuppressedAtInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&Config{Level: "info", Format: "json"}, &buf)

	Trace(context.Background(), logger, "hidden")

	assert.Empty(t, buf.String())
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"trace":   LevelTrace,
		"TRACE":   LevelTrace,
		"debug":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		"bogus":   slog.LevelInfo,
	}

	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, parseLevel(in))
		})
	}
}

func TestSlogToCharmLevel_TraceMapsToDebug(t *testing.T) {
	assert.Equal(t, log.DebugLevel, slogToCharmLevel(LevelTrace))
	assert.Equal(t, log.WarnLevel, slogToCharmLevel(slog.LevelWarn))
}

func TestNewWithWriter_RotatingFileGetsRedactedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "callrelay.log")

	var buf bytes.Buffer
	logger := NewWithWriter(&Config{
		Level:  "info",
		Format: "text",
		File:   FileConfig{Enabled: true, Path: path, MaxSizeMB: 1},
	}, &buf)

	logger.Info("directory opened", slog.String("dsn", "postgres://relay:hunter2@db:5432/pbx"))

	assert.Contains(t, buf.String(), "directory opened")
	assert.NotContains(t, buf.String(), "hunter2")

	content, err := os.ReadFile(path)
	require.NoError(t, err)

	entry := decode(t, content)
	assert.Equal(t, "directory opened", entry["msg"])
	assert.NotContains(t, string(content), "hunter2")
}

func TestNewReplaceAttr_DSNCredentials(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{ReplaceAttr: NewReplaceAttr()}))

	logger.Info("opening directory",
		slog.String("account", "default"),
		slog.String("target", "postgres://relay:hunter2@db:5432/pbx"),
		slog.String("dsn", "file:relay.db?cache=shared"),
	)

	entry := decode(t, buf.Bytes())
	assert.Equal(t, "default", entry["account"])
	assert.NotContains(t, entry["target"], "hunter2")
	assert.NotEqual(t, "file:relay.db?cache=shared", entry["dsn"], "the dsn field is masked whatever it holds")
}

func TestNewReplaceAttr_DSNWithoutCredentialsKept(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{ReplaceAttr: NewReplaceAttr()}))

	logger.Info("engine", slog.String("base_url", "http://engine:8080/api"))

	assert.Equal(t, "http://engine:8080/api", decode(t, buf.Bytes())["base_url"])
}

// failingHandler accepts every record and fails to write it.
type failingHandler struct {
	err   error
	level slog.Level
}

func (h failingHandler) Enabled(_ context.Context, l slog.Level) bool { return l >= h.level }

func (h failingHandler) Handle(context.Context, slog.Record) error { return h.err } //nolint:gocritic // slog.Handler

func (h failingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }

func (h failingHandler) WithGroup(string) slog.Handler { return h }

func TestMultiHandler_JoinsErrors(t *testing.T) {
	errTerminal := errors.New("terminal closed")
	errFile := errors.New("disk full")

	var buf bytes.Buffer
	h := NewMultiHandler(
		failingHandler{err: errTerminal},
		slog.NewJSONHandler(&buf, nil),
		failingHandler{err: errFile},
	)

	err := h.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelInfo, "fax delivered", 0))

	require.Error(t, err)
	assert.ErrorIs(t, err, errTerminal)
	assert.ErrorIs(t, err, errFile)
	assert.Contains(t, buf.String(), "fax delivered", "a failing handler does not stop the others")
}

func TestMultiHandler_SkipsDisabledHandlers(t *testing.T) {
	var debug, info bytes.Buffer
	h := NewMultiHandler(
		slog.NewJSONHandler(&debug, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewJSONHandler(&info, &slog.HandlerOptions{Level: slog.LevelInfo}),
		failingHandler{err: errors.New("never asked"), level: slog.LevelError},
	)
	logger := slog.New(h).With(slog.String("module", "fax2email")).WithGroup("call")

	logger.Debug("limit checked", slog.String("id", "sip/7"))

	assert.False(t, h.Enabled(context.Background(), LevelTrace))
	assert.Empty(t, info.String())

	entry := decode(t, debug.Bytes())
	assert.Equal(t, "fax2email", entry["module"])
	assert.Equal(t, map[string]any{"id": "sip/7"}, entry["call"])
}
