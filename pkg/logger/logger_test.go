package logger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// captureHook 收集写入的日志条目
type captureHook struct {
	mu      sync.Mutex
	entries []zapcore.Entry
	fields  [][]zapcore.Field
}

func (h *captureHook) OnWrite(entry zapcore.Entry, fields []zapcore.Field) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, entry)
	h.fields = append(h.fields, append([]zapcore.Field(nil), fields...))
	return nil
}

func (h *captureHook) last(t *testing.T) (zapcore.Entry, map[string]string) {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	require.NotEmpty(t, h.entries)
	i := len(h.entries) - 1
	out := make(map[string]string)
	for _, f := range h.fields[i] {
		if f.Type == zapcore.StringType {
			out[f.Key] = f.String
		}
	}
	return h.entries[i], out
}

func (h *captureHook) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

func newCaptured(t *testing.T, opts ...Option) (Logger, *captureHook) {
	t.Helper()
	hook := &captureHook{}
	opts = append([]Option{WithFileOutput(filepath.Join(t.TempDir(), "test.log")), WithHook(hook)}, opts...)
	l, err := NewWithOptions(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Sync() })
	return l, hook
}

func TestNew(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{name: "nil config", config: nil},
		{name: "console output", config: &Config{Format: JSONFormat, Console: true}},
		{name: "file output", config: &Config{File: filepath.Join(dir, "gw.log")}},
		{name: "rotate output", config: &Config{Rotate: &RotateConfig{Filename: filepath.Join(dir, "gw-rotate.log")}}},
		{name: "sampling", config: &Config{Console: true, Sampling: &SamplingConfig{}}},
		{name: "invalid format", config: &Config{Format: "xml"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			_ = l.Sync()
		})
	}
}

func TestPresets(t *testing.T) {
	prod, err := NewProduction()
	require.NoError(t, err)
	assert.Equal(t, InfoLevel, prod.Level())

	dev, err := NewDevelopment()
	require.NoError(t, err)
	assert.Equal(t, DebugLevel, dev.Level())
}

func TestSetLevelFiltersEntries(t *testing.T) {
	l, hook := newCaptured(t, WithLevel(InfoLevel))

	l.Debug("hidden")
	assert.Equal(t, 0, hook.count())

	l.SetLevel(DebugLevel)
	assert.Equal(t, DebugLevel, l.Level())
	l.Debug("visible")
	assert.Equal(t, 1, hook.count())

	l.SetLevel(ErrorLevel)
	l.Warn("hidden again")
	assert.Equal(t, 1, hook.count())
}

func TestContextFields(t *testing.T) {
	l, hook := newCaptured(t)

	ctx := WithRoute(WithClientID(context.Background(), "c-1"), "chat/:roomId")
	traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	spanID, _ := trace.SpanIDFromHex("0102030405060708")
	ctx = trace.ContextWithSpanContext(ctx, trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	l.InfoContext(ctx, "open", zap.String("path", "chat/42"))

	entry, fields := hook.last(t)
	assert.Equal(t, "open", entry.Message)
	assert.Equal(t, "c-1", fields["client_id"])
	assert.Equal(t, "chat/:roomId", fields["route"])
	assert.Equal(t, traceID.String(), fields["trace_id"])
	assert.Equal(t, spanID.String(), fields["span_id"])
	assert.Equal(t, "chat/42", fields["path"])
}

func TestLoggerInContext(t *testing.T) {
	fallback := Nop()
	assert.Same(t, fallback, FromContext(context.Background(), fallback))

	l, _ := newCaptured(t)
	ctx := NewContext(context.Background(), l)
	assert.Same(t, l, FromContext(ctx, fallback))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"", InfoLevel, false},
		{"debug", DebugLevel, false},
		{" WARN ", WarnLevel, false},
		{"error", ErrorLevel, false},
		{"verbose", InfoLevel, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, "warn", WarnLevel.String())
}

func TestRotateDefaults(t *testing.T) {
	r := &RotateConfig{Filename: "gw.log"}
	w := r.writer()
	assert.Equal(t, 100, w.MaxSize)
	assert.Equal(t, 30, w.MaxAge)
	assert.Equal(t, 10, w.MaxBackups)
	assert.True(t, w.LocalTime)
}

func TestGinMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l, hook := newCaptured(t, WithLevel(DebugLevel))

	engine := gin.New()
	engine.Use(GinMiddleware(l))
	engine.GET("/missing", func(c *gin.Context) { c.String(http.StatusNotFound, "Not Found") })

	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	req.Header.Set("Upgrade", "websocket")
	engine.ServeHTTP(httptest.NewRecorder(), req)

	entry, fields := hook.last(t)
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
	assert.Equal(t, "/missing", fields["path"])
}

func TestConfigDefaults(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		wantConsole bool
	}{
		{"no output", Config{}, true},
		{"file only", Config{File: "gateway.log"}, false},
		{"rotate only", Config{Rotate: &RotateConfig{Filename: "gateway.log"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.config
			cfg.setDefaults()
			assert.Equal(t, JSONFormat, cfg.Format)
			assert.Equal(t, tt.wantConsole, cfg.Console)
		})
	}

	cfg := Config{Sampling: &SamplingConfig{Thereafter: 10}}
	cfg.setDefaults()
	assert.Equal(t, 100, cfg.Sampling.Initial)
	assert.Equal(t, 10, cfg.Sampling.Thereafter)
}
