package tracing

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(*Config) {}, false},
		{"grpc", func(c *Config) { c.ExporterType = ExporterOTLPGRPC }, false},
		{"no service name", func(c *Config) { c.ServiceName = "" }, true},
		{"bad rate", func(c *Config) { c.SamplingRate = 1.5 }, true},
		{"bad exporter", func(c *Config) { c.ExporterType = "jaeger" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				var ce *ConfigError
				assert.ErrorAs(t, err, &ce)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseResourceAttributes(t *testing.T) {
	attrs := parseResourceAttributes("region = eu, zone=a,broken")
	require.Len(t, attrs, 2)
	assert.Equal(t, "region", string(attrs[0].Key))
	assert.Equal(t, "eu", attrs[0].Value.AsString())
	assert.Empty(t, parseResourceAttributes(""))
}

func TestStdoutProviderAndGinMiddleware(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.ExporterType = ExporterStdout
	cfg.SamplingType = "always"
	cfg.StdoutWriter = &buf

	tp, err := NewTracerProvider(cfg)
	require.NoError(t, err)
	assert.Same(t, tp, GetTracerProvider())

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware(WithFilter(func(c *gin.Context) bool {
		return c.Request.URL.Path != "/healthz"
	})))
	var sc trace.SpanContext
	r.GET("/stats", func(c *gin.Context) {
		sc = trace.SpanContextFromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	assert.True(t, sc.IsValid())
	assert.NotEmpty(t, rec.Header().Get("Traceparent"))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Empty(t, rec.Header().Get("Traceparent"))

	require.NoError(t, Shutdown(context.Background()))
	assert.Nil(t, GetTracerProvider())
	assert.Contains(t, buf.String(), `"Name": "GET /stats"`)
	assert.NotContains(t, buf.String(), "/healthz\"")

	otel.SetTracerProvider(noop.NewTracerProvider())
}
