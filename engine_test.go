package wsgate

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tokmz/wsgate/pkg/ws"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *ws.Gateway) {
	t.Helper()
	reg := prometheus.NewRegistry()
	metrics, err := ws.NewPrometheusMetrics(reg, "")
	require.NoError(t, err)

	tc := ws.DefaultTransportConfig()
	tc.CloseGracePeriod = 200 * time.Millisecond
	gw, err := ws.New(ws.WithMetrics(metrics), ws.WithTransportConfig(tc))
	require.NoError(t, err)
	require.NoError(t, gw.Register("echo", &ws.Handler{
		OnMessage: func(ctx context.Context, c *ws.Conn, msg ws.Message) error {
			_, err := c.Send(ctx, msg.Data, false)
			return err
		},
	}, ws.NewMiddleware("noop", func(ctx context.Context, ev *ws.Event) error { return nil })))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = gw.Shutdown(ctx)
	})

	opts = append([]Option{WithBanner(false), WithGatherer(reg)}, opts...)
	return New(gw, opts...), gw
}

func TestAdminEndpoints(t *testing.T) {
	e, gw := newTestEngine(t, WithAdmin(true, "/admin"))
	gw.Freeze()

	tests := []struct {
		name     string
		path     string
		status   int
		contains string
	}{
		{"healthz", "/admin/healthz", http.StatusOK, `"status":"ok"`},
		{"stats", "/admin/stats", http.StatusOK, `"routes":1`},
		{"routes", "/admin/routes", http.StatusOK, `"middlewares":["noop"]`},
		{"metrics", "/admin/metrics", http.StatusOK, "wsgate_gateway_connections_active"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			e.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.contains)
		})
	}

	t.Run("healthz while shutting down", func(t *testing.T) {
		require.NoError(t, e.Shutdown(context.Background()))
		w := httptest.NewRecorder()
		e.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/healthz", nil))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)

		var resp Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
		assert.Equal(t, "shutting down", resp.Message)
	})
}

func TestAdminDisabled(t *testing.T) {
	e, gw := newTestEngine(t, WithAdmin(false, ""))
	gw.Freeze()

	w := httptest.NewRecorder()
	e.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUnknownPathFallsThroughToGateway(t *testing.T) {
	e, gw := newTestEngine(t)
	gw.Freeze()

	w := httptest.NewRecorder()
	e.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"code"`)
}

func TestServeAndShutdown(t *testing.T) {
	var before, after bool
	e, _ := newTestEngine(t,
		WithBeforeShutdown(func() { before = true }),
		WithAfterShutdown(func() { after = true }),
		WithShutdownTimeout(2*time.Second),
	)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- e.Serve(ctx, ln) }()

	url := "ws://" + ln.Addr().String() + "/echo"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping")))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "ping", string(data))

	cancel()

	_, _, err = conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, websocket.CloseGoingAway, closeErr.Code)

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("serve did not return")
	}
	assert.True(t, before)
	assert.True(t, after)
}

func TestJoinAdminPath(t *testing.T) {
	tests := []struct {
		prefix, path, want string
	}{
		{"", "/healthz", "/healthz"},
		{"/", "/healthz", "/healthz"},
		{"admin", "/stats", "/admin/stats"},
		{"/admin/", "/metrics", "/admin/metrics"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, joinAdminPath(tt.prefix, tt.path))
		})
	}
}

func TestPrintWSRoutes(t *testing.T) {
	_, gw := newTestEngine(t)
	var b strings.Builder
	printWSRoutes(&b, gw.Routes(), "test")
	assert.Contains(t, b.String(), "echo")
	assert.Contains(t, b.String(), "[noop]")
}
