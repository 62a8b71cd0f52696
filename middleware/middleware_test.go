package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"

	"github.com/tokmz/wsgate/pkg/cache"
	"github.com/tokmz/wsgate/pkg/logger"
	"github.com/tokmz/wsgate/pkg/ws"
)

func startGateway(t *testing.T, setup func(gw *ws.Gateway)) (*ws.Gateway, string) {
	t.Helper()
	gw, err := ws.New()
	require.NoError(t, err)
	setup(gw)

	srv := httptest.NewServer(gw)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		require.NoError(t, gw.Shutdown(ctx))
		srv.Close()
	})
	return gw, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string, header http.Header) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) (string, error) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	return string(data), err
}

func echo() *ws.Handler {
	return &ws.Handler{
		OnMessage: func(ctx context.Context, c *ws.Conn, msg ws.Message) error {
			_, err := c.Send(ctx, msg.Data, false)
			return err
		},
	}
}

func TestBearerAuth(t *testing.T) {
	_, url := startGateway(t, func(gw *ws.Gateway) {
		auth := BearerAuth(&BearerAuthConfig{Validate: StaticTokens(map[string]string{"secret": "alice"})})
		require.NoError(t, gw.Register("secure", &ws.Handler{
			OnOpen: func(ctx context.Context, c *ws.Conn) error {
				_, err := c.SendText(ctx, "hello "+c.GetString(UserKey))
				return err
			},
		}, auth))
	})

	tests := []struct {
		name   string
		header http.Header
	}{
		{"missing header", nil},
		{"not bearer", http.Header{"Authorization": {"Basic secret"}}},
		{"unknown token", http.Header{"Authorization": {"Bearer nope"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := dial(t, url+"/secure", tt.header)
			_, err := read(t, conn)
			assert.True(t, websocket.IsCloseError(err, ws.ClosePolicyViolation), "got %v", err)
		})
	}

	t.Run("valid token", func(t *testing.T) {
		conn := dial(t, url+"/secure", http.Header{"Authorization": {"Bearer secret"}})
		text, err := read(t, conn)
		require.NoError(t, err)
		assert.Equal(t, "hello alice", text)
	})
}

func TestRateLimit(t *testing.T) {
	counter, err := cache.New(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = counter.Close() })

	_, url := startGateway(t, func(gw *ws.Gateway) {
		limit := RateLimit(&RateLimitConfig{Counter: counter, Limit: 2, Window: time.Minute})
		require.NoError(t, gw.Register("event", echo(), limit))
	})

	conn := dial(t, url+"/event", nil)
	for _, m := range []string{"a", "b", "c", "d"} {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(m)))
	}

	var got []string
	for i := 0; i < 4; i++ {
		text, err := read(t, conn)
		require.NoError(t, err)
		got = append(got, text)
	}
	assert.Equal(t, []string{"a", "b", "Rate limit exceeded", "Rate limit exceeded"}, got)
}

func TestRateLimitSharedAcrossReconnects(t *testing.T) {
	counter, err := cache.New(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = counter.Close() })

	_, url := startGateway(t, func(gw *ws.Gateway) {
		limit := RateLimit(&RateLimitConfig{Counter: counter, Limit: 2, Window: time.Minute})
		require.NoError(t, gw.Register("event", echo(), limit))
	})

	first := dial(t, url+"/event", nil)
	for _, m := range []string{"a", "b"} {
		require.NoError(t, first.WriteMessage(websocket.TextMessage, []byte(m)))
		text, err := read(t, first)
		require.NoError(t, err)
		assert.Equal(t, m, text)
	}
	require.NoError(t, first.Close())

	second := dial(t, url+"/event", nil)
	require.NoError(t, second.WriteMessage(websocket.TextMessage, []byte("c")))
	text, err := read(t, second)
	require.NoError(t, err)
	assert.Equal(t, "Rate limit exceeded", text)
}

func TestRemoteHost(t *testing.T) {
	tests := []struct {
		addr, want string
	}{
		{"127.0.0.1:52114", "127.0.0.1"},
		{"[::1]:8080", "::1"},
		{"10.0.0.7", "10.0.0.7"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			assert.Equal(t, tt.want, remoteHost(tt.addr))
		})
	}
}

func TestThrottle(t *testing.T) {
	var handled atomic.Int32
	closed := make(chan struct{})
	_, url := startGateway(t, func(gw *ws.Gateway) {
		require.NoError(t, gw.Register("feed", &ws.Handler{
			OnMessage: func(ctx context.Context, c *ws.Conn, msg ws.Message) error {
				handled.Add(1)
				return nil
			},
			OnClose: func(ctx context.Context, c *ws.Conn, code int, reason string) error {
				close(closed)
				return nil
			},
		}, Throttle(rate.Every(time.Hour), 2)))
	})

	conn := dial(t, url+"/feed", nil)
	for i := 0; i < 5; i++ {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("x")))
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	require.NoError(t, conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)))

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for close")
	}
	assert.EqualValues(t, 2, handled.Load())
}

func TestRecover(t *testing.T) {
	panicky := ws.NewMiddleware("panicky", func(context.Context, *ws.Event) error {
		panic("boom")
	})
	calm := ws.NewMiddleware("calm", func(context.Context, *ws.Event) error { return nil })

	mw := Recover(nil, panicky)
	assert.Equal(t, "recover(panicky)", mw.Name())

	err := mw.Handle(context.Background(), &ws.Event{Type: ws.EventMessage})
	assert.ErrorIs(t, err, ws.ErrMiddlewareRejected)
	assert.NoError(t, Recover(nil, calm).Handle(context.Background(), &ws.Event{Type: ws.EventMessage}))
}

func TestLogger(t *testing.T) {
	var (
		mu      sync.Mutex
		entries []string
	)
	log, err := logger.New(&logger.Config{
		Level: logger.DebugLevel,
		File:  filepath.Join(t.TempDir(), "gateway.log"),
		Hooks: []logger.Hook{logger.HookFunc(func(e zapcore.Entry, _ []zapcore.Field) error {
			mu.Lock()
			entries = append(entries, e.Message)
			mu.Unlock()
			return nil
		})},
	})
	require.NoError(t, err)

	_, url := startGateway(t, func(gw *ws.Gateway) {
		require.NoError(t, gw.Use(Logger(log)))
		require.NoError(t, gw.Register("echo", echo()))
	})

	conn := dial(t, url+"/echo", nil)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping")))
	text, err := read(t, conn)
	require.NoError(t, err)
	assert.Equal(t, "ping", text)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"connection opened", "message received"}, entries)
}
