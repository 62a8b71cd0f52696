package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeSocket 可控制背压与故障的传输层连接
type fakeSocket struct {
	h SocketHandler

	mu          sync.Mutex
	sent        []string
	capacity    int // 剩余可接收数量，<0 表示不限
	broken      error
	closed      bool
	closeCode   int
	closeReason string
}

func (s *fakeSocket) Send(payload []byte, compress bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.closed:
		return ErrConnectionClosed
	case s.broken != nil:
		return s.broken
	case s.capacity == 0:
		return ErrBackpressure
	}
	if s.capacity > 0 {
		s.capacity--
	}
	s.sent = append(s.sent, string(payload))
	return nil
}

func (s *fakeSocket) Close(code int, reason string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed, s.closeCode, s.closeReason = true, code, reason
	s.mu.Unlock()
	s.h.OnClose(code, reason)
	return nil
}

func (s *fakeSocket) Cork(fn func()) { fn() }

func (s *fakeSocket) RemoteAddr() string { return "192.0.2.1:5000" }

func (s *fakeSocket) deliver(text string) {
	s.h.OnMessage(Message{Type: TextMessage, Data: []byte(text)})
}

func (s *fakeSocket) peerClose(code int, reason string) {
	s.mu.Lock()
	s.closed, s.closeCode, s.closeReason = true, code, reason
	s.mu.Unlock()
	s.h.OnClose(code, reason)
}

func (s *fakeSocket) setCapacity(n int) {
	s.mu.Lock()
	s.capacity = n
	s.mu.Unlock()
}

func (s *fakeSocket) setBroken(err error) {
	s.mu.Lock()
	s.broken = err
	s.mu.Unlock()
}

func (s *fakeSocket) messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

func (s *fakeSocket) closedWith() (int, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCode, s.closeReason
}

// fakeTransport 不做真实握手的传输层
type fakeTransport struct {
	mu      sync.Mutex
	fail    error
	sockets chan *fakeSocket
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{sockets: make(chan *fakeSocket, 16)}
}

func (t *fakeTransport) Upgrade(w http.ResponseWriter, r *http.Request, h SocketHandler) (Socket, error) {
	t.mu.Lock()
	fail := t.fail
	t.mu.Unlock()
	if fail != nil {
		return nil, fail
	}
	s := &fakeSocket{h: h, capacity: -1}
	t.sockets <- s
	return s, nil
}

func (t *fakeTransport) setFail(err error) {
	t.mu.Lock()
	t.fail = err
	t.mu.Unlock()
}

func newTestGateway(t *testing.T, opts ...Option) (*Gateway, *fakeTransport) {
	t.Helper()
	ft := newFakeTransport()
	gw, err := New(append([]Option{WithTransport(ft)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		require.NoError(t, gw.Shutdown(ctx))
	})
	return gw, ft
}

// upgrade 发起升级请求，成功时返回传输层连接
func upgrade(t *testing.T, gw *Gateway, ft *fakeTransport, target string, header http.Header) (*fakeSocket, *httptest.ResponseRecorder) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "http://gateway.test"+target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, req)

	select {
	case s := <-ft.sockets:
		return s, rec
	default:
		return nil, rec
	}
}

// callLog 并发安全的调用记录
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(s string) {
	l.mu.Lock()
	l.calls = append(l.calls, s)
	l.mu.Unlock()
}

func (l *callLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

// eventRecorder 记录事件总线上的所有事件
type eventRecorder struct {
	ch chan Event
}

func recordEvents(gw *Gateway, log *callLog) *eventRecorder {
	r := &eventRecorder{ch: make(chan Event, 64)}
	for _, typ := range []EventType{EventOpen, EventMessage, EventDrain, EventClose} {
		gw.On(typ, func(ev Event) {
			if log != nil {
				log.add("emit:" + string(ev.Type))
			}
			r.ch <- ev
		})
	}
	return r
}

func (r *eventRecorder) next(t *testing.T, want EventType) Event {
	t.Helper()
	select {
	case ev := <-r.ch:
		require.Equal(t, want, ev.Type)
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s event", want)
		return Event{}
	}
}

func waitDone(t *testing.T, c *Conn) {
	t.Helper()
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("connection %s not closed", c.ID())
	}
}
