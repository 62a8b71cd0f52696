package ws

import (
	"errors"
	"net/http"
	"slices"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
)

// WebsocketTransport 基于 gorilla/websocket 的传输层
type WebsocketTransport struct {
	config   TransportConfig
	upgrader websocket.Upgrader
}

// NewWebsocketTransport 创建传输层
func NewWebsocketTransport(cfg TransportConfig) *WebsocketTransport {
	return &WebsocketTransport{
		config: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:    cfg.ReadBufferSize,
			WriteBufferSize:   cfg.WriteBufferSize,
			HandshakeTimeout:  cfg.HandshakeTimeout,
			EnableCompression: cfg.EnableCompression,
			CheckOrigin:       originChecker(cfg.AllowedOrigins),
			// 由网关统一写出错误响应
			Error: func(http.ResponseWriter, *http.Request, int, error) {},
		},
	}
}

// Upgrade 升级连接并启动读写协程
func (t *WebsocketTransport) Upgrade(w http.ResponseWriter, r *http.Request, h SocketHandler) (Socket, error) {
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	s := newWSSocket(conn, t.config, h)
	go s.readPump()
	go s.writePump()
	return s, nil
}

// originChecker 为空时同源，包含 "*" 时全部允许
func originChecker(allowed []string) func(*http.Request) bool {
	if slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	if len(allowed) == 0 {
		return func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				// 非浏览器客户端不带 Origin
				return true
			}
			return origin == "http://"+r.Host || origin == "https://"+r.Host
		}
	}

	whitelist := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		whitelist[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		_, ok := whitelist[r.Header.Get("Origin")]
		return ok
	}
}

type frame struct {
	typ      MessageType
	data     []byte
	compress bool
}

// wsSocket 单条连接
//
// 发送缓冲满时返回 ErrBackpressure 并标记，写协程清空缓冲后回调 OnDrain。
type wsSocket struct {
	conn   *websocket.Conn
	config TransportConfig
	h      SocketHandler

	mu          sync.Mutex
	pending     []frame
	corked      int
	pressured   bool
	closing     bool
	closeCode   int
	closeReason string

	wake      chan struct{}
	closeReq  chan struct{}
	readDone  chan struct{}
	closeOnce sync.Once
}

func newWSSocket(conn *websocket.Conn, cfg TransportConfig, h SocketHandler) *wsSocket {
	return &wsSocket{
		conn:     conn,
		config:   cfg,
		h:        h,
		wake:     make(chan struct{}, 1),
		closeReq: make(chan struct{}),
		readDone: make(chan struct{}),
	}
}

// Send 追加到发送缓冲
func (s *wsSocket) Send(payload []byte, compress bool) error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return ErrConnectionClosed
	}
	if len(s.pending) >= s.config.SendQueueSize {
		s.pressured = true
		s.mu.Unlock()
		return ErrBackpressure
	}
	s.pending = append(s.pending, frame{typ: frameType(payload), data: payload, compress: compress})
	corked := s.corked > 0
	s.mu.Unlock()

	if !corked {
		s.signal()
	}
	return nil
}

// Close 发起关闭握手
func (s *wsSocket) Close(code int, reason string) error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		if !s.closing {
			s.closing = true
			s.closeCode = code
			s.closeReason = reason
		}
		s.mu.Unlock()
		close(s.closeReq)
	})
	return nil
}

// Cork 合并 fn 内的发送
func (s *wsSocket) Cork(fn func()) {
	s.mu.Lock()
	s.corked++
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.corked--
		release := s.corked == 0 && len(s.pending) > 0
		s.mu.Unlock()
		if release {
			s.signal()
		}
	}()
	fn()
}

// RemoteAddr 对端地址
func (s *wsSocket) RemoteAddr() string {
	return s.conn.RemoteAddr().String()
}

func (s *wsSocket) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *wsSocket) readPump() {
	var (
		code   int
		reason string
	)
	defer func() {
		close(s.readDone)
		s.h.OnClose(code, reason)
	}()

	s.conn.SetReadLimit(s.config.MaxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(s.config.PongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.config.PongWait))
	})

	for {
		typ, data, err := s.conn.ReadMessage()
		if err != nil {
			code, reason = s.closeStatus(err)
			return
		}
		s.h.OnMessage(Message{Type: MessageType(typ), Data: data})
	}
}

// closeStatus 本端发起的关闭优先使用本端的关闭码
func (s *wsSocket) closeStatus(err error) (int, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closing {
		s.closing = true
		var ce *websocket.CloseError
		if errors.As(err, &ce) {
			s.closeCode, s.closeReason = ce.Code, ce.Text
		} else {
			s.closeCode, s.closeReason = websocket.CloseAbnormalClosure, err.Error()
		}
	}
	return s.closeCode, s.closeReason
}

func (s *wsSocket) writePump() {
	ticker := time.NewTicker(s.config.PingInterval)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case <-s.wake:
			if err := s.flush(); err != nil {
				return
			}

		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.config.WriteWait)); err != nil {
				return
			}

		case <-s.closeReq:
			_ = s.flush()
			s.mu.Lock()
			msg := websocket.FormatCloseMessage(s.closeCode, truncateReason(s.closeReason))
			s.mu.Unlock()
			_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.config.WriteWait))

			// 等待对端回应关闭帧
			timer := time.NewTimer(s.config.CloseGracePeriod)
			select {
			case <-s.readDone:
			case <-timer.C:
			}
			timer.Stop()
			return

		case <-s.readDone:
			return
		}
	}
}

// flush 写出当前缓冲，写完后若此前发生过背压则回调 OnDrain
func (s *wsSocket) flush() error {
	s.mu.Lock()
	if s.corked > 0 || len(s.pending) == 0 {
		s.mu.Unlock()
		return nil
	}
	batch := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, f := range batch {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteWait)); err != nil {
			return err
		}
		s.conn.EnableWriteCompression(f.compress)
		if err := s.conn.WriteMessage(int(f.typ), f.data); err != nil {
			return err
		}
	}

	s.mu.Lock()
	drained := s.pressured && len(s.pending) < s.config.SendQueueSize
	if drained {
		s.pressured = false
	}
	more := len(s.pending) > 0 && s.corked == 0
	s.mu.Unlock()

	if more {
		s.signal()
	}
	if drained {
		s.h.OnDrain()
	}
	return nil
}

// truncateReason 关闭原因最多 123 字节，截断落在字符边界上
func truncateReason(reason string) string {
	if len(reason) <= 123 {
		return reason
	}
	reason = reason[:123]
	for len(reason) > 0 && !utf8.ValidString(reason) {
		reason = reason[:len(reason)-1]
	}
	return reason
}
