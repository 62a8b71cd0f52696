package ws

import (
	"context"
	"encoding/json"
	"maps"
	"net/http"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/tokmz/wsgate/pkg/queue"
)

// 连接状态 Connecting → Open → Closed
const (
	stateConnecting int32 = iota
	stateOpen
	stateClosing // 已发起关闭，等待传输层确认
	stateClosed
)

// ConnInfo 连接快照
type ConnInfo struct {
	ID         string            `json:"id"`
	Path       string            `json:"path"`
	Pattern    string            `json:"pattern"`
	Query      map[string]string `json:"query,omitempty"`
	Params     map[string]string `json:"params,omitempty"`
	RemoteAddr string            `json:"remote_addr"`
}

// Conn 一条已升级的连接及其上下文
//
// 路由、路径、查询参数、路径参数与请求头在升级时确定，之后只读。
type Conn struct {
	id         string
	route      *Route
	path       string
	query      map[string]string
	params     map[string]string
	header     http.Header
	remoteAddr string

	gateway *Gateway
	socket  Socket
	state   atomic.Int32

	mu  sync.RWMutex
	ext map[string]any

	events chan connEvent
	drain  chan struct{}
	done   chan struct{}
}

type connEvent struct {
	typ    EventType
	msg    Message
	code   int
	reason string
}

func newConn(g *Gateway, id string, route *Route, path string, params map[string]string, r *http.Request) *Conn {
	query := make(map[string]string)
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			query[k] = v[0]
		}
	}

	return &Conn{
		id:      id,
		route:   route,
		path:    path,
		query:   query,
		params:  params,
		header:  r.Header.Clone(),
		gateway: g,
		ext:     make(map[string]any),
		events:  make(chan connEvent, g.config.EventQueueSize),
		drain:   make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// ID 客户端标识
func (c *Conn) ID() string { return c.id }

// Path 规范化后的请求路径
func (c *Conn) Path() string { return c.path }

// Pattern 匹配到的路由模式
func (c *Conn) Pattern() string { return c.route.Pattern }

// Route 匹配到的路由
func (c *Conn) Route() *Route { return c.route }

// Query 查询参数（每个键取第一个值），只读
func (c *Conn) Query() map[string]string { return c.query }

// Params 路径参数，只读
func (c *Conn) Params() map[string]string { return c.params }

// Param 返回路径参数
func (c *Conn) Param(name string) string { return c.params[name] }

// Header 升级请求的请求头，只读
func (c *Conn) Header() http.Header { return c.header }

// RemoteAddr 对端地址
func (c *Conn) RemoteAddr() string { return c.remoteAddr }

// Get 读取扩展数据
func (c *Conn) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.ext[key]
	return v, ok
}

// GetString 读取字符串类型的扩展数据
func (c *Conn) GetString(key string) string {
	v, _ := c.Get(key)
	s, _ := v.(string)
	return s
}

// Set 写入扩展数据
func (c *Conn) Set(key string, value any) {
	c.mu.Lock()
	c.ext[key] = value
	c.mu.Unlock()
}

// Delete 删除扩展数据
func (c *Conn) Delete(key string) {
	c.mu.Lock()
	delete(c.ext, key)
	c.mu.Unlock()
}

// Send 点对点发送，背压时进入持久化队列，drain 后按序重发
func (c *Conn) Send(ctx context.Context, payload []byte, compress bool) (queue.Result, error) {
	if c.state.Load() >= stateClosing {
		return queue.Failed, ErrConnectionClosed
	}
	res, err := c.gateway.queue.Send(ctx, connTarget{c}, payload, compress)
	c.gateway.metrics.SendCompleted(res)
	if err != nil {
		c.gateway.logger.ErrorContext(ctx, "send failed",
			zap.String("client_id", c.id),
			zap.String("path", c.path),
			zap.Error(err),
		)
	}
	return res, err
}

// SendText 发送文本
func (c *Conn) SendText(ctx context.Context, text string) (queue.Result, error) {
	return c.Send(ctx, []byte(text), false)
}

// SendJSON 发送 JSON
func (c *Conn) SendJSON(ctx context.Context, v any) (queue.Result, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return queue.Failed, err
	}
	return c.Send(ctx, data, false)
}

// Close 关闭连接，可重复调用
func (c *Conn) Close(code int, reason string) error {
	for {
		s := c.state.Load()
		if s >= stateClosing {
			return nil
		}
		if c.state.CompareAndSwap(s, stateClosing) {
			break
		}
	}
	return c.socket.Close(code, reason)
}

// IsClosed 是否已关闭或正在关闭
func (c *Conn) IsClosed() bool {
	return c.state.Load() >= stateClosing
}

// Done 连接的 close 事件处理完毕后关闭
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Subscribe 订阅主题
func (c *Conn) Subscribe(topic string) bool {
	return c.gateway.broker.Subscribe(c, topic)
}

// Unsubscribe 取消订阅
func (c *Conn) Unsubscribe(topic string) bool {
	return c.gateway.broker.Unsubscribe(c, topic)
}

// IsSubscribed 是否已订阅
func (c *Conn) IsSubscribed(topic string) bool {
	return c.gateway.broker.IsSubscribed(c, topic)
}

// Topics 已订阅的主题
func (c *Conn) Topics() []string {
	return c.gateway.broker.TopicsOf(c)
}

// Publish 向主题发布，不包括自己，返回送达的连接数
func (c *Conn) Publish(topic string, payload []byte, compress bool) int {
	return c.gateway.broker.Publish(topic, payload, compress, c)
}

// Cork 合并 fn 内的发送
func (c *Conn) Cork(fn func()) {
	c.socket.Cork(fn)
}

// Info 连接快照
func (c *Conn) Info() ConnInfo {
	return ConnInfo{
		ID:         c.id,
		Path:       c.path,
		Pattern:    c.route.Pattern,
		Query:      maps.Clone(c.query),
		Params:     maps.Clone(c.params),
		RemoteAddr: c.remoteAddr,
	}
}

// connTarget 供队列使用的发送目标
type connTarget struct {
	c *Conn
}

func (t connTarget) ClientID() string { return t.c.id }

func (t connTarget) Send(payload []byte, compress bool) error {
	return t.c.socket.Send(payload, compress)
}

func (t connTarget) Close(code int, reason string) error {
	return t.c.Close(code, reason)
}

// socketEvents 把传输层回调转成连接事件
type socketEvents struct {
	c *Conn
}

func (e socketEvents) OnMessage(msg Message) {
	e.c.events <- connEvent{typ: EventMessage, msg: msg}
}

func (e socketEvents) OnDrain() {
	select {
	case e.c.drain <- struct{}{}:
	default:
	}
}

func (e socketEvents) OnClose(code int, reason string) {
	e.c.events <- connEvent{typ: EventClose, code: code, reason: reason}
}
