package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	xerrors "github.com/tokmz/wsgate/pkg/errors"
	"github.com/tokmz/wsgate/pkg/logger"
	"github.com/tokmz/wsgate/pkg/queue"
	"github.com/tokmz/wsgate/pkg/queue/storage"
)

// 关闭码
const (
	CloseNormal          = 1000
	CloseGoingAway       = 1001
	ClosePolicyViolation = 1008
	CloseInternalError   = 1011
)

const tracerName = "wsgate.ws"

// ErrShuttingDown 网关正在关闭
var ErrShuttingDown = xerrors.New(2005, "gateway shutting down", 503)

// Stats 网关统计
type Stats struct {
	Connections        int `json:"connections"`
	PendingConnections int `json:"pending_connections"`
	Routes             int `json:"routes"`
	Middlewares        int `json:"middlewares"`
	Topics             int `json:"topics"`
}

// Gateway 连接网关
//
// 每条连接一个事件协程：open 先于任何 message，close 最后处理，
// 同一连接的事件串行执行，不同连接之间互不阻塞。
type Gateway struct {
	config    *Config
	registry  *Registry
	bus       *EventBus
	broker    *Broker
	pool      *ConnectionPool
	queue     *queue.Queue
	transport Transport
	logger    logger.Logger
	metrics   Metrics
	tracer    trace.Tracer
	newID     func() string

	mu          sync.RWMutex
	middlewares []*Middleware

	upgradeMu sync.RWMutex
	wg        sync.WaitGroup
	closed    atomic.Bool
}

// New 创建网关
func New(opts ...Option) (*Gateway, error) {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(config)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if config.Logger == nil {
		config.Logger = logger.Nop()
	}
	if config.Metrics == nil {
		config.Metrics = NoopMetrics{}
	}
	if config.TracerProvider == nil {
		config.TracerProvider = otel.GetTracerProvider()
	}
	if config.IDGenerator == nil {
		config.IDGenerator = uuid.NewString
	}

	q := config.Queue
	if q == nil {
		var err error
		q, err = queue.New(context.Background(), storage.NewMemoryStore(),
			queue.WithLogger(config.Logger),
			queue.WithFatalCloseCode(CloseInternalError),
		)
		if err != nil {
			return nil, err
		}
	}

	transport := config.transport
	if transport == nil {
		transport = NewWebsocketTransport(config.Transport)
	}

	g := &Gateway{
		config:    config,
		registry:  NewRegistry(config.StrictPatterns),
		bus:       NewEventBus(),
		broker:    NewBroker(config.Metrics),
		pool:      NewConnectionPool(config.MaxConnections),
		queue:     q,
		transport: transport,
		logger:    config.Logger,
		metrics:   config.Metrics,
		tracer:    config.TracerProvider.Tracer(tracerName),
		newID:     config.IDGenerator,
	}
	g.bus.onPanic = func(t EventType, r any) {
		g.logger.Error("event listener panic", zap.String("event", string(t)), zap.Any("panic", r))
	}
	return g, nil
}

// Register 注册路由
func (g *Gateway) Register(pattern string, h *Handler, mws ...*Middleware) error {
	return g.registry.Register(pattern, h, mws...)
}

// Group 注册路由组
func (g *Gateway) Group(prefix string, group *Group, mws ...*Middleware) error {
	return g.registry.Group(prefix, group, mws...)
}

// Routes 按注册顺序返回路由
func (g *Gateway) Routes() []*Route {
	return g.registry.List()
}

// RemoveRoute 删除路由
func (g *Gateway) RemoveRoute(pattern string) error {
	return g.registry.Remove(pattern)
}

// ClearRoutes 删除所有路由
func (g *Gateway) ClearRoutes() error {
	return g.registry.Clear()
}

// Use 添加全局中间件，按指针去重
func (g *Gateway) Use(mws ...*Middleware) error {
	if g.registry.Frozen() {
		return ErrRegistryFrozen
	}
	g.mu.Lock()
	g.middlewares = mergeMiddlewares(g.middlewares, mws)
	g.mu.Unlock()
	return nil
}

// ClearMiddleware 清空全局中间件
func (g *Gateway) ClearMiddleware() error {
	if g.registry.Frozen() {
		return ErrRegistryFrozen
	}
	g.mu.Lock()
	g.middlewares = nil
	g.mu.Unlock()
	return nil
}

// Freeze 预编译中间件链，此后路由与全局中间件只读
func (g *Gateway) Freeze() {
	g.mu.RLock()
	global := g.middlewares
	g.mu.RUnlock()
	g.registry.Freeze(global)
}

// On 注册生命周期事件监听器
func (g *Gateway) On(eventType EventType, handler EventHandler) ListenerID {
	return g.bus.On(eventType, handler)
}

// Off 移除监听器
func (g *Gateway) Off(eventType EventType, id ListenerID) bool {
	return g.bus.Off(eventType, id)
}

// Publish 向主题的所有订阅者投递
func (g *Gateway) Publish(topic string, payload []byte, compress bool) int {
	return g.broker.Publish(topic, payload, compress, nil)
}

// Broadcast 向 BroadcastTopic 发布
func (g *Gateway) Broadcast(payload []byte, compress bool) int {
	return g.Publish(BroadcastTopic, payload, compress)
}

// Conn 按客户端标识查找连接
func (g *Gateway) Conn(clientID string) (*Conn, bool) {
	return g.pool.Get(clientID)
}

// QueueLength 客户端待重发消息数
func (g *Gateway) QueueLength(ctx context.Context, clientID string) (int64, error) {
	return g.queue.Len(ctx, clientID)
}

// Stats 返回统计信息
func (g *Gateway) Stats() Stats {
	g.mu.RLock()
	mws := len(g.middlewares)
	g.mu.RUnlock()

	return Stats{
		Connections:        g.pool.Count(),
		PendingConnections: g.pool.Pending(),
		Routes:             g.registry.Len(),
		Middlewares:        mws,
		Topics:             g.broker.TopicCount(),
	}
}

// ShuttingDown 是否已开始关闭
func (g *Gateway) ShuttingDown() bool {
	return g.closed.Load()
}

// ServeHTTP 实现 http.Handler
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = g.HandleUpgrade(w, r)
}

// HandleUpgrade 处理升级请求
//
// 未匹配路由响应 404，请求头校验失败响应 401，连接数超限响应 503，升级失败响应 500。
func (g *Gateway) HandleUpgrade(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	if g.closed.Load() {
		return g.reject(w, ErrShuttingDown)
	}

	path := normalizePath(r.URL.Path)
	route, params, err := g.registry.Match(path)
	if err != nil {
		g.logger.DebugContext(ctx, "route not found", zap.String("path", path))
		return g.reject(w, ErrRouteNotFound)
	}

	if hh := route.Handler.HandleHeaders; hh != nil && !hh(ctx, r.Header) {
		g.logger.DebugContext(ctx, "headers rejected", zap.String("path", path))
		return g.reject(w, ErrHeaderRejected)
	}

	if !g.pool.Reserve() {
		g.logger.WarnContext(ctx, "too many connections", zap.Int("max", g.config.MaxConnections))
		return g.reject(w, ErrTooManyConnections)
	}

	// 握手期间持有读锁，Shutdown 取得写锁后不会再有新连接加入 wg
	g.upgradeMu.RLock()
	defer g.upgradeMu.RUnlock()
	if g.closed.Load() {
		g.pool.Release()
		return g.reject(w, ErrShuttingDown)
	}

	c := newConn(g, g.newID(), route, path, params, r)
	sock, err := g.transport.Upgrade(w, r, socketEvents{c})
	if err != nil {
		g.pool.Release()
		g.logger.WarnContext(ctx, "upgrade failed", zap.String("path", path), zap.Error(err))
		return g.reject(w, ErrUpgradeFailed.WithError(err))
	}
	c.socket = sock
	c.remoteAddr = sock.RemoteAddr()

	if err := g.pool.Add(c); err != nil {
		g.pool.Release()
		g.logger.ErrorContext(ctx, "register connection failed", zap.String("client_id", c.id), zap.Error(err))
		_ = sock.Close(CloseInternalError, "connection error")
		return err
	}

	g.wg.Add(1)
	go g.serve(c)
	return nil
}

func (g *Gateway) reject(w http.ResponseWriter, err error) error {
	status := xerrors.StatusOf(err)
	g.metrics.UpgradeRejected(status)

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	var e *xerrors.Error
	if xerrors.As(err, &e) {
		_ = json.NewEncoder(w).Encode(e)
	}
	return err
}

// serve 连接的事件循环
func (g *Gateway) serve(c *Conn) {
	defer g.wg.Done()
	defer close(c.done)

	ctx := logger.WithRoute(logger.WithClientID(context.Background(), c.id), c.route.Pattern)
	g.metrics.ConnectionOpened(c.route.Pattern)
	g.handleOpen(ctx, c)

	for {
		select {
		case ev := <-c.events:
			if ev.typ == EventClose {
				g.handleClose(ctx, c, ev.code, ev.reason)
				return
			}
			g.handleMessage(ctx, c, ev.msg)
		case <-c.drain:
			g.handleDrain(ctx, c)
		}
	}
}

// chain 返回路由的完整中间件链
func (g *Gateway) chain(route *Route) []*Middleware {
	if g.registry.Frozen() {
		return route.chain
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return mergeMiddlewares(g.middlewares, route.middlewares)
}

func (g *Gateway) handleOpen(ctx context.Context, c *Conn) {
	if !c.state.CompareAndSwap(stateConnecting, stateOpen) {
		// 握手期间已被关闭
		return
	}

	g.dispatch(ctx, c, EventOpen, func(ctx context.Context) error {
		ev := &Event{Type: EventOpen, Conn: c, Time: time.Now()}
		if err := runChain(ctx, g.chain(c.route), ev); err != nil {
			g.logger.InfoContext(ctx, "open rejected", zap.Error(err))
			g.metrics.MiddlewareRejected(c.route.Pattern, EventOpen)
			_ = c.Close(ClosePolicyViolation, "unauthorized")
			return nil
		}

		var err error
		if h := c.route.Handler.OnOpen; h != nil {
			err = h(ctx, c)
		}
		g.emit(ev)
		return err
	})
}

func (g *Gateway) handleMessage(ctx context.Context, c *Conn, msg Message) {
	if c.state.Load() != stateOpen {
		return
	}
	g.metrics.MessageReceived(c.route.Pattern, len(msg.Data))

	g.dispatch(ctx, c, EventMessage, func(ctx context.Context) error {
		ev := &Event{Type: EventMessage, Conn: c, Message: msg, Time: time.Now()}
		if err := runChain(ctx, g.chain(c.route), ev); err != nil {
			g.logger.DebugContext(ctx, "message dropped", zap.Error(err))
			g.metrics.MiddlewareRejected(c.route.Pattern, EventMessage)
			return nil
		}

		var err error
		if h := c.route.Handler.OnMessage; h != nil {
			err = h(ctx, c, msg)
		}
		g.emit(ev)
		return err
	})
}

func (g *Gateway) handleDrain(ctx context.Context, c *Conn) {
	if c.state.Load() != stateOpen {
		return
	}

	g.dispatch(ctx, c, EventDrain, func(ctx context.Context) error {
		n, err := g.queue.Flush(ctx, connTarget{c})
		g.metrics.QueueFlushed(n)
		g.emit(&Event{Type: EventDrain, Conn: c, Flushed: n, Time: time.Now()})
		return err
	})
}

func (g *Gateway) handleClose(ctx context.Context, c *Conn, code int, reason string) {
	c.state.Store(stateClosed)

	g.dispatch(ctx, c, EventClose, func(ctx context.Context) error {
		var err error
		if h := c.route.Handler.OnClose; h != nil {
			err = h(ctx, c, code, reason)
		}
		g.emit(&Event{Type: EventClose, Conn: c, Code: code, Reason: reason, Time: time.Now()})
		return err
	})

	g.broker.RemoveConn(c)
	g.pool.Remove(c.id)
	g.metrics.ConnectionClosed(c.route.Pattern, code)
	g.logger.DebugContext(ctx, "connection closed", zap.Int("code", code), zap.String("reason", reason))
}

// dispatch 执行单个事件，错误与 panic 只记录日志
func (g *Gateway) dispatch(ctx context.Context, c *Conn, typ EventType, fn func(ctx context.Context) error) {
	start := time.Now()
	ctx, span := g.tracer.Start(ctx, "ws."+string(typ),
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("ws.client_id", c.id),
			attribute.String("ws.route", c.route.Pattern),
		),
	)
	defer func() {
		if r := recover(); r != nil {
			err := ErrHandlerPanic.WithError(fmt.Errorf("%v", r))
			g.fail(ctx, c, typ, span, err, zap.Stack("stack"))
		}
		span.End()
		g.metrics.ObserveEvent(typ, time.Since(start))
	}()

	if err := fn(ctx); err != nil {
		g.fail(ctx, c, typ, span, err)
	}
}

func (g *Gateway) fail(ctx context.Context, c *Conn, typ EventType, span trace.Span, err error, fields ...zap.Field) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	g.metrics.HandlerFailed(c.route.Pattern, typ)

	fields = append([]zap.Field{
		zap.String("event", string(typ)),
		zap.String("path", c.path),
		zap.Error(err),
	}, fields...)
	g.logger.ErrorContext(ctx, "event handler failed", fields...)
}

func (g *Gateway) emit(ev *Event) {
	ev.Info = ev.Conn.Info()
	g.bus.Emit(*ev)
}

// Shutdown 以 1001 并发关闭所有连接，等待 close 事件处理完毕后关闭队列
func (g *Gateway) Shutdown(ctx context.Context) error {
	// 等待进行中的握手完成登记
	g.upgradeMu.Lock()
	first := g.closed.CompareAndSwap(false, true)
	g.upgradeMu.Unlock()
	if !first {
		return nil
	}

	eg, egCtx := errgroup.WithContext(ctx)
	g.pool.Range(func(c *Conn) bool {
		eg.Go(func() error {
			_ = c.Close(CloseGoingAway, "server shutdown")
			select {
			case <-c.Done():
				return nil
			case <-egCtx.Done():
				return egCtx.Err()
			}
		})
		return true
	})
	if err := eg.Wait(); err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	return g.queue.Close()
}
