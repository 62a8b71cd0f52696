package wsgate

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tokmz/wsgate/pkg/logger"
	"github.com/tokmz/wsgate/pkg/tracing"
	"github.com/tokmz/wsgate/pkg/ws"
)

// Engine 承载网关的 HTTP 服务
//
// 未匹配到管理端点的请求全部交给网关处理升级。
type Engine struct {
	config  *Config
	engine  *gin.Engine
	gateway *ws.Gateway
	logger  logger.Logger

	mu     sync.Mutex
	server *http.Server
}

// New 创建 Engine，使用 Options 模式配置
func New(gw *ws.Gateway, opts ...Option) *Engine {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(config)
	}
	if config.Logger == nil {
		config.Logger = logger.Nop()
	}
	if config.Gatherer == nil {
		config.Gatherer = prometheus.DefaultGatherer
	}

	// gin.SetMode 是全局操作，建议进程内只创建一个 Engine
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}
	silenceGin()

	ginEngine := gin.New()
	ginEngine.Use(gin.Recovery())
	if config.TrustedProxies != nil {
		if err := ginEngine.SetTrustedProxies(config.TrustedProxies); err != nil {
			config.Logger.Warn("set trusted proxies failed", zap.Error(err))
		}
	}
	if config.Tracing {
		ginEngine.Use(tracing.GinMiddleware(tracing.WithFilter(func(c *gin.Context) bool {
			return c.FullPath() != joinAdminPath(config.Admin.Prefix, "/healthz")
		})))
	}
	ginEngine.Use(logger.GinMiddleware(config.Logger))

	e := &Engine{
		config:  config,
		engine:  ginEngine,
		gateway: gw,
		logger:  config.Logger,
	}
	if config.Admin.Enabled {
		e.registerAdmin()
	}
	ginEngine.NoRoute(gin.WrapH(gw))
	return e
}

// Gateway 返回承载的网关
func (e *Engine) Gateway() *ws.Gateway {
	return e.gateway
}

// Group 在 HTTP 引擎上追加普通路由
func (e *Engine) Group(path string) *gin.RouterGroup {
	return e.engine.Group(path)
}

// Handler 返回 http.Handler，便于测试或嵌入其他服务器
func (e *Engine) Handler() http.Handler {
	return e.engine
}

// Run 监听地址并阻塞到收到 SIGINT/SIGTERM，随后优雅关机
func (e *Engine) Run(addr ...string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return e.RunContext(ctx, addr...)
}

// RunContext 与 Run 相同，ctx 结束时关机
func (e *Engine) RunContext(ctx context.Context, addr ...string) error {
	address := e.config.Server.Addr
	if len(addr) > 0 && addr[0] != "" {
		address = addr[0]
	}
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}
	return e.Serve(ctx, ln)
}

// Serve 在 ln 上提供服务，冻结网关路由后开始接受连接
func (e *Engine) Serve(ctx context.Context, ln net.Listener) error {
	e.gateway.Freeze()

	server := &http.Server{
		Handler:           e.engine,
		ReadHeaderTimeout: e.config.Server.ReadHeaderTimeout,
		IdleTimeout:       e.config.Server.IdleTimeout,
		MaxHeaderBytes:    e.config.Server.MaxHeaderBytes,
	}
	e.mu.Lock()
	e.server = server
	e.mu.Unlock()

	if e.config.Banner {
		e.printBanner(ln.Addr().String())
	}
	e.logger.Info("gateway listening", zap.String("addr", ln.Addr().String()))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-egCtx.Done()
		e.logger.Info("shutting down gateway")
		sctx, cancel := context.WithTimeout(context.Background(), e.config.Shutdown.Timeout)
		defer cancel()
		return e.Shutdown(sctx)
	})
	return eg.Wait()
}

// Shutdown 停止接受新请求，以 1001 关闭所有连接，等待 close 事件处理完毕
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	server := e.server
	e.mu.Unlock()

	if e.config.Shutdown.BeforeShutdown != nil {
		e.config.Shutdown.BeforeShutdown()
	}

	var errs []error
	if server != nil {
		// 已升级的连接不归 http.Server 管理，由网关关闭
		if err := server.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := e.gateway.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}

	if e.config.Shutdown.AfterShutdown != nil {
		e.config.Shutdown.AfterShutdown()
	}

	err := errors.Join(errs...)
	if err != nil {
		e.logger.Error("gateway shutdown incomplete", zap.Error(err))
	} else {
		e.logger.Info("gateway stopped")
	}
	return err
}
