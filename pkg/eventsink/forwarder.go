package eventsink

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/tokmz/wsgate/pkg/logger"
	"github.com/tokmz/wsgate/pkg/ws"
)

// Source 可注册事件监听器的对象，*ws.Gateway 与 *ws.EventBus 都满足
type Source interface {
	On(eventType ws.EventType, handler ws.EventHandler) ws.ListenerID
}

// Forwarder 把生命周期事件异步转发给 Publisher
//
// 事件监听器在连接的事件协程中同步执行，这里只负责入队，
// 由固定数量的 worker 调用 Publisher。队列满时 open/close 最多等待 EnqueueTimeout，
// 其他事件直接丢弃。
type Forwarder struct {
	config *Config
	pub    Publisher
	logger logger.Logger

	tasks   chan Envelope
	stopCh  chan struct{}
	wg      sync.WaitGroup
	closed  atomic.Bool
	dropped atomic.Int64
	failed  atomic.Int64
}

// NewForwarder 创建并启动 worker
func NewForwarder(cfg *Config, pub Publisher, log logger.Logger) (*Forwarder, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}

	f := &Forwarder{
		config: cfg,
		pub:    pub,
		logger: log.With(zap.String("component", "eventsink")),
		tasks:  make(chan Envelope, cfg.QueueSize),
		stopCh: make(chan struct{}),
	}
	for i := 0; i < cfg.Workers; i++ {
		f.wg.Add(1)
		go f.worker()
	}
	return f, nil
}

// Attach 在 src 上注册需要转发的事件
func (f *Forwarder) Attach(src Source) {
	events := f.config.Events
	if len(events) == 0 {
		events = []ws.EventType{ws.EventOpen, ws.EventClose}
	}
	for _, t := range slices.Compact(slices.Sorted(slices.Values(events))) {
		src.On(t, f.Handle)
	}
}

// Handle 事件监听器
func (f *Forwarder) Handle(ev ws.Event) {
	if f.closed.Load() {
		f.dropped.Add(1)
		return
	}
	env := NewEnvelope(ev, f.config.IncludePayload)

	if ev.Type == ws.EventOpen || ev.Type == ws.EventClose {
		timer := time.NewTimer(f.config.EnqueueTimeout)
		defer timer.Stop()
		select {
		case f.tasks <- env:
		case <-timer.C:
			f.dropped.Add(1)
		}
		return
	}

	select {
	case f.tasks <- env:
	default:
		f.dropped.Add(1)
	}
}

func (f *Forwarder) worker() {
	defer f.wg.Done()
	for {
		select {
		case env := <-f.tasks:
			f.publish(env)
		case <-f.stopCh:
			// 发完已入队的事件再退出
			for {
				select {
				case env := <-f.tasks:
					f.publish(env)
				default:
					return
				}
			}
		}
	}
}

func (f *Forwarder) publish(env Envelope) {
	ctx, cancel := context.WithTimeout(context.Background(), f.config.PublishTimeout)
	defer cancel()

	if err := f.pub.Publish(ctx, env); err != nil {
		f.failed.Add(1)
		f.logger.Warn("forward event failed",
			zap.String("event", string(env.Type)),
			zap.String("client_id", env.ClientID),
			zap.Error(err),
		)
	}
}

// Dropped 因队列满或已关闭而丢弃的事件数
func (f *Forwarder) Dropped() int64 {
	return f.dropped.Load()
}

// Failed 发布失败的事件数
func (f *Forwarder) Failed() int64 {
	return f.failed.Load()
}

// Close 停止 worker 并关闭 Publisher，可重复调用
func (f *Forwarder) Close() error {
	if !f.closed.CompareAndSwap(false, true) {
		return nil
	}
	// 不关闭 tasks，避免与并发的 Handle 竞争
	close(f.stopCh)
	f.wg.Wait()
	return f.pub.Close()
}
