package ws

import (
	"time"

	"github.com/tokmz/wsgate/pkg/queue"
)

// Metrics 监控接口
type Metrics interface {
	// 连接指标
	ConnectionOpened(route string)
	ConnectionClosed(route string, code int)
	UpgradeRejected(status int)

	// 事件指标
	MessageReceived(route string, size int)
	MiddlewareRejected(route string, event EventType)
	HandlerFailed(route string, event EventType)
	ObserveEvent(event EventType, d time.Duration)

	// 发送指标
	SendCompleted(result queue.Result)
	QueueFlushed(n int)
	PublishDropped(route string) // 按订阅者所在路由统计，主题名不作为标签
}

// NoopMetrics 空实现（默认）
type NoopMetrics struct{}

func (NoopMetrics) ConnectionOpened(string)               {}
func (NoopMetrics) ConnectionClosed(string, int)          {}
func (NoopMetrics) UpgradeRejected(int)                   {}
func (NoopMetrics) MessageReceived(string, int)           {}
func (NoopMetrics) MiddlewareRejected(string, EventType)  {}
func (NoopMetrics) HandlerFailed(string, EventType)       {}
func (NoopMetrics) ObserveEvent(EventType, time.Duration) {}
func (NoopMetrics) SendCompleted(queue.Result)            {}
func (NoopMetrics) QueueFlushed(int)                      {}
func (NoopMetrics) PublishDropped(string)                 {}
