package ws

import (
	"slices"
	"sync"
)

// BroadcastTopic 约定的广播主题，需要广播的路由自行订阅
const BroadcastTopic = "broadcast"

// Broker 主题发布订阅
//
// 投递最多一次，不重试：订阅者发送缓冲已满或连接不可用时直接丢弃。
type Broker struct {
	mu      sync.RWMutex
	topics  map[string]map[*Conn]struct{}
	byConn  map[*Conn]map[string]struct{}
	metrics Metrics
}

// NewBroker 创建主题管理器
func NewBroker(metrics Metrics) *Broker {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	return &Broker{
		topics:  make(map[string]map[*Conn]struct{}),
		byConn:  make(map[*Conn]map[string]struct{}),
		metrics: metrics,
	}
}

// Subscribe 订阅，已订阅时返回 false
func (b *Broker) Subscribe(c *Conn, topic string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.topics[topic]
	if !ok {
		subs = make(map[*Conn]struct{})
		b.topics[topic] = subs
	}
	if _, ok := subs[c]; ok {
		return false
	}
	subs[c] = struct{}{}

	own, ok := b.byConn[c]
	if !ok {
		own = make(map[string]struct{})
		b.byConn[c] = own
	}
	own[topic] = struct{}{}
	return true
}

// Unsubscribe 取消订阅，未订阅时返回 false
func (b *Broker) Unsubscribe(c *Conn, topic string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.unsubscribeLocked(c, topic)
}

func (b *Broker) unsubscribeLocked(c *Conn, topic string) bool {
	subs, ok := b.topics[topic]
	if !ok {
		return false
	}
	if _, ok := subs[c]; !ok {
		return false
	}
	delete(subs, c)
	if len(subs) == 0 {
		delete(b.topics, topic)
	}

	if own, ok := b.byConn[c]; ok {
		delete(own, topic)
		if len(own) == 0 {
			delete(b.byConn, c)
		}
	}
	return true
}

// IsSubscribed 是否已订阅
func (b *Broker) IsSubscribed(c *Conn, topic string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.topics[topic][c]
	return ok
}

// TopicsOf 连接已订阅的主题（排序后）
func (b *Broker) TopicsOf(c *Conn) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.byConn[c]))
	for t := range b.byConn[c] {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// RemoveConn 取消连接的全部订阅
func (b *Broker) RemoveConn(c *Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for topic := range b.byConn[c] {
		b.unsubscribeLocked(c, topic)
	}
}

// Publish 向主题的订阅者投递，exclude 不为空时跳过该连接，返回送达数
func (b *Broker) Publish(topic string, payload []byte, compress bool, exclude *Conn) int {
	b.mu.RLock()
	subs := make([]*Conn, 0, len(b.topics[topic]))
	for c := range b.topics[topic] {
		if c != exclude {
			subs = append(subs, c)
		}
	}
	b.mu.RUnlock()

	delivered := 0
	for _, c := range subs {
		if c.IsClosed() {
			continue
		}
		if err := c.socket.Send(payload, compress); err != nil {
			b.metrics.PublishDropped(c.route.Pattern)
			continue
		}
		delivered++
	}
	return delivered
}

// Subscribers 主题订阅者数量
func (b *Broker) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

// TopicCount 当前有订阅者的主题数
func (b *Broker) TopicCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics)
}
