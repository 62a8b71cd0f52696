package ws

import (
	"sync"
	"sync/atomic"
	"time"
)

// EventType 生命周期事件类型
type EventType string

const (
	EventOpen    EventType = "open"
	EventMessage EventType = "message"
	EventClose   EventType = "close"
	EventDrain   EventType = "drain"
)

// Event 生命周期事件
type Event struct {
	Type EventType
	Conn *Conn
	// Info 发出事件时的连接快照
	Info ConnInfo

	Message Message // message
	Code    int     // close
	Reason  string  // close
	Flushed int     // drain：本次重发成功的消息数

	Time time.Time
}

// EventHandler 事件监听器
type EventHandler func(Event)

// ListenerID 监听器标识，用于 Off
type ListenerID uint64

type listener struct {
	id ListenerID
	fn EventHandler
}

// EventBus 进程内事件总线
//
// Emit 在调用方协程中按注册顺序同步调用监听器，单个监听器 panic 不影响其他监听器。
type EventBus struct {
	mu        sync.RWMutex
	listeners map[EventType][]listener
	nextID    atomic.Uint64
	panics    atomic.Int64
	onPanic   func(EventType, any)
}

// NewEventBus 创建事件总线
func NewEventBus() *EventBus {
	return &EventBus{
		listeners: make(map[EventType][]listener),
	}
}

// On 注册监听器
func (eb *EventBus) On(eventType EventType, handler EventHandler) ListenerID {
	id := ListenerID(eb.nextID.Add(1))
	eb.mu.Lock()
	eb.listeners[eventType] = append(eb.listeners[eventType], listener{id: id, fn: handler})
	eb.mu.Unlock()
	return id
}

// Off 移除监听器
func (eb *EventBus) Off(eventType EventType, id ListenerID) bool {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	list := eb.listeners[eventType]
	for i, l := range list {
		if l.id == id {
			// 拷贝，避免影响正在进行的 Emit
			next := make([]listener, 0, len(list)-1)
			next = append(next, list[:i]...)
			next = append(next, list[i+1:]...)
			eb.listeners[eventType] = next
			return true
		}
	}
	return false
}

// Emit 发布事件
func (eb *EventBus) Emit(ev Event) {
	eb.mu.RLock()
	list := eb.listeners[ev.Type]
	eb.mu.RUnlock()

	for _, l := range list {
		eb.call(l.fn, ev)
	}
}

// Count 监听器数量
func (eb *EventBus) Count(eventType EventType) int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.listeners[eventType])
}

// PanicCount 监听器 panic 次数
func (eb *EventBus) PanicCount() int64 {
	return eb.panics.Load()
}

func (eb *EventBus) call(fn EventHandler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			eb.panics.Add(1)
			if eb.onPanic != nil {
				eb.onPanic(ev.Type, r)
			}
		}
	}()
	fn(ev)
}
