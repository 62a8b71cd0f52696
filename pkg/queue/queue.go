package queue

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
)

// Target 可直接发送的连接
type Target interface {
	ClientID() string
	// Send 返回 nil 表示已接收，ErrBackpressure 表示缓冲已满，其他错误表示连接不可用
	Send(payload []byte, compress bool) error
	Close(code int, reason string) error
}

// Result 发送结果
type Result int

const (
	// Sent 已交给传输层
	Sent Result = iota
	// Queued 遇到背压，已持久化等待 drain 后重发
	Queued
	// Failed 连接错误或存储错误，消息未送达也未入队
	Failed
)

func (r Result) String() string {
	switch r {
	case Sent:
		return "sent"
	case Queued:
		return "queued"
	default:
		return "failed"
	}
}

// Queue 按客户端划分的持久化发送队列
type Queue struct {
	store  Store
	config *Config
	filter *clientFilter
	last   atomic.Int64 // 最近一次分配的时间戳
}

// New 创建队列，并用存储中已有的客户端预热过滤器
func New(ctx context.Context, store Store, opts ...Option) (*Queue, error) {
	if store == nil {
		return nil, errors.New("queue: store is required")
	}
	config := DefaultConfig()
	for _, opt := range opts {
		opt(config)
	}

	q := &Queue{
		store:  store,
		config: config,
		filter: newClientFilter(config.FilterCapacity, config.FilterFalsePositive),
	}

	ids, err := store.ClientIDs(ctx)
	if err != nil {
		return nil, storageErr("load client ids", err)
	}
	for _, id := range ids {
		q.filter.add(id)
	}
	return q, nil
}

// Send 直发一次，背压时入队
func (q *Queue) Send(ctx context.Context, t Target, payload []byte, compress bool) (Result, error) {
	clientID := t.ClientID()

	if q.config.StrictOrdering && q.filter.mayContain(clientID) {
		n, err := q.store.Count(ctx, clientID)
		if err != nil {
			return Failed, storageErr("count", err)
		}
		if n > 0 {
			return q.enqueue(ctx, clientID, payload, compress)
		}
	}

	err := t.Send(payload, compress)
	switch {
	case err == nil:
		return Sent, nil
	case errors.Is(err, ErrBackpressure):
		return q.enqueue(ctx, clientID, payload, compress)
	default:
		q.fail(ctx, t, err)
		return Failed, fmt.Errorf("%w: %w", ErrConnection, err)
	}
}

func (q *Queue) enqueue(ctx context.Context, clientID string, payload []byte, compress bool) (Result, error) {
	msg := &Message{
		ClientID:  clientID,
		Payload:   payload,
		Compress:  compress,
		CreatedAt: q.nextStamp(),
	}
	if err := q.store.Insert(ctx, msg); err != nil {
		return Failed, storageErr("insert", err)
	}
	q.filter.add(clientID)
	return Queued, nil
}

// Flush 按入队顺序重发积压消息
//
// 队列为空、再次遇到背压或出错时停止。消息只在发送成功后删除。
func (q *Queue) Flush(ctx context.Context, t Target) (int, error) {
	clientID := t.ClientID()
	if !q.filter.mayContain(clientID) {
		return 0, nil
	}

	sent := 0
	for {
		if err := ctx.Err(); err != nil {
			return sent, err
		}

		msg, err := q.store.Oldest(ctx, clientID)
		if errors.Is(err, ErrEmpty) {
			return sent, nil
		}
		if err != nil {
			return sent, storageErr("select oldest", err)
		}

		err = t.Send(msg.Payload, msg.Compress)
		switch {
		case err == nil:
		case errors.Is(err, ErrBackpressure):
			return sent, nil
		default:
			q.fail(ctx, t, err)
			return sent, fmt.Errorf("%w: %w", ErrConnection, err)
		}

		if err := q.store.Delete(ctx, clientID, msg.ID); err != nil {
			return sent, storageErr("delete", err)
		}
		sent++
	}
}

// Len 返回客户端待发送消息数
func (q *Queue) Len(ctx context.Context, clientID string) (int64, error) {
	if !q.filter.mayContain(clientID) {
		return 0, nil
	}
	n, err := q.store.Count(ctx, clientID)
	if err != nil {
		return 0, storageErr("count", err)
	}
	return n, nil
}

// Close 关闭底层存储
func (q *Queue) Close() error {
	return q.store.Close()
}

func (q *Queue) fail(ctx context.Context, t Target, cause error) {
	q.config.Logger.ErrorContext(ctx, "send failed, closing connection",
		zap.String("client_id", t.ClientID()),
		zap.Error(cause),
	)
	_ = t.Close(q.config.FatalCloseCode, "connection error")
}

// nextStamp 返回严格递增的 UnixNano 时间戳
func (q *Queue) nextStamp() int64 {
	for {
		last := q.last.Load()
		now := q.config.Now().UnixNano()
		if now <= last {
			now = last + 1
		}
		if q.last.CompareAndSwap(last, now) {
			return now
		}
	}
}
