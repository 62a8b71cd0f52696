package queue

import (
	"errors"
	"fmt"
)

var (
	// ErrBackpressure 传输层发送缓冲已满，连接仍然可用
	ErrBackpressure = errors.New("queue: backpressure")
	// ErrConnection 传输层拒绝发送，连接已不可用
	ErrConnection = errors.New("queue: connection error")
	// ErrQueue 持久化存储操作失败
	ErrQueue = errors.New("queue: storage error")
	// ErrEmpty 客户端没有待发送的消息
	ErrEmpty = errors.New("queue: empty")
	// ErrStoreClosed 存储已关闭
	ErrStoreClosed = errors.New("queue: store closed")
)

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrQueue, op, err)
}
