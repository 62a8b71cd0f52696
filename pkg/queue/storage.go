package queue

import "context"

// Message 等待重发的消息
type Message struct {
	ID        int64  // 存储分配的自增 ID，同一时间戳内按插入顺序递增
	ClientID  string // 客户端 ID
	Payload   []byte
	Compress  bool
	CreatedAt int64 // 入队时间（UnixNano），单个 Queue 内严格递增
}

// Store 持久化存储边界
//
// 每个方法都是一个独立事务。同一客户端的消息按 (CreatedAt, ID) 升序出队。
type Store interface {
	// Insert 写入消息并回填 ID
	Insert(ctx context.Context, msg *Message) error
	// Oldest 返回客户端最早的消息，没有时返回 ErrEmpty
	Oldest(ctx context.Context, clientID string) (*Message, error)
	// Delete 删除已成功发送的消息
	Delete(ctx context.Context, clientID string, id int64) error
	// Count 返回客户端待发送消息数
	Count(ctx context.Context, clientID string) (int64, error)
	// ClientIDs 返回所有存在待发送消息的客户端
	ClientIDs(ctx context.Context) ([]string, error)
	// Close 关闭存储
	Close() error
}
