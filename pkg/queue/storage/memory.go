package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/tokmz/wsgate/pkg/queue"
)

// MemoryStore 进程内存储，进程退出后数据丢失，用于测试与单机开发
type MemoryStore struct {
	mu     sync.Mutex
	seq    int64
	rows   map[string][]*queue.Message // clientID -> 按 (CreatedAt, ID) 升序
	closed bool
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rows: make(map[string][]*queue.Message),
	}
}

// Insert 写入消息
func (s *MemoryStore) Insert(ctx context.Context, msg *queue.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return queue.ErrStoreClosed
	}

	s.seq++
	msg.ID = s.seq
	row := clone(msg)

	list := s.rows[msg.ClientID]
	i := sort.Search(len(list), func(i int) bool {
		return list[i].CreatedAt > row.CreatedAt
	})
	list = append(list, nil)
	copy(list[i+1:], list[i:])
	list[i] = row
	s.rows[msg.ClientID] = list
	return nil
}

// Oldest 返回最早的消息
func (s *MemoryStore) Oldest(ctx context.Context, clientID string) (*queue.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, queue.ErrStoreClosed
	}

	list := s.rows[clientID]
	if len(list) == 0 {
		return nil, queue.ErrEmpty
	}
	return clone(list[0]), nil
}

// Delete 删除消息
func (s *MemoryStore) Delete(ctx context.Context, clientID string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return queue.ErrStoreClosed
	}

	list := s.rows[clientID]
	for i, row := range list {
		if row.ID == id {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(s.rows, clientID)
	} else {
		s.rows[clientID] = list
	}
	return nil
}

// Count 返回待发送消息数
func (s *MemoryStore) Count(ctx context.Context, clientID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, queue.ErrStoreClosed
	}
	return int64(len(s.rows[clientID])), nil
}

// ClientIDs 返回存在积压的客户端
func (s *MemoryStore) ClientIDs(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, queue.ErrStoreClosed
	}

	ids := make([]string, 0, len(s.rows))
	for id := range s.rows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Close 关闭存储
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func clone(m *queue.Message) *queue.Message {
	c := *m
	c.Payload = append([]byte(nil), m.Payload...)
	return &c
}
