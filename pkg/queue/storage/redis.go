package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/redis/go-redis/v9"

	"github.com/tokmz/wsgate/pkg/queue"
)

// DefaultKeyPrefix 默认键前缀
const DefaultKeyPrefix = "wsgate:queue:"

// RedisStore 基于 Redis 的持久化存储
//
// 每个客户端一个 ZSET，所有成员分数为 0，成员为定长的 "created_at:id"，
// 按字典序即按 (CreatedAt, ID) 升序。消息体存放在独立的 HASH 中。
// 同一客户端的键使用相同的 hash tag，集群模式下事务不会跨 slot。
// 有积压的客户端另记在一个 SET 中，供重启后 ClientIDs 使用。
type RedisStore struct {
	client    redis.UniversalClient
	prefix    string
	ownClient bool
	closed    atomic.Bool
}

// RedisOption Redis 存储选项
type RedisOption func(*RedisStore)

// WithKeyPrefix 设置键前缀
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithOwnedClient Close 时一并关闭 Redis 客户端
func WithOwnedClient() RedisOption {
	return func(s *RedisStore) {
		s.ownClient = true
	}
}

// NewRedisStore 创建 Redis 存储
func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client: client,
		prefix: DefaultKeyPrefix,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) seqKey() string     { return s.prefix + "seq" }
func (s *RedisStore) clientsKey() string { return s.prefix + "clients" }

func (s *RedisStore) queueKey(clientID string) string {
	return s.prefix + "q:{" + clientID + "}"
}

func (s *RedisStore) msgKey(clientID string, id int64) string {
	return s.prefix + "m:{" + clientID + "}:" + strconv.FormatInt(id, 10)
}

func member(createdAt, id int64) string {
	return fmt.Sprintf("%020d:%020d", createdAt, id)
}

func parseMember(m string) (createdAt, id int64, err error) {
	ts, rawID, ok := strings.Cut(m, ":")
	if !ok {
		return 0, 0, fmt.Errorf("queue storage: malformed member %q", m)
	}
	if createdAt, err = strconv.ParseInt(ts, 10, 64); err != nil {
		return 0, 0, err
	}
	if id, err = strconv.ParseInt(rawID, 10, 64); err != nil {
		return 0, 0, err
	}
	return createdAt, id, nil
}

// Insert 写入消息
func (s *RedisStore) Insert(ctx context.Context, msg *queue.Message) error {
	if s.closed.Load() {
		return queue.ErrStoreClosed
	}

	id, err := s.client.Incr(ctx, s.seqKey()).Result()
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.msgKey(msg.ClientID, id), map[string]any{
			"client_id":  msg.ClientID,
			"payload":    msg.Payload,
			"compress":   msg.Compress,
			"created_at": msg.CreatedAt,
		})
		pipe.ZAdd(ctx, s.queueKey(msg.ClientID), redis.Z{Score: 0, Member: member(msg.CreatedAt, id)})
		return nil
	})
	if err != nil {
		return err
	}
	msg.ID = id
	// 必须在 ZAdd 之后，untrack 依赖这个顺序
	return s.client.SAdd(ctx, s.clientsKey(), msg.ClientID).Err()
}

// Oldest 返回最早的消息
func (s *RedisStore) Oldest(ctx context.Context, clientID string) (*queue.Message, error) {
	if s.closed.Load() {
		return nil, queue.ErrStoreClosed
	}

	members, err := s.client.ZRange(ctx, s.queueKey(clientID), 0, 0).Result()
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, queue.ErrEmpty
	}
	createdAt, id, err := parseMember(members[0])
	if err != nil {
		return nil, err
	}

	fields, err := s.client.HGetAll(ctx, s.msgKey(clientID, id)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("queue storage: message %d missing body", id)
	}

	return &queue.Message{
		ID:        id,
		ClientID:  clientID,
		Payload:   []byte(fields["payload"]),
		Compress:  fields["compress"] == "1",
		CreatedAt: createdAt,
	}, nil
}

// Delete 删除消息
func (s *RedisStore) Delete(ctx context.Context, clientID string, id int64) error {
	if s.closed.Load() {
		return queue.ErrStoreClosed
	}

	raw, err := s.client.HGet(ctx, s.msgKey(clientID, id), "created_at").Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}
	createdAt, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return err
	}

	var remaining *redis.IntCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, s.queueKey(clientID), member(createdAt, id))
		pipe.Del(ctx, s.msgKey(clientID, id))
		remaining = pipe.ZCard(ctx, s.queueKey(clientID))
		return nil
	})
	if err != nil {
		return err
	}
	if remaining.Val() > 0 {
		return nil
	}
	return s.untrack(ctx, clientID)
}

// untrack 把清空的客户端移出索引
//
// 索引与客户端队列不在同一 slot，无法放进同一个事务。SRem 之后再读一次 ZCARD，
// 并发 Insert 已写入时补回索引；之后才写入的 Insert 会在 ZAdd 后自行 SAdd。
func (s *RedisStore) untrack(ctx context.Context, clientID string) error {
	if err := s.client.SRem(ctx, s.clientsKey(), clientID).Err(); err != nil {
		return err
	}
	n, err := s.client.ZCard(ctx, s.queueKey(clientID)).Result()
	if err != nil {
		return err
	}
	if n > 0 {
		return s.client.SAdd(ctx, s.clientsKey(), clientID).Err()
	}
	return nil
}

// Count 返回待发送消息数
func (s *RedisStore) Count(ctx context.Context, clientID string) (int64, error) {
	if s.closed.Load() {
		return 0, queue.ErrStoreClosed
	}
	return s.client.ZCard(ctx, s.queueKey(clientID)).Result()
}

// ClientIDs 返回存在积压的客户端
func (s *RedisStore) ClientIDs(ctx context.Context) ([]string, error) {
	if s.closed.Load() {
		return nil, queue.ErrStoreClosed
	}
	ids, err := s.client.SMembers(ctx, s.clientsKey()).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

// Close 关闭存储
func (s *RedisStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if s.ownClient {
		return s.client.Close()
	}
	return nil
}
