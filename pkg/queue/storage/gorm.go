package storage

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"gorm.io/gorm"
	"gorm.io/plugin/dbresolver"

	"github.com/tokmz/wsgate/pkg/queue"
)

// DefaultTableName 默认表名
const DefaultTableName = "ws_queued_messages"

// MessageModel 积压消息数据模型
type MessageModel struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	ClientID  string `gorm:"size:64;not null;index:idx_client_created,priority:1"`
	Payload   []byte `gorm:"not null"`
	Compress  bool   `gorm:"not null;default:false"`
	CreatedAt int64  `gorm:"not null;autoCreateTime:false;index:idx_client_created,priority:2"`
}

// TableName 默认表名
func (MessageModel) TableName() string {
	return DefaultTableName
}

// GormStore 基于 GORM 的持久化存储
type GormStore struct {
	db     *gorm.DB
	table  string
	closed atomic.Bool
}

// GormOption GORM 存储选项
type GormOption func(*GormStore)

// WithTableName 设置表名
func WithTableName(name string) GormOption {
	return func(s *GormStore) {
		if name != "" {
			s.table = name
		}
	}
}

// NewGormStore 创建 GORM 存储并迁移表结构
func NewGormStore(db *gorm.DB, opts ...GormOption) (*GormStore, error) {
	s := &GormStore{
		db:    db,
		table: DefaultTableName,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := db.Table(s.table).AutoMigrate(&MessageModel{}); err != nil {
		return nil, fmt.Errorf("queue storage: migrate %s: %w", s.table, err)
	}
	return s, nil
}

func (s *GormStore) scope(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Table(s.table)
}

// primary 读主库，删除后立即可见
func (s *GormStore) primary(ctx context.Context) *gorm.DB {
	return s.scope(ctx).Clauses(dbresolver.Write)
}

// Insert 写入消息
func (s *GormStore) Insert(ctx context.Context, msg *queue.Message) error {
	if s.closed.Load() {
		return queue.ErrStoreClosed
	}

	row := MessageModel{
		ClientID:  msg.ClientID,
		Payload:   msg.Payload,
		Compress:  msg.Compress,
		CreatedAt: msg.CreatedAt,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Table(s.table).Create(&row).Error
	})
	if err != nil {
		return err
	}
	msg.ID = row.ID
	return nil
}

// Oldest 返回最早的消息
func (s *GormStore) Oldest(ctx context.Context, clientID string) (*queue.Message, error) {
	if s.closed.Load() {
		return nil, queue.ErrStoreClosed
	}

	var row MessageModel
	err := s.primary(ctx).
		Where("client_id = ?", clientID).
		Order("created_at ASC").
		Order("id ASC").
		Limit(1).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, queue.ErrEmpty
	}
	if err != nil {
		return nil, err
	}

	return &queue.Message{
		ID:        row.ID,
		ClientID:  row.ClientID,
		Payload:   row.Payload,
		Compress:  row.Compress,
		CreatedAt: row.CreatedAt,
	}, nil
}

// Delete 删除消息
func (s *GormStore) Delete(ctx context.Context, clientID string, id int64) error {
	if s.closed.Load() {
		return queue.ErrStoreClosed
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Table(s.table).
			Where("id = ? AND client_id = ?", id, clientID).
			Delete(&MessageModel{}).Error
	})
}

// Count 返回待发送消息数
func (s *GormStore) Count(ctx context.Context, clientID string) (int64, error) {
	if s.closed.Load() {
		return 0, queue.ErrStoreClosed
	}

	var n int64
	err := s.primary(ctx).Where("client_id = ?", clientID).Count(&n).Error
	return n, err
}

// ClientIDs 返回存在积压的客户端
func (s *GormStore) ClientIDs(ctx context.Context) ([]string, error) {
	if s.closed.Load() {
		return nil, queue.ErrStoreClosed
	}

	var ids []string
	err := s.scope(ctx).Distinct("client_id").Order("client_id").Pluck("client_id", &ids).Error
	return ids, err
}

// Close 关闭存储，同时关闭底层连接池
func (s *GormStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
