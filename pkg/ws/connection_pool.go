package ws

import (
	"sync"
	"sync/atomic"
)

// ConnectionPool 连接池
//
// 握手前先 Reserve 占位，升级成功后 Add，占位数受 maxConns 限制。
type ConnectionPool struct {
	conns    sync.Map     // clientID -> *Conn
	count    atomic.Int64 // 已加入的连接
	reserved atomic.Int64 // 占位数（含握手中）
	maxConns int
}

// NewConnectionPool 创建连接池
func NewConnectionPool(maxConns int) *ConnectionPool {
	return &ConnectionPool{
		maxConns: maxConns,
	}
}

// Reserve 占位，超过上限返回 false
func (p *ConnectionPool) Reserve() bool {
	if int(p.reserved.Add(1)) > p.maxConns {
		p.reserved.Add(-1)
		return false
	}
	return true
}

// Release 释放未使用的占位
func (p *ConnectionPool) Release() {
	p.reserved.Add(-1)
}

// Add 加入已占位的连接
func (p *ConnectionPool) Add(c *Conn) error {
	if _, loaded := p.conns.LoadOrStore(c.id, c); loaded {
		return ErrClientIDExists
	}
	p.count.Add(1)
	return nil
}

// Remove 移除连接并释放占位
func (p *ConnectionPool) Remove(clientID string) bool {
	if _, loaded := p.conns.LoadAndDelete(clientID); loaded {
		p.count.Add(-1)
		p.reserved.Add(-1)
		return true
	}
	return false
}

// Get 获取连接
func (p *ConnectionPool) Get(clientID string) (*Conn, bool) {
	value, ok := p.conns.Load(clientID)
	if !ok {
		return nil, false
	}
	c, ok := value.(*Conn)
	return c, ok
}

// Count 已加入的连接数
func (p *ConnectionPool) Count() int {
	return int(p.count.Load())
}

// Pending 握手中的连接数
func (p *ConnectionPool) Pending() int {
	return int(p.reserved.Load() - p.count.Load())
}

// Range 遍历所有连接
func (p *ConnectionPool) Range(f func(*Conn) bool) {
	p.conns.Range(func(_, value any) bool {
		c, ok := value.(*Conn)
		if !ok {
			return true
		}
		return f(c)
	})
}
