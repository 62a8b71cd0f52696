package cache

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count   int64
	expires time.Time
}

// memoryCounter 进程内计数器，后台定期清理过期窗口
type memoryCounter struct {
	mu        sync.Mutex
	keyPrefix string
	windows   map[string]*window
	now       func() time.Time

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func newMemoryCounter(cfg *Config) *memoryCounter {
	interval := time.Minute
	if cfg.Memory != nil && cfg.Memory.CleanupInterval > 0 {
		interval = cfg.Memory.CleanupInterval
	}

	m := &memoryCounter{
		keyPrefix: cfg.KeyPrefix,
		windows:   make(map[string]*window),
		now:       time.Now,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go m.janitor(interval)
	return m
}

// Incr 计数加一
func (m *memoryCounter) Incr(ctx context.Context, key string, win time.Duration) (int64, error) {
	select {
	case <-m.stop:
		return 0, ErrCacheClosed
	default:
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	fullKey := m.keyPrefix + key
	w, ok := m.windows[fullKey]
	if !ok || !now.Before(w.expires) {
		w = &window{expires: now.Add(win)}
		m.windows[fullKey] = w
	}
	w.count++
	return w.count, nil
}

// Reset 清除计数
func (m *memoryCounter) Reset(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.windows, m.keyPrefix+key)
	m.mu.Unlock()
	return nil
}

// Ping 内存实现始终可用
func (m *memoryCounter) Ping(ctx context.Context) error {
	return nil
}

// Close 停止清理协程
func (m *memoryCounter) Close() error {
	m.once.Do(func() {
		close(m.stop)
		<-m.done
	})
	return nil
}

func (m *memoryCounter) janitor(interval time.Duration) {
	defer close(m.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.evict()
		}
	}
}

func (m *memoryCounter) evict() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for k, w := range m.windows {
		if !now.Before(w.expires) {
			delete(m.windows, k)
		}
	}
}
