package queue

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// clientFilter 记录曾经入队过的客户端
//
// 不存在误判为"没有"的情况，Flush 可以据此跳过对存储的查询。
type clientFilter struct {
	mu sync.RWMutex
	bf *bloom.BloomFilter
}

func newClientFilter(capacity uint, fp float64) *clientFilter {
	if capacity == 0 {
		capacity = 1024
	}
	if fp <= 0 || fp >= 1 {
		fp = 0.01
	}
	return &clientFilter{bf: bloom.NewWithEstimates(capacity, fp)}
}

func (f *clientFilter) add(clientID string) {
	f.mu.Lock()
	f.bf.AddString(clientID)
	f.mu.Unlock()
}

func (f *clientFilter) mayContain(clientID string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.bf.TestString(clientID)
}
