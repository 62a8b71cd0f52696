package cache

import "github.com/tokmz/wsgate/pkg/errors"

// 预定义错误
var (
	ErrCacheConnection    = errors.New(5001, "cache connection failed")
	ErrCacheInvalidConfig = errors.New(5002, "cache invalid config")
	ErrCacheOperation     = errors.New(5003, "cache operation failed")
	ErrCacheClosed        = errors.New(5004, "cache closed")
)
