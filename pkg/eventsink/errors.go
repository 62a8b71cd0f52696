package eventsink

import "github.com/tokmz/wsgate/pkg/errors"

// 预定义错误
var (
	ErrInvalidConfig = errors.New(6001, "event sink invalid config")
	ErrPublish       = errors.New(6002, "event sink publish failed")
	ErrClosed        = errors.New(6003, "event sink closed")
)
