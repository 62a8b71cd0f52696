package ws

import (
	"errors"

	xerrors "github.com/tokmz/wsgate/pkg/errors"
	"github.com/tokmz/wsgate/pkg/queue"
)

// 握手阶段错误，直接以 HTTP 状态码响应
var (
	ErrRouteNotFound      = xerrors.New(2001, "route not found", 404)
	ErrHeaderRejected     = xerrors.New(2002, "unauthorized", 401)
	ErrUpgradeFailed      = xerrors.New(2003, "upgrade failed", 500)
	ErrTooManyConnections = xerrors.New(2004, "too many connections", 503)
)

// 连接阶段错误
var (
	// ErrMiddlewareRejected 中间件拒绝了事件
	ErrMiddlewareRejected = xerrors.New(3001, "middleware rejected")
	// ErrHandlerPanic 处理器发生 panic
	ErrHandlerPanic = xerrors.New(3002, "handler panic")
)

// 发送相关错误，与队列共用同一组哨兵值
var (
	ErrBackpressure = queue.ErrBackpressure
	ErrConnection   = queue.ErrConnection
	ErrQueue        = queue.ErrQueue
)

var (
	ErrConnectionClosed = errors.New("ws: connection closed")
	ErrClientIDExists   = errors.New("ws: client id already exists")
	ErrRegistryFrozen   = errors.New("ws: registry is frozen")
	ErrDuplicatePattern = errors.New("ws: duplicate route pattern")
	ErrInvalidPattern   = errors.New("ws: invalid route pattern")
	ErrInvalidConfig    = errors.New("ws: invalid config")
)
