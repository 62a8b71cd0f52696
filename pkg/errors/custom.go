package errors

import "net/http"

/*
	内置错误码

	1xxx 通用
	2xxx 握手阶段（以 HTTP 状态码响应）
	3xxx 连接阶段
	4xxx 发送队列
	5xxx 限流计数
	6xxx 事件转发
*/

var (
	// ErrServer 服务器错误
	ErrServer = New(1000, "internal server error", http.StatusInternalServerError)
	// ErrBadRequest 请求错误
	ErrBadRequest = New(1001, "bad request", http.StatusBadRequest)
	// ErrUnauthorized 未授权
	ErrUnauthorized = New(1002, "unauthorized", http.StatusUnauthorized)
	// ErrNotFound 资源不存在
	ErrNotFound = New(1004, "not found", http.StatusNotFound)
	// ErrUnavailable 服务不可用
	ErrUnavailable = New(1005, "service unavailable", http.StatusServiceUnavailable)
)
