package ws

import (
	"net/http"
)

// Socket 传输层的一条已升级连接
type Socket interface {
	// Send 非阻塞发送。缓冲已满返回 ErrBackpressure，连接不可用返回其他错误
	Send(payload []byte, compress bool) error
	// Close 发起关闭握手，可重复调用
	Close(code int, reason string) error
	// Cork 在 fn 内的多次 Send 合并为一批写出
	Cork(fn func())
	// RemoteAddr 对端地址
	RemoteAddr() string
}

// SocketHandler 传输层回调
//
// 实现方保证：OnMessage 按到达顺序调用，OnClose 恰好调用一次且在最后一次 OnMessage 之后。
type SocketHandler interface {
	OnMessage(msg Message)
	OnDrain()
	OnClose(code int, reason string)
}

// Transport 负责协议升级
type Transport interface {
	// Upgrade 升级成功后开始投递回调；失败时不得写出 HTTP 响应
	Upgrade(w http.ResponseWriter, r *http.Request, h SocketHandler) (Socket, error)
}
