package ws

import (
	"unicode/utf8"

	"github.com/gorilla/websocket"
)

// MessageType 帧类型
type MessageType int

const (
	TextMessage   MessageType = websocket.TextMessage
	BinaryMessage MessageType = websocket.BinaryMessage
)

func (t MessageType) String() string {
	if t == BinaryMessage {
		return "binary"
	}
	return "text"
}

// Message 收到的一帧数据
type Message struct {
	Type MessageType
	Data []byte
}

// Text 以字符串返回数据
func (m Message) Text() string {
	return string(m.Data)
}

// IsBinary 是否为二进制帧
func (m Message) IsBinary() bool {
	return m.Type == BinaryMessage
}

// frameType 发送时根据内容选择帧类型
func frameType(payload []byte) MessageType {
	if utf8.Valid(payload) {
		return TextMessage
	}
	return BinaryMessage
}
