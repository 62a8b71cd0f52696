package eventsink

import (
	"encoding/json"
	"time"

	"github.com/tokmz/wsgate/pkg/ws"
)

// Envelope 转发到消息中间件的事件
type Envelope struct {
	Type       ws.EventType      `json:"type"`
	ClientID   string            `json:"client_id"`
	Path       string            `json:"path"`
	Pattern    string            `json:"pattern"`
	Query      map[string]string `json:"query,omitempty"`
	Params     map[string]string `json:"params,omitempty"`
	RemoteAddr string            `json:"remote_addr,omitempty"`
	Code       int               `json:"code,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	Size       int               `json:"size,omitempty"`
	Binary     bool              `json:"binary,omitempty"`
	Payload    []byte            `json:"payload,omitempty"`
	Flushed    int               `json:"flushed,omitempty"`
	Time       time.Time         `json:"time"`
}

// NewEnvelope 由生命周期事件构造，includePayload 为 false 时只记录消息大小
func NewEnvelope(ev ws.Event, includePayload bool) Envelope {
	env := Envelope{
		Type:       ev.Type,
		ClientID:   ev.Info.ID,
		Path:       ev.Info.Path,
		Pattern:    ev.Info.Pattern,
		Query:      ev.Info.Query,
		Params:     ev.Info.Params,
		RemoteAddr: ev.Info.RemoteAddr,
		Code:       ev.Code,
		Reason:     ev.Reason,
		Flushed:    ev.Flushed,
		Time:       ev.Time,
	}
	if ev.Type == ws.EventMessage {
		env.Size = len(ev.Message.Data)
		env.Binary = ev.Message.IsBinary()
		if includePayload {
			env.Payload = ev.Message.Data
		}
	}
	return env
}

// Key 分区键，同一客户端的事件落在同一分区
func (e Envelope) Key() string {
	return e.ClientID
}

// RoutingKey 形如 wsgate.open
func (e Envelope) RoutingKey(prefix string) string {
	if prefix == "" {
		return string(e.Type)
	}
	return prefix + "." + string(e.Type)
}

// Encode JSON 编码
func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}
