package wsgate

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

// Response 管理端点的统一响应结构
type Response struct {
	Code    int    `json:"code"`               // 业务状态码
	Data    any    `json:"data"`               // 响应数据
	Message string `json:"message"`            // 响应消息
	TraceID string `json:"trace_id,omitempty"` // 追踪ID（可选）
}

// Success 创建成功响应
func Success(data any) *Response {
	return &Response{Code: http.StatusOK, Data: data, Message: "success"}
}

// Fail 创建失败响应
func Fail(code int, message string) *Response {
	return &Response{Code: code, Message: message}
}

// respond 写出响应，存在 Span 时附带 trace_id
func respond(c *gin.Context, status int, resp *Response) {
	if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
		resp.TraceID = sc.TraceID().String()
	}
	c.JSON(status, resp)
}
