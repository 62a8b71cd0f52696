package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error 带错误码的错误
type Error struct {
	Code     int    `json:"code"`    // 错误码
	Message  string `json:"message"` // 错误信息
	HttpCode int    `json:"-"`       // http状态码
	Err      error  `json:"-"`       // 原始错误
}

// Error 实现 error 接口
func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap 实现 errors.Unwrap 接口
func (e *Error) Unwrap() error {
	return e.Err
}

// New 创建新的错误
// code 错误码
// message 错误信息
// httpCode 可选http状态码，默认500
func New(code int, message string, httpCode ...int) *Error {
	hc := http.StatusInternalServerError
	if len(httpCode) > 0 {
		hc = httpCode[0]
	}
	return &Error{
		Code:     code,
		HttpCode: hc,
		Message:  message,
	}
}

// WithError 添加原始错误（返回新实例，不修改原错误）
func (e *Error) WithError(err error) *Error {
	return &Error{
		Code:     e.Code,
		HttpCode: e.HttpCode,
		Message:  e.Message,
		Err:      err,
	}
}

// WithMessage 替换错误信息（返回新实例，不修改原错误）
func (e *Error) WithMessage(message string) *Error {
	return &Error{
		Code:     e.Code,
		HttpCode: e.HttpCode,
		Message:  message,
		Err:      e.Err,
	}
}

// WithMessagef 格式化错误信息
func (e *Error) WithMessagef(format string, args ...any) *Error {
	return e.WithMessage(fmt.Sprintf(format, args...))
}

// Is 当 target 也是 *Error 时比较 Code
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// StatusOf 返回错误对应的 http 状态码，非 *Error 返回 500
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.HttpCode
	}
	return http.StatusInternalServerError
}

// CodeOf 返回错误码，非 *Error 返回 ErrServer 的错误码
func CodeOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrServer.Code
}

// As 同标准库 errors.As
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Is 同标准库 errors.Is
func Is(err error, target error) bool {
	return errors.Is(err, target)
}
