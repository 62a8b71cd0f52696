package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"
)

// Level 日志级别
type Level int8

const (
	// DebugLevel 调试信息
	DebugLevel Level = iota - 1
	// InfoLevel 常规信息（默认级别）
	InfoLevel
	// WarnLevel 警告信息
	WarnLevel
	// ErrorLevel 错误信息
	ErrorLevel
	// DPanicLevel 开发环境 panic
	DPanicLevel
	// PanicLevel 记录后 panic
	PanicLevel
	// FatalLevel 记录后退出程序
	FatalLevel
)

// String 返回级别名称
func (l Level) String() string {
	return l.toZapLevel().String()
}

// ParseLevel 解析配置文件中的级别名称
func ParseLevel(s string) (Level, error) {
	if strings.TrimSpace(s) == "" {
		return InfoLevel, nil
	}
	zl, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return InfoLevel, fmt.Errorf("logger: unknown level %q", s)
	}
	return fromZapLevel(zl), nil
}

func (l Level) toZapLevel() zapcore.Level {
	return zapcore.Level(l)
}

func fromZapLevel(level zapcore.Level) Level {
	return Level(level)
}
