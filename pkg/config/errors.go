package config

import "github.com/tokmz/wsgate/pkg/errors"

// 预定义错误
var (
	ErrConfigNotFound   = errors.New(1101, "config file not found")
	ErrConfigReadFailed = errors.New(1102, "config read failed")
	ErrConfigDecode     = errors.New(1103, "config decode failed")
)
