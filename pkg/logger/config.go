package logger

import "go.uber.org/zap/zapcore"

// Format 编码格式
type Format string

const (
	JSONFormat    Format = "json"
	ConsoleFormat Format = "console"
)

// IsValid 是否为支持的格式
func (f Format) IsValid() bool {
	return f == JSONFormat || f == ConsoleFormat
}

// Config 日志配置
//
// 未配置任何输出时写到控制台。网关进程通常只开一个 Rotate 输出，
// 连接数很大时用 Sampling 限制 message 级别的日志量。
type Config struct {
	Level  Level  // 默认 InfoLevel
	Format Format // 默认 json

	Console bool
	File    string
	Rotate  *RotateConfig

	Sampling *SamplingConfig

	DisableCaller     bool
	DisableStacktrace bool // Error 及以上默认带堆栈

	EncoderConfig *zapcore.EncoderConfig
	Hooks         []Hook
}

func (c *Config) setDefaults() {
	if c.Format == "" {
		c.Format = JSONFormat
	}
	if !c.Console && c.File == "" && c.Rotate == nil {
		c.Console = true
	}
	if c.Sampling != nil {
		c.Sampling.setDefaults()
	}
}

// SamplingConfig 每秒前 Initial 条全部记录，之后每 Thereafter 条记录一条
type SamplingConfig struct {
	Initial    int
	Thereafter int
}

func (s *SamplingConfig) setDefaults() {
	if s.Initial == 0 {
		s.Initial = 100
	}
	if s.Thereafter == 0 {
		s.Thereafter = 100
	}
}

// Option 配置选项
type Option func(*Config)

func WithLevel(level Level) Option {
	return func(c *Config) { c.Level = level }
}

func WithFormat(format Format) Option {
	return func(c *Config) { c.Format = format }
}

func WithConsoleOutput() Option {
	return func(c *Config) { c.Console = true }
}

func WithFileOutput(filename string) Option {
	return func(c *Config) { c.File = filename }
}

// WithRotateOutput 按大小轮转的文件输出
func WithRotateOutput(rc *RotateConfig) Option {
	return func(c *Config) { c.Rotate = rc }
}

func WithSampling(sc *SamplingConfig) Option {
	return func(c *Config) { c.Sampling = sc }
}

func WithCaller(enable bool) Option {
	return func(c *Config) { c.DisableCaller = !enable }
}

func WithStacktrace(enable bool) Option {
	return func(c *Config) { c.DisableStacktrace = !enable }
}

// WithHook 追加 Hook，测试中用来捕获日志
func WithHook(hook Hook) Option {
	return func(c *Config) { c.Hooks = append(c.Hooks, hook) }
}
