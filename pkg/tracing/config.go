package tracing

import (
	"io"
	"time"
)

// 导出器类型
const (
	ExporterOTLP     = "otlp" // OTLP over HTTP
	ExporterOTLPGRPC = "otlp_grpc"
	ExporterStdout   = "stdout"
	ExporterNoop     = "noop"
)

// Config 链路追踪配置
type Config struct {
	// 服务名称（必填）
	ServiceName    string `mapstructure:"service_name" yaml:"service_name"`
	ServiceVersion string `mapstructure:"service_version" yaml:"service_version"`
	// 环境（dev/staging/prod）
	Environment string `mapstructure:"environment" yaml:"environment"`

	// 导出器类型（otlp/otlp_grpc/stdout/noop）
	ExporterType string `mapstructure:"exporter_type" yaml:"exporter_type"`
	// 导出器端点，为空时读取 OTEL_EXPORTER_OTLP_ENDPOINT
	ExporterEndpoint string            `mapstructure:"exporter_endpoint" yaml:"exporter_endpoint"`
	ExporterHeaders  map[string]string `mapstructure:"exporter_headers" yaml:"exporter_headers"`
	// 是否使用非 TLS 连接
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// 采样率（0.0-1.0）
	SamplingRate float64 `mapstructure:"sampling_rate" yaml:"sampling_rate"`
	// 采样类型（always/never/ratio/parent_based）
	SamplingType string `mapstructure:"sampling_type" yaml:"sampling_type"`

	Enabled            bool              `mapstructure:"enabled" yaml:"enabled"`
	ResourceAttributes map[string]string `mapstructure:"resource_attributes" yaml:"resource_attributes"`

	BatchTimeout       time.Duration `mapstructure:"batch_timeout" yaml:"batch_timeout"`
	MaxExportBatchSize int           `mapstructure:"max_export_batch_size" yaml:"max_export_batch_size"`
	MaxQueueSize       int           `mapstructure:"max_queue_size" yaml:"max_queue_size"`

	// StdoutWriter stdout 导出器的输出，默认 os.Stdout
	StdoutWriter io.Writer `mapstructure:"-" yaml:"-"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		ServiceName:        "wsgate",
		ServiceVersion:     "1.0.0",
		Environment:        "development",
		ExporterType:       ExporterNoop,
		SamplingRate:       1.0,
		SamplingType:       "parent_based",
		Enabled:            true,
		ResourceAttributes: make(map[string]string),
		BatchTimeout:       5 * time.Second,
		MaxExportBatchSize: 512,
		MaxQueueSize:       2048,
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return ErrInvalidConfig("service name is required")
	}
	if c.SamplingRate < 0 || c.SamplingRate > 1 {
		return ErrInvalidConfig("sampling rate must be between 0.0 and 1.0")
	}
	switch c.ExporterType {
	case ExporterOTLP, ExporterOTLPGRPC, ExporterStdout, ExporterNoop:
	default:
		return ErrInvalidConfig("invalid exporter type: " + c.ExporterType)
	}
	return nil
}

// ConfigError 配置错误
type ConfigError struct {
	message string
}

func (e *ConfigError) Error() string {
	return "tracing config error: " + e.message
}

// ErrInvalidConfig 构造配置错误
func ErrInvalidConfig(message string) error {
	return &ConfigError{message: message}
}
