package orm

import (
	"fmt"
	"time"
)

// DBType 数据库类型
type DBType string

const (
	MySQL      DBType = "mysql"
	PostgreSQL DBType = "postgres"
	SQLite     DBType = "sqlite"
	SQLServer  DBType = "sqlserver"
)

// Config 队列数据库配置
type Config struct {
	Type DBType `mapstructure:"type" yaml:"type"`
	DSN  string `mapstructure:"dsn" yaml:"dsn"`

	// 连接池
	MaxIdleConns    int           `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" yaml:"conn_max_idle_time"`

	// SQLite 使用 WAL 日志模式（默认开启）
	DisableWAL bool `mapstructure:"disable_wal" yaml:"disable_wal"`

	// 日志
	LogLevel      int           `mapstructure:"log_level" yaml:"log_level"` // 1:Silent 2:Error 3:Warn 4:Info
	SlowThreshold time.Duration `mapstructure:"slow_threshold" yaml:"slow_threshold"`

	// 为每条 SQL 创建 span
	Tracing bool `mapstructure:"tracing" yaml:"tracing"`

	// 读写分离（可选）
	ReadWriteSplit *ReadWriteSplitConfig `mapstructure:"read_write_split" yaml:"read_write_split,omitempty"`
}

// ReadWriteSplitConfig 读写分离配置
type ReadWriteSplitConfig struct {
	Sources []string `mapstructure:"sources" yaml:"sources"` // 只读副本 DSN
	Policy  string   `mapstructure:"policy" yaml:"policy"`   // random, round_robin
}

// DefaultConfig 返回默认配置（本地 SQLite 文件）
func DefaultConfig() *Config {
	return &Config{
		Type:            SQLite,
		DSN:             "wsgate-queue.db",
		MaxIdleConns:    4,
		MaxOpenConns:    16,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 10 * time.Minute,
		LogLevel:        2,
		SlowThreshold:   200 * time.Millisecond,
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.DSN == "" {
		return fmt.Errorf("orm: dsn is required")
	}
	switch c.Type {
	case MySQL, PostgreSQL, SQLite, SQLServer:
	default:
		return fmt.Errorf("orm: unsupported database type %q", c.Type)
	}
	if c.ReadWriteSplit != nil && len(c.ReadWriteSplit.Sources) == 0 {
		return fmt.Errorf("orm: read_write_split requires at least one source")
	}
	return nil
}
