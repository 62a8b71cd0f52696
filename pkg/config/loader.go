package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/goccy/go-yaml"
	"github.com/spf13/viper"
)

// DefaultEnvPrefix 环境变量前缀，WSGATE_SERVER_ADDR 覆盖 server.addr
const DefaultEnvPrefix = "WSGATE"

// Loader 配置加载器
//
// 读取 yaml 配置文件，环境变量覆盖文件中的同名键，
// 开启监控后文件变更会重新读取并回调。
type Loader struct {
	viper *viper.Viper
	mu    sync.RWMutex

	configFile  string
	configName  string
	configType  string
	configPaths []string

	envPrefix string
	defaults  map[string]any

	autoWatch bool
	watching  bool
	onChange  func(*Loader) error
	onError   func(error)
}

// New 创建配置加载器
func New(opts ...Option) *Loader {
	l := &Loader{
		viper:      viper.New(),
		configType: "yaml",
		envPrefix:  DefaultEnvPrefix,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load 读取配置文件
func (l *Loader) Load() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for k, v := range l.defaults {
		l.viper.SetDefault(k, v)
	}
	if l.envPrefix != "" {
		l.viper.SetEnvPrefix(l.envPrefix)
		l.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		l.viper.AutomaticEnv()
	}

	if l.configFile != "" {
		l.viper.SetConfigFile(l.configFile)
	} else {
		l.viper.SetConfigName(l.configName)
		l.viper.SetConfigType(l.configType)
		for _, p := range l.configPaths {
			l.viper.AddConfigPath(p)
		}
	}

	if err := l.viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return fmt.Errorf("%w: %w", ErrConfigNotFound, err)
		}
		return fmt.Errorf("%w: %w", ErrConfigReadFailed, err)
	}

	if l.autoWatch {
		l.startWatch()
	}
	return nil
}

// Unmarshal 解码到结构体，结构体需使用 mapstructure 标签
//
// out 中已有的值作为默认值，文件与环境变量中出现的键覆盖它们。
func (l *Loader) Unmarshal(out any) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if err := l.viper.Unmarshal(out); err != nil {
		return fmt.Errorf("%w: %w", ErrConfigDecode, err)
	}
	return nil
}

// UnmarshalKey 解码指定键
func (l *Loader) UnmarshalKey(key string, out any) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if err := l.viper.UnmarshalKey(key, out); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrConfigDecode, key, err)
	}
	return nil
}

// GetString 读取字符串
func (l *Loader) GetString(key string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.viper.GetString(key)
}

// IsSet 键是否存在
func (l *Loader) IsSet(key string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.viper.IsSet(key)
}

// Set 覆盖配置值
func (l *Loader) Set(key string, value any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.viper.Set(key, value)
}

// ConfigFileUsed 实际读取的配置文件
func (l *Loader) ConfigFileUsed() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.viper.ConfigFileUsed()
}

// Close 停止监控
func (l *Loader) Close() {
	l.StopWatch()
}

// Dump 以 yaml 输出结构体，用于启动时打印生效的配置
func Dump(v any) ([]byte, error) {
	return yaml.MarshalWithOptions(v, yaml.Indent(2), yaml.UseLiteralStyleIfMultiline(true))
}
