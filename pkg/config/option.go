package config

// Option 配置选项函数
type Option func(*Loader)

// WithConfigFile 指定配置文件完整路径
func WithConfigFile(path string) Option {
	return func(l *Loader) {
		l.configFile = path
	}
}

// WithConfigName 配置文件名（不含扩展名）
func WithConfigName(name string) Option {
	return func(l *Loader) {
		l.configName = name
	}
}

// WithConfigType 配置文件类型（默认 yaml）
func WithConfigType(typ string) Option {
	return func(l *Loader) {
		l.configType = typ
	}
}

// WithConfigPaths 配置文件搜索路径
func WithConfigPaths(paths ...string) Option {
	return func(l *Loader) {
		l.configPaths = paths
	}
}

// WithDefaults 默认配置值
func WithDefaults(defaults map[string]any) Option {
	return func(l *Loader) {
		l.defaults = defaults
	}
}

// WithEnvPrefix 环境变量前缀（默认 WSGATE），为空时不读取环境变量
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// WithAutoWatch Load 成功后自动开启文件监控
func WithAutoWatch(watch bool) Option {
	return func(l *Loader) {
		l.autoWatch = watch
	}
}

// WithOnChange 配置文件变更并重新读取后回调，返回的错误交给 onError
func WithOnChange(fn func(*Loader) error) Option {
	return func(l *Loader) {
		l.onChange = fn
	}
}

// WithOnError 监控过程中的错误回调
func WithOnError(fn func(error)) Option {
	return func(l *Loader) {
		l.onError = fn
	}
}
