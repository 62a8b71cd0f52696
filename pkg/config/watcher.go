package config

import (
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"
)

// startWatch 调用方持有 mu
func (l *Loader) startWatch() {
	l.viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}

		l.mu.RLock()
		watching := l.watching
		onChange := l.onChange
		l.mu.RUnlock()
		if !watching {
			return
		}

		// viper 已在回调前重新读取文件
		if onChange == nil {
			return
		}
		if err := onChange(l); err != nil {
			l.reportError(fmt.Errorf("reload %s: %w", e.Name, err))
		}
	})
	l.viper.WatchConfig()
	l.watching = true
}

// StartWatch 开始监控配置文件，重复调用无副作用
func (l *Loader) StartWatch() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.watching {
		return nil
	}
	if l.viper.ConfigFileUsed() == "" {
		return fmt.Errorf("%w: load before watching", ErrConfigNotFound)
	}
	l.startWatch()
	return nil
}

// StopWatch 停止回调
//
// viper 没有停止底层 fsnotify watcher 的方法，这里只让回调失效。
func (l *Loader) StopWatch() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.watching = false
}

// Watching 是否正在监控
func (l *Loader) Watching() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.watching
}

// reportError 优先交给 onError，否则输出到 stderr
func (l *Loader) reportError(err error) {
	l.mu.RLock()
	onError := l.onError
	l.mu.RUnlock()

	if onError != nil {
		onError(err)
		return
	}
	fmt.Fprintf(os.Stderr, "[config] %v\n", err)
}

// OnChange 设置文件变更回调，可在 Load 之后调用
func (l *Loader) OnChange(fn func(*Loader) error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = fn
}
