package config

import (
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testYAML = `
server:
  addr: ":8080"
  shutdown_timeout: 5s
gateway:
  max_connections: 100
  allowed_origins:
    - https://example.com
`

type settings struct {
	Server struct {
		Addr            string        `mapstructure:"addr" yaml:"addr"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	} `mapstructure:"server" yaml:"server"`
	Gateway struct {
		MaxConnections int      `mapstructure:"max_connections" yaml:"max_connections"`
		EventQueueSize int      `mapstructure:"event_queue_size" yaml:"event_queue_size"`
		AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	} `mapstructure:"gateway" yaml:"gateway"`
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wsgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAndUnmarshal(t *testing.T) {
	l := New(WithConfigFile(writeConfig(t, testYAML)))
	require.NoError(t, l.Load())

	var s settings
	s.Gateway.EventQueueSize = 64
	require.NoError(t, l.Unmarshal(&s))

	assert.Equal(t, ":8080", s.Server.Addr)
	assert.Equal(t, 5*time.Second, s.Server.ShutdownTimeout)
	assert.Equal(t, 100, s.Gateway.MaxConnections)
	assert.Equal(t, 64, s.Gateway.EventQueueSize)
	assert.Equal(t, []string{"https://example.com"}, s.Gateway.AllowedOrigins)
	assert.True(t, l.IsSet("gateway.max_connections"))
}

func TestLoadByNameAndPaths(t *testing.T) {
	path := writeConfig(t, testYAML)
	l := New(WithConfigName("wsgate"), WithConfigPaths(filepath.Dir(path)))
	require.NoError(t, l.Load())
	assert.Equal(t, path, l.ConfigFileUsed())
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("WSGATE_SERVER_ADDR", ":9999")
	t.Setenv("APP_SERVER_ADDR", ":7777")

	l := New(WithConfigFile(writeConfig(t, testYAML)))
	require.NoError(t, l.Load())
	assert.Equal(t, ":9999", l.GetString("server.addr"))

	custom := New(WithConfigFile(writeConfig(t, testYAML)), WithEnvPrefix("APP"))
	require.NoError(t, custom.Load())
	assert.Equal(t, ":7777", custom.GetString("server.addr"))
}

func TestDefaults(t *testing.T) {
	l := New(
		WithConfigFile(writeConfig(t, testYAML)),
		WithDefaults(map[string]any{"gateway.event_queue_size": 32}),
	)
	require.NoError(t, l.Load())

	var s settings
	require.NoError(t, l.UnmarshalKey("gateway", &s.Gateway))
	assert.Equal(t, 32, s.Gateway.EventQueueSize)
}

func TestLoadErrors(t *testing.T) {
	t.Run("not found by name", func(t *testing.T) {
		l := New(WithConfigName("missing"), WithConfigPaths(t.TempDir()))
		assert.ErrorIs(t, l.Load(), ErrConfigNotFound)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		l := New(WithConfigFile(writeConfig(t, "server: [unclosed")))
		assert.ErrorIs(t, l.Load(), ErrConfigReadFailed)
	})

	t.Run("watch before load", func(t *testing.T) {
		assert.ErrorIs(t, New().StartWatch(), ErrConfigNotFound)
	})
}

func TestDump(t *testing.T) {
	var s settings
	s.Server.Addr = ":8080"
	s.Gateway.AllowedOrigins = []string{"*"}

	out, err := Dump(s)
	require.NoError(t, err)
	assert.Contains(t, string(out), "addr:")
	assert.Contains(t, string(out), "8080")
	assert.Contains(t, string(out), "allowed_origins:")
}

func TestWatch(t *testing.T) {
	path := writeConfig(t, testYAML)

	var (
		addr    atomic.Value
		reports atomic.Int32
	)
	l := New(
		WithConfigFile(path),
		WithAutoWatch(true),
		WithOnChange(func(l *Loader) error {
			addr.Store(l.GetString("server.addr"))
			return errors.New("rejected")
		}),
		WithOnError(func(error) { reports.Add(1) }),
	)
	require.NoError(t, l.Load())
	t.Cleanup(l.Close)
	assert.True(t, l.Watching())

	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \":9090\"\n"), 0o644))
	assert.Eventually(t, func() bool {
		v, _ := addr.Load().(string)
		return v == ":9090" && reports.Load() > 0
	}, 3*time.Second, 20*time.Millisecond)

	l.StopWatch()
	assert.False(t, l.Watching())
}
