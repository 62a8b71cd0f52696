package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tokmz/wsgate"
	"github.com/tokmz/wsgate/middleware"
	"github.com/tokmz/wsgate/pkg/cache"
	"github.com/tokmz/wsgate/pkg/config"
	"github.com/tokmz/wsgate/pkg/eventsink"
	"github.com/tokmz/wsgate/pkg/logger"
	"github.com/tokmz/wsgate/pkg/orm"
	"github.com/tokmz/wsgate/pkg/queue"
	"github.com/tokmz/wsgate/pkg/queue/storage"
	"github.com/tokmz/wsgate/pkg/tracing"
	"github.com/tokmz/wsgate/pkg/ws"
)

func main() {
	path := flag.String("config", "example/config.yaml", "settings file")
	flag.Parse()

	if err := run(*path); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(path string) error {
	loader := config.New(
		config.WithConfigFile(path),
		config.WithEnvPrefix("WSGATE"),
	)
	defer loader.Close()
	if err := loader.Load(); err != nil {
		return err
	}

	settings := DefaultSettings()
	if err := loader.Unmarshal(settings); err != nil {
		return err
	}

	log, err := newLogger(settings.Log)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if dump, err := config.Dump(settings); err == nil {
		log.Debug("effective settings", zap.String("file", loader.ConfigFileUsed()), zap.ByteString("yaml", dump))
	}
	watchLogLevel(loader, log)

	tp, err := tracing.NewTracerProvider(&settings.Tracing)
	if err != nil {
		return err
	}

	ctx := context.Background()
	store, err := newStore(ctx, settings.Queue, log)
	if err != nil {
		return err
	}
	q, err := queue.New(ctx, store,
		queue.WithStrictOrdering(settings.Queue.StrictOrdering),
		queue.WithFatalCloseCode(ws.CloseInternalError),
		queue.WithLogger(log),
	)
	if err != nil {
		_ = store.Close()
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := ws.NewPrometheusMetrics(reg, settings.Gateway.MetricsNamespace)
	if err != nil {
		return err
	}

	gw, err := ws.New(
		ws.WithMaxConnections(settings.Gateway.MaxConnections),
		ws.WithStrictPatterns(settings.Gateway.StrictPatterns),
		ws.WithEventQueueSize(settings.Gateway.EventQueueSize),
		ws.WithTransportConfig(settings.Gateway.Transport),
		ws.WithQueue(q),
		ws.WithLogger(log),
		ws.WithMetrics(metrics),
		ws.WithTracerProvider(tp),
	)
	if err != nil {
		return err
	}

	counter, err := cache.New(&settings.RateLimit.Counter)
	if err != nil {
		return err
	}

	pub, err := eventsink.NewPublisher(&settings.EventSink)
	if err != nil {
		return err
	}
	forwarder, err := eventsink.NewForwarder(&settings.EventSink, pub, log)
	if err != nil {
		_ = pub.Close()
		return err
	}
	forwarder.Attach(gw)

	global := []*ws.Middleware{
		middleware.Logger(log),
		middleware.Tracing(),
	}
	if settings.Throttle.Enabled {
		global = append(global, middleware.Throttle(rate.Limit(settings.Throttle.Rate), settings.Throttle.Burst))
	}
	if err := gw.Use(global...); err != nil {
		return err
	}
	if err := registerModules(gw, settings, counter, log); err != nil {
		return err
	}

	engine := wsgate.New(gw,
		wsgate.WithConfig(settings.Engine),
		wsgate.WithLogger(log),
		wsgate.WithGatherer(reg),
		wsgate.WithAfterShutdown(func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			err := errors.Join(forwarder.Close(), counter.Close(), tracing.Shutdown(sctx))
			if err != nil {
				log.Error("release resources failed", zap.Error(err))
			}
		}),
	)
	return engine.Run()
}

func newLogger(s LogSettings) (logger.Logger, error) {
	level, err := logger.ParseLevel(s.Level)
	if err != nil {
		return nil, err
	}
	cfg := &logger.Config{
		Level:   level,
		Format:  logger.Format(s.Format),
		Console: s.Console,
		Rotate:  s.Rotate,
	}
	return logger.New(cfg)
}

// watchLogLevel 配置文件变化时重新应用日志级别
func watchLogLevel(loader *config.Loader, log logger.Logger) {
	loader.OnChange(func(l *config.Loader) error {
		level, err := logger.ParseLevel(l.GetString("log.level"))
		if err != nil {
			return err
		}
		log.SetLevel(level)
		log.Info("log level reloaded", zap.String("level", level.String()))
		return nil
	})
	if err := loader.StartWatch(); err != nil {
		log.Warn("config watch disabled", zap.Error(err))
	}
}

func newStore(ctx context.Context, s QueueSettings, log logger.Logger) (queue.Store, error) {
	switch s.Store {
	case "memory":
		return storage.NewMemoryStore(), nil
	case "redis":
		rc := s.Redis
		if rc == nil {
			rc = cache.DefaultRedisConfig()
		}
		client, err := cache.NewRedisClient(ctx, rc)
		if err != nil {
			return nil, err
		}
		return storage.NewRedisStore(client, storage.WithKeyPrefix(s.KeyPrefix), storage.WithOwnedClient()), nil
	case "gorm", "":
		db, err := orm.New(&s.Database, log)
		if err != nil {
			return nil, err
		}
		store, err := storage.NewGormStore(db, storage.WithTableName(s.Table))
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown queue store %q", s.Store)
	}
}
