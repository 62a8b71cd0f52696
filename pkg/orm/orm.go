package orm

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/driver/sqlserver"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/dbresolver"

	"github.com/tokmz/wsgate/pkg/logger"
)

// New 打开数据库
func New(cfg *Config, log logger.Logger) (*gorm.DB, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}

	dialector, err := getDialector(cfg.Type, cfg.DSN)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.New(printfWriter{log}, gormlogger.Config{
			SlowThreshold:             cfg.SlowThreshold,
			LogLevel:                  gormlogger.LogLevel(cfg.LogLevel),
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("orm: connect %s: %w", cfg.Type, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("orm: get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if cfg.Type == SQLite && !cfg.DisableWAL {
		if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
			return nil, fmt.Errorf("orm: enable wal: %w", err)
		}
	}

	if cfg.ReadWriteSplit != nil {
		if err := setupReadWriteSplit(db, cfg); err != nil {
			return nil, fmt.Errorf("orm: read-write split: %w", err)
		}
	}

	if cfg.Tracing {
		if err := db.Use(NewTracingPlugin()); err != nil {
			return nil, fmt.Errorf("orm: tracing plugin: %w", err)
		}
	}

	log.Debug("database opened", zap.String("type", string(cfg.Type)))
	return db, nil
}

func getDialector(dbType DBType, dsn string) (gorm.Dialector, error) {
	switch dbType {
	case MySQL:
		return mysql.Open(dsn), nil
	case PostgreSQL:
		return postgres.Open(dsn), nil
	case SQLite:
		return sqlite.Open(dsn), nil
	case SQLServer:
		return sqlserver.Open(dsn), nil
	default:
		return nil, fmt.Errorf("orm: unsupported database type %q", dbType)
	}
}

// printfWriter 将 GORM 日志转到 zap
type printfWriter struct {
	log logger.Logger
}

func (w printfWriter) Printf(format string, args ...any) {
	w.log.Info(fmt.Sprintf(format, args...), zap.String("component", "gorm"))
}

func setupReadWriteSplit(db *gorm.DB, cfg *Config) error {
	replicas := make([]gorm.Dialector, 0, len(cfg.ReadWriteSplit.Sources))
	for _, dsn := range cfg.ReadWriteSplit.Sources {
		dialector, err := getDialector(cfg.Type, dsn)
		if err != nil {
			return err
		}
		replicas = append(replicas, dialector)
	}

	var policy dbresolver.Policy = dbresolver.RandomPolicy{}
	if cfg.ReadWriteSplit.Policy == "round_robin" {
		policy = dbresolver.RoundRobinPolicy()
	}

	return db.Use(dbresolver.Register(dbresolver.Config{
		Replicas: replicas,
		Policy:   policy,
	}).
		SetMaxIdleConns(cfg.MaxIdleConns).
		SetMaxOpenConns(cfg.MaxOpenConns).
		SetConnMaxLifetime(cfg.ConnMaxLifetime).
		SetConnMaxIdleTime(cfg.ConnMaxIdleTime))
}
