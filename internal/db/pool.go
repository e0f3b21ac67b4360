// Package db is the Postgres side of the mention store: a gorm connection,
// the bootstrap migrations and the member queries the store backend calls.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/TMG-AI/tara-dashboard/internal/config"
)

const (
	defaultMaxConns = 8
	connMaxIdleTime = 5 * time.Minute
	connMaxLifetime = 30 * time.Minute
	appNameParam    = "application_name"
	appName         = "tara"
)

// Pool is the Postgres connection used by the mention store.
type Pool struct {
	gdb   *gorm.DB
	sqlDB *sql.DB
}

func NewPool(ctx context.Context, cfg *config.Config) (*Pool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	dsn := strings.TrimSpace(cfg.DatabaseURL)
	if dsn == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	gdb, err := gorm.Open(postgres.Open(withApplicationName(dsn)), &gorm.Config{
		Logger: logger.Default.LogMode(resolveGormLogLevel(cfg.LogLevel, cfg.Environment)),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("get gorm sql db: %w", err)
	}

	maxOpen := int(cfg.DBMaxConns)
	if maxOpen <= 0 {
		maxOpen = defaultMaxConns
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(max(1, min(int(cfg.DBMinConns), maxOpen)))
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	pool := &Pool{gdb: gdb, sqlDB: sqlDB}
	if err := pool.autoMigrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("auto-migrate schema: %w", err)
	}
	return pool, nil
}

// withApplicationName tags URL-form DSNs so sessions show up as tara in
// pg_stat_activity. Key/value DSNs and DSNs that already set it are unchanged.
func withApplicationName(dsn string) string {
	lower := strings.ToLower(dsn)
	if strings.Contains(lower, appNameParam+"=") {
		return dsn
	}
	if !strings.HasPrefix(lower, "postgres://") && !strings.HasPrefix(lower, "postgresql://") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + appNameParam + "=" + appName
}

func (p *Pool) ready() error {
	if p == nil || p.gdb == nil {
		return fmt.Errorf("database pool is not initialized")
	}
	return nil
}

// exec runs a statement and returns the affected row count.
func (p *Pool) exec(ctx context.Context, query string, args ...any) (int64, error) {
	if err := p.ready(); err != nil {
		return 0, err
	}
	res := p.gdb.WithContext(ctx).Exec(query, args...)
	return res.RowsAffected, res.Error
}

// scanRow scans the single row query returns into dest.
func (p *Pool) scanRow(ctx context.Context, query string, args []any, dest ...any) error {
	if err := p.ready(); err != nil {
		return err
	}
	return p.gdb.WithContext(ctx).Raw(query, args...).Row().Scan(dest...)
}

func (p *Pool) rows(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	return p.gdb.WithContext(ctx).Raw(query, args...).Rows()
}

func (p *Pool) Ping(ctx context.Context) error {
	if p == nil || p.sqlDB == nil {
		return fmt.Errorf("database pool is not initialized")
	}
	return p.sqlDB.PingContext(ctx)
}

func (p *Pool) Close() error {
	if p == nil || p.sqlDB == nil {
		return nil
	}
	return p.sqlDB.Close()
}

func resolveGormLogLevel(appLogLevel, environment string) logger.LogLevel {
	switch strings.ToLower(strings.TrimSpace(appLogLevel)) {
	case "trace", "debug":
		return logger.Info
	case "warn", "warning", "info", "":
		return logger.Warn
	case "error":
		return logger.Error
	case "silent":
		return logger.Silent
	default:
		if strings.EqualFold(strings.TrimSpace(environment), "local") {
			return logger.Warn
		}
		return logger.Error
	}
}
