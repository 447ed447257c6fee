package platform

import (
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DBPoolConfig holds the connection pool-sizing knobs shared across every
// table this repo's components own.
type DBPoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func defaultPoolConfig() DBPoolConfig {
	return DBPoolConfig{MaxOpenConns: 25, MaxIdleConns: 5, ConnMaxLifetime: 5 * time.Minute}
}

// OpenPostgres opens a GORM connection against dsn and applies pool limits.
func OpenPostgres(dsn string, logger *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormZapLogger{logger}.toGormLogger(),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	pool := defaultPoolConfig()
	sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// RunMigrations applies every migration under migrationsDir against dsn.
// golang-migrate owns schema evolution for this repo's tables; GORM's
// AutoMigrate is reserved for local dev-mode bootstrap only.
func RunMigrations(dsn, migrationsDir string) error {
	m, err := migrate.New("file://"+migrationsDir, dsn)
	if err != nil {
		return fmt.Errorf("failed to initialize migrator: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// gormZapLogger adapts this repo's zap logger to GORM's logger.Interface at
// a conservative default (warn-and-above, slow-query threshold) so SQL
// tracing doesn't drown out application logs in production.
type gormZapLogger struct{ z *zap.Logger }

func (g gormZapLogger) toGormLogger() gormlogger.Interface {
	return gormlogger.New(zapWriter{g.z}, gormlogger.Config{
		SlowThreshold:             time.Second,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}

type zapWriter struct{ z *zap.Logger }

func (w zapWriter) Printf(format string, args ...interface{}) {
	if w.z == nil {
		return
	}
	w.z.Sugar().Infof(format, args...)
}
