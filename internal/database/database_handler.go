package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"vpnrotator/internal/domain"
	"vpnrotator/internal/support"
)

var (
	DB *gorm.DB

	defaultSQLitePath = filepath.Join("data", "vpnrotator.db")
)

type Config struct {
	Dialector   gorm.Dialector
	Logger      logger.Interface
	AutoMigrate bool
	Migrations  []any
}

type Option func(*Config)

func SetupDB(opts ...Option) (*gorm.DB, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.Dialector == nil {
		return nil, fmt.Errorf("database: no dialector provided")
	}

	gormCfg := &gorm.Config{}
	if cfg.Logger != nil {
		gormCfg.Logger = cfg.Logger
	}
	db, err := gorm.Open(cfg.Dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("database: open connection: %w", err)
	}
	DB = db
	configureConnectionPool(db)

	if cfg.AutoMigrate && len(cfg.Migrations) > 0 {
		if err := DB.AutoMigrate(cfg.Migrations...); err != nil {
			return nil, fmt.Errorf("database: auto migrate: %w", err)
		}
		log.Info("Database migration completed.")
	}

	return DB, nil
}

// Close releases the pool and forgets the shared handle.
func Close() error {
	if DB == nil {
		return nil
	}

	sqlDB, err := DB.DB()
	DB = nil
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func defaultConfig() Config {
	return Config{
		Dialector:   postgres.Open(buildDSN()),
		Logger:      silentLogger(),
		AutoMigrate: true,
		Migrations:  defaultMigrations(),
	}
}

func buildDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		support.GetEnv("DB_HOST", "localhost"),
		support.GetEnv("DB_PORT", "5434"),
		support.GetEnv("DB_USERNAME", "admin"),
		support.GetEnv("DB_PASSWORD", "admin"),
		support.GetEnv("DB_NAME", "vpnrotator"),
		support.GetEnv("DB_SSLMODE", "disable"),
	)
}

func silentLogger() logger.Interface {
	return logger.New(
		log.Default(),
		logger.Config{LogLevel: logger.Silent},
	)
}

func defaultMigrations() []any {
	return []any{
		domain.RotationRecord{},
	}
}

func WithDialector(d gorm.Dialector) Option {
	return func(cfg *Config) {
		cfg.Dialector = d
	}
}

// OptionsFromEnv selects the driver from DB_DRIVER (postgres or sqlite, with
// the file at DB_PATH) and honours DB_AUTO_MIGRATE.
func OptionsFromEnv() []Option {
	opts := []Option{WithAutoMigrate(support.GetEnvBool("DB_AUTO_MIGRATE", true))}

	switch driver := strings.ToLower(support.GetEnv("DB_DRIVER", "postgres")); driver {
	case "postgres":
	case "sqlite":
		path := support.GetEnv("DB_PATH", defaultSQLitePath)
		if !strings.HasPrefix(path, "file:") && path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				log.Warn("Could not create database directory", "path", path, "error", err)
			}
		}
		opts = append(opts, WithDialector(sqlite.Open(path)))
	default:
		log.Warn("Unknown DB_DRIVER, using postgres", "driver", driver)
	}
	return opts
}

func WithAutoMigrate(enabled bool) Option {
	return func(cfg *Config) {
		cfg.AutoMigrate = enabled
	}
}

func configureConnectionPool(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Error("database: get sql.DB", "error", err)
		return
	}

	maxOpen := support.GetEnvInt("DB_MAX_OPEN_CONNS", 8)
	maxIdle := support.GetEnvInt("DB_MAX_IDLE_CONNS", maxOpen)
	if maxIdle > maxOpen {
		maxIdle = maxOpen
	}

	if maxOpen > 0 {
		sqlDB.SetMaxOpenConns(maxOpen)
	}
	if maxIdle >= 0 {
		sqlDB.SetMaxIdleConns(maxIdle)
	}
	if seconds := support.GetEnvInt("DB_CONN_MAX_LIFETIME", 300); seconds > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(seconds) * time.Second)
	}
	if seconds := support.GetEnvInt("DB_CONN_MAX_IDLE_TIME", 60); seconds > 0 {
		sqlDB.SetConnMaxIdleTime(time.Duration(seconds) * time.Second)
	}
}
