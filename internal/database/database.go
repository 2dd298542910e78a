// Package database manages the SQLite connection, migrations, and the
// serialized write path.
package database

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"analyzr/internal/config"
	"analyzr/internal/events"
	"analyzr/internal/users"
	"analyzr/internal/websites"
)

const busyTimeoutMs = 5000

// Manager owns the GORM connection and analyzr-specific migration methods.
type Manager struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *gorm.DB
}

// NewManager creates a database manager for the configured SQLite file.
func NewManager(cfg *config.Config, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:    cfg,
		logger: logger,
	}
}

// Init opens the database connection and applies connection settings.
func (m *Manager) Init() error {
	if dir := filepath.Dir(m.cfg.DatabaseName); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create storage directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_synchronous=NORMAL&_foreign_keys=on",
		m.cfg.DatabaseName, busyTimeoutMs)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to access underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(m.cfg.GetMaxOpenConns())
	sqlDB.SetMaxIdleConns(m.cfg.GetMaxIdleConns())
	sqlDB.SetConnMaxLifetime(time.Hour)

	m.db = db
	m.logger.Info("Database connection established",
		slog.String("path", m.cfg.DatabaseName))
	return nil
}

// GetConnection returns the shared GORM connection.
func (m *Manager) GetConnection() *gorm.DB {
	return m.db
}

// Close closes the underlying connection pool.
func (m *Manager) Close() error {
	if m.db == nil {
		return nil
	}
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Migrate runs analyzr's migrations.
func (m *Manager) Migrate() error {
	if m.db == nil {
		return gorm.ErrInvalidDB
	}

	err := m.db.Transaction(func(tx *gorm.DB) error {
		return tx.AutoMigrate(AllModels()...)
	})
	if err != nil {
		m.logger.Error("Failed to auto-migrate database", slog.Any("error", err))
		return err
	}

	if err := m.CheckpointWAL("FULL"); err != nil {
		m.logger.Warn("Failed to checkpoint WAL after migration", slog.Any("error", err))
	}

	m.logger.Info("Database migration completed successfully")
	return nil
}

// CheckpointWAL forces a WAL checkpoint of the given mode.
func (m *Manager) CheckpointWAL(mode string) error {
	return m.db.Exec(fmt.Sprintf("PRAGMA wal_checkpoint(%s)", mode)).Error
}

// AllModels lists every persisted model, in migration order.
func AllModels() []any {
	return []any{
		&users.User{},
		&websites.Website{},
		&events.PageView{},
		&events.Visit{},
		&events.CustomEvent{},
	}
}
