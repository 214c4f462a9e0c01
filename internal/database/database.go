package database

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/adrewards/backend/internal/config"
)

// Connect opens the database connection for the configured driver. The
// returned handle is explicitly owned by the caller and injected into every
// component that needs storage; nothing in this package keeps global state.
func Connect(dbConfig config.DatabaseConfig) (*gorm.DB, error) {
	// TranslateError maps driver-specific unique violations onto
	// gorm.ErrDuplicatedKey, which the registration retry loop relies on
	gormConfig := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	}

	var dialector gorm.Dialector
	switch dbConfig.Driver {
	case "sqlite":
		dialector = sqlite.Open(dbConfig.Path)
	case "postgres", "":
		dialector = postgres.Open(dbConfig.URL)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", dbConfig.Driver)
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}

	sqlDB.SetMaxIdleConns(dbConfig.MaxIdle)
	sqlDB.SetMaxOpenConns(dbConfig.MaxConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}
