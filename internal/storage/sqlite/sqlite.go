// Package sqlite is a single-file backend for the durable stores, for local
// and single-node deployments.
package sqlite

import (
	"errors"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB wraps gorm.DB for dependency injection.
type DB struct {
	*gorm.DB
}

// Open opens (or creates) the database at path and migrates the schema.
// Use ":memory:" for a throwaway database.
func Open(path string) (*DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite handle: %w", err)
	}
	// One writer; also keeps ":memory:" on a single connection.
	sqlDB.SetMaxOpenConns(1)

	if err := db.Exec("PRAGMA journal_mode = WAL").Error; err != nil {
		return nil, fmt.Errorf("enable wal: %w", err)
	}

	if err := db.AutoMigrate(
		&curatedFeedRow{},
		&semanticCacheRow{},
		&failoverStateRow{},
		&ingestionRunRow{},
		&latestStateRow{},
		&semanticRefreshRunRow{},
	); err != nil {
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}

	return &DB{DB: db}, nil
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func isNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func isDuplicateKeyError(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
