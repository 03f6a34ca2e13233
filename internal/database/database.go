// Package database opens the relational store and keeps its schema current.
package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"vinotheque/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config returns the GORM settings shared by every dialect. verbose logs
// each SQL statement.
func Config(verbose bool) *gorm.Config {
	level := logger.Warn
	if verbose {
		level = logger.Info
	}
	return &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(level),
	}
}

// OpenPostgres returns a function opening a PostgreSQL connection pool for dsn.
func OpenPostgres(dsn string, verbose bool) func() (*gorm.DB, error) {
	return func() (*gorm.DB, error) {
		return gorm.Open(postgres.Open(dsn), Config(verbose))
	}
}

// ConnectWithRetry calls open until it yields a database answering a ping,
// up to attempts times with delay between tries. The last error is returned
// once attempts are exhausted.
func ConnectWithRetry(ctx context.Context, open func() (*gorm.DB, error), attempts int, delay time.Duration) (*gorm.DB, error) {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 1; i <= attempts; i++ {
		db, err := open()
		if err == nil {
			err = ping(ctx, db)
			if err == nil {
				log.Println("Connected to database")
				return db, nil
			}
			if closeErr := Close(db); closeErr != nil {
				log.Printf("Error closing unreachable database pool: %v", closeErr)
			}
		}
		lastErr = err
		log.Printf("Database not ready (attempt %d/%d): %v", i, attempts, err)

		if i == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, fmt.Errorf("database unreachable after %d attempts: %w", attempts, lastErr)
}

func ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Migrate creates or updates the tables of every model.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.User{}, &models.Product{}, &models.ProductImage{}); err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	return nil
}

// Close releases the connection pool behind db.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
