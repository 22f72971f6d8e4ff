package db

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// schemaSQL is the single source of truth for the checkpoint schema.
//
//go:embed schema.sql
var schemaSQL string

// DB wraps the SQLite checkpoint database
type DB struct {
	conn   *sql.DB
	logger *zap.Logger
}

// Connect opens a SQLite database with WAL mode and foreign keys enabled
func Connect(logger *zap.Logger, dbPath string) (*DB, error) {
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// The crawl is sequential; a single connection keeps SQLite's one-writer
	// rule trivially satisfied.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(time.Hour)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA synchronous = NORMAL", // still safe with WAL
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			logger.Warn("failed to set pragma", zap.String("pragma", pragma), zap.Error(err))
		}
	}

	logger.Debug("connected to checkpoint database", zap.String("path", dbPath))
	return &DB{conn: conn, logger: logger}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// EnsureSchema creates tables if they don't exist.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
