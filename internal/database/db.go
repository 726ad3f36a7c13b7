// Package database opens the device's preferences store on SQLite, PostgreSQL or MySQL.
package database

import (
	"database/sql"
	"fmt"

	"childbehavior/internal/config"
)

// DB is an open preferences store
type DB struct {
	*sql.DB
	Dialect Dialect
	SQL     Statements
}

// Initialize opens a SQLite preferences file at dbPath
func Initialize(dbPath string) (*DB, error) {
	return open(SQLite{}, DialectConfig{Path: dbPath})
}

// InitializeWithConfig opens the store selected by DB_TYPE
func InitializeWithConfig(cfg *config.Config) (*DB, error) {
	dialect, err := DialectFor(cfg.DatabaseType)
	if err != nil {
		return nil, err
	}
	return open(dialect, DialectConfig{Path: cfg.DatabasePath, URL: cfg.DatabaseURL})
}

func open(dialect Dialect, dialectConfig DialectConfig) (*DB, error) {
	dsn, err := dialect.DSN(dialectConfig)
	if err != nil {
		return nil, fmt.Errorf("invalid %s settings: %w", dialect.Name(), err)
	}

	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	dialect.Tune(db)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db, Dialect: dialect, SQL: statementsFor(dialect)}, nil
}
