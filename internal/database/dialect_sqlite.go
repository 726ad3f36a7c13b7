package database

import (
	"database/sql"
	"errors"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite stores preferences in a file next to the app. It is the default.
type SQLite struct{}

func (SQLite) Name() string       { return "sqlite" }
func (SQLite) DriverName() string { return "sqlite3" }

// DSN waits on a locked file instead of failing, and journals in WAL mode so a second
// familyctl process can read while one writes
func (SQLite) DSN(cfg DialectConfig) (string, error) {
	if cfg.Path == "" {
		return "", errors.New("DB_PATH is empty")
	}
	return cfg.Path + "?_busy_timeout=5000&_journal_mode=WAL", nil
}

// Tune allows one connection: SQLite serializes writers anyway
func (SQLite) Tune(db *sql.DB) {
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
}

func (SQLite) Bind(query string) string { return query }

func (SQLite) MigrationsTable() string {
	return `CREATE TABLE IF NOT EXISTS migrations (
		filename TEXT PRIMARY KEY,
		executed_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`
}

func (SQLite) UpsertPreference() string {
	return "INSERT INTO preferences (pref_key, pref_value) VALUES (?, ?) " +
		"ON CONFLICT(pref_key) DO UPDATE SET pref_value = excluded.pref_value, updated_at = CURRENT_TIMESTAMP"
}
