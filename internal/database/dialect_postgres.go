package database

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/lib/pq"
)

// Postgres keeps preferences on a shared server, for households running several terminals
type Postgres struct{}

func (Postgres) Name() string       { return "postgres" }
func (Postgres) DriverName() string { return "postgres" }

// DSN accepts a postgres:// URL or a key=value connection string
func (Postgres) DSN(cfg DialectConfig) (string, error) {
	if cfg.URL == "" {
		return "", errors.New("DATABASE_URL is empty")
	}
	if strings.HasPrefix(cfg.URL, "postgres://") || strings.HasPrefix(cfg.URL, "postgresql://") {
		return pq.ParseURL(cfg.URL)
	}
	return cfg.URL, nil
}

func (Postgres) Tune(db *sql.DB) { serverPool(db) }

func (Postgres) Bind(query string) string { return numbered(query) }

func (Postgres) MigrationsTable() string {
	return `CREATE TABLE IF NOT EXISTS migrations (
		filename TEXT PRIMARY KEY,
		executed_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
	)`
}

func (Postgres) UpsertPreference() string {
	return "INSERT INTO preferences (pref_key, pref_value) VALUES (?, ?) " +
		"ON CONFLICT (pref_key) DO UPDATE SET pref_value = EXCLUDED.pref_value, updated_at = CURRENT_TIMESTAMP"
}
