package database

import (
	"database/sql"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"
)

// MySQL keeps preferences on a shared MySQL server
type MySQL struct{}

func (MySQL) Name() string       { return "mysql" }
func (MySQL) DriverName() string { return "mysql" }

// DSN validates the driver DSN and bounds how long a dead server can stall startup
func (MySQL) DSN(cfg DialectConfig) (string, error) {
	if cfg.URL == "" {
		return "", errors.New("DATABASE_URL is empty")
	}
	dsn, err := mysql.ParseDSN(cfg.URL)
	if err != nil {
		return "", err
	}
	if dsn.Timeout == 0 {
		dsn.Timeout = 5 * time.Second
	}
	return dsn.FormatDSN(), nil
}

func (MySQL) Tune(db *sql.DB) { serverPool(db) }

func (MySQL) Bind(query string) string { return query }

func (MySQL) MigrationsTable() string {
	return `CREATE TABLE IF NOT EXISTS migrations (
		filename VARCHAR(255) PRIMARY KEY,
		executed_at DATETIME(6) DEFAULT CURRENT_TIMESTAMP(6)
	)`
}

func (MySQL) UpsertPreference() string {
	return "INSERT INTO preferences (pref_key, pref_value) VALUES (?, ?) " +
		"ON DUPLICATE KEY UPDATE pref_value = VALUES(pref_value), updated_at = CURRENT_TIMESTAMP(6)"
}
