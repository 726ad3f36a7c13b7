package database

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Dialect is what changes between the SQL engines that can hold the preferences table
type Dialect interface {
	// Name identifies the engine; it is also the migrations directory
	Name() string
	DriverName() string
	// DSN builds the connection string, rejecting settings the driver cannot parse
	DSN(cfg DialectConfig) (string, error)
	// Tune sizes the pool. The store has a single writer: this process.
	Tune(db *sql.DB)
	// Bind rewrites ? placeholders into the engine's syntax
	Bind(query string) string
	MigrationsTable() string
	// UpsertPreference inserts or replaces one (pref_key, pref_value) row
	UpsertPreference() string
}

// DialectConfig locates the store: a file for SQLite, a URL for a shared server
type DialectConfig struct {
	Path string
	URL  string
}

// DialectFor returns the dialect for a DB_TYPE value
func DialectFor(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "sqlite", "sqlite3", "":
		return SQLite{}, nil
	case "postgres", "postgresql":
		return Postgres{}, nil
	case "mysql":
		return MySQL{}, nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", name)
	}
}

// Statements holds every preference query, already bound for one dialect
type Statements struct {
	Get    string
	List   string
	Upsert string
	Delete string
	Clear  string
}

func statementsFor(d Dialect) Statements {
	return Statements{
		Get:    d.Bind("SELECT pref_value FROM preferences WHERE pref_key = ?"),
		List:   "SELECT pref_key, pref_value FROM preferences",
		Upsert: d.Bind(d.UpsertPreference()),
		Delete: d.Bind("DELETE FROM preferences WHERE pref_key = ?"),
		Clear:  "DELETE FROM preferences",
	}
}

// serverPool keeps one connection for the writer and one spare for reads, and lets idle
// connections to a remote server go
func serverPool(db *sql.DB) {
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)
	db.SetConnMaxIdleTime(time.Minute)
}

// numbered rewrites ? placeholders as $1, $2, ...
func numbered(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r != '?' {
			b.WriteRune(r)
			continue
		}
		n++
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(n))
	}
	return b.String()
}
