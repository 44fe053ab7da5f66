// Package db opens SQLite databases and applies embedded schema migrations.
// The graph store and the results store each bring their own migrations.
package db

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/incident.report/internal/errors"
)

type DB struct {
	*sql.DB
}

// Pragmas applied to every connection.
var pragmas = []string{
	"foreign_keys(1)",
	"busy_timeout(5000)",
	"journal_mode(WAL)",
}

// DSN builds the modernc.org/sqlite connection string for path. ":memory:"
// yields a private in-memory database.
func DSN(path string) string {
	var b strings.Builder
	if path == ":memory:" {
		b.WriteString("file::memory:?")
	} else {
		b.WriteString("file:" + path + "?")
	}
	for i, p := range pragmas {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString("_pragma=" + p)
	}
	return b.String()
}

// OpenDB opens the database at path without touching its schema.
func OpenDB(path string) (*DB, error) {
	if path == "" {
		return nil, errors.New(errors.KindValidation, "database path is empty")
	}
	sqlDB, err := sql.Open("sqlite", DSN(path))
	if err != nil {
		return nil, errors.Wrapf(err, errors.KindUnavailable, "open %s", path)
	}
	if path == ":memory:" {
		// Each connection to :memory: is a separate database.
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, errors.Wrapf(err, errors.KindUnavailable, "ping %s", path)
	}
	return &DB{sqlDB}, nil
}

// TableExists reports whether a table with the given name exists.
func (db *DB) TableExists(name string) (bool, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check table %s: %w", name, err)
	}
	return n > 0, nil
}
