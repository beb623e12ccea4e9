package store

import (
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// migration upgrades a journal created by an older build.
type migration struct {
	version int
	name    string
	stmt    string
}

// migrations run in order; user_version records the last one applied.
var migrations = []migration{
	{1, "evaluation completion index", `
		CREATE INDEX IF NOT EXISTS idx_evaluations_complete
		ON evaluations(session_id, complete)`},
	{2, "session start index", `
		CREATE INDEX IF NOT EXISTS idx_sessions_started
		ON sessions(started_at, id)`},
}

var currentSchemaVersion = migrations[len(migrations)-1].version

// pragmas are applied on open. busy_timeout covers a trace or replay
// reading a journal while a game is still writing to it.
var pragmas = []struct{ name, value string }{
	{"journal_mode", "WAL"},
	{"synchronous", "NORMAL"},
	{"busy_timeout", "5000"},
	{"foreign_keys", "ON"},
}

// Store is the session journal. It implements session.Journal.
type Store struct {
	db *sql.DB
}

// Open opens the journal at path, creating it if needed, and brings the
// schema up to date. Opening an existing journal is safe.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect journal %s: %w", path, err)
	}

	// Pragmas are per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := prepare(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare journal %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func prepare(db *sql.DB) error {
	for _, p := range pragmas {
		stmt := fmt.Sprintf("PRAGMA %s = %s", p.name, p.value)
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("%s: %w", stmt, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return migrate(db)
}

// migrate applies every migration newer than the stored user_version,
// each in its own transaction.
func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= version {
			continue
		}
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		if _, err := tx.Exec(m.stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		// PRAGMA does not accept bound parameters.
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): set user_version: %w", m.version, m.name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d (%s): commit: %w", m.version, m.name, err)
		}
	}
	return nil
}

// Close closes the journal. A zero Store closes cleanly.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the connection for tests and ad-hoc inspection.
func (s *Store) DB() *sql.DB {
	return s.db
}

// pragma reads the current value of a pragma.
func (s *Store) pragma(name string) (string, error) {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return "", fmt.Errorf("read pragma %s: %w", name, err)
	}
	return value, nil
}
