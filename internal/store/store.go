package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/remap/internal/querysql"
)

//go:embed schema_sqlite.sql
var schemaSQLite string

//go:embed schema_postgres.sql
var schemaPostgres string

// Schema version tracking:
// 1 - Initial schema
const currentSchemaVersion = 1

// Store is a SQL-backed environment.
type Store struct {
	db        *sql.DB
	dialect   querysql.Dialect
	integrity bool
}

// Option configures a Store.
type Option func(*Store)

// WithReferentialIntegrity makes Create and Update reject references to
// records that do not exist in the store.
func WithReferentialIntegrity() Option {
	return func(s *Store) {
		s.integrity = true
	}
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and the schema automatically.
//
// This function is idempotent - safe to call multiple times.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	return newStore(db, querysql.SQLite, opts)
}

// OpenPostgres connects to a Postgres database through the pgx driver and
// applies the schema.
func OpenPostgres(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return newStore(db, querysql.Postgres, opts)
}

func newStore(db *sql.DB, d querysql.Dialect, opts []Option) (*Store, error) {
	s := &Store{db: db, dialect: d}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.applySchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Dialect returns the SQL dialect of the backing database.
func (s *Store) Dialect() querysql.Dialect {
	return s.dialect
}

// rebind adapts ? placeholders to the store's dialect.
func (s *Store) rebind(query string) string {
	return s.dialect.Rebind(query)
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and records the version.
func (s *Store) applySchema() error {
	if s.dialect == querysql.Postgres {
		if _, err := s.db.Exec(schemaPostgres); err != nil {
			return fmt.Errorf("failed to execute schema: %w", err)
		}
		var n int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&n); err != nil {
			return fmt.Errorf("read schema_version: %w", err)
		}
		if n == 0 {
			if _, err := s.db.Exec("INSERT INTO schema_version (version) VALUES ($1)", currentSchemaVersion); err != nil {
				return fmt.Errorf("set schema_version: %w", err)
			}
		}
		return nil
	}

	if _, err := s.db.Exec(schemaSQLite); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// schemaVersion returns the recorded schema version.
// Used for testing.
func (s *Store) schemaVersion() (int, error) {
	var v int
	var err error
	if s.dialect == querysql.Postgres {
		err = s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&v)
	} else {
		err = s.db.QueryRow("PRAGMA user_version").Scan(&v)
	}
	return v, err
}
