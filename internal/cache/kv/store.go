// Package kv implements the persistent-cache decorator (C6 in
// SPEC_FULL.md S4.6) on top of a SQL-backed key/value table, adapted
// from sentra's internal/database DBManager: same driver-name mapping
// and database/sql plumbing, narrowed to the one hGet/hSet table a
// fingerprint cache needs instead of general ad hoc queries.
package kv

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// SQLStore is a single hGet/hSet table backed by one of sqlite,
// postgres, or mysql, selected the same way DBManager.Connect picked
// a driver: a small name-to-driver switch. The three backends disagree
// on placeholder syntax and upsert syntax, so SQLStore keeps the
// resolved driver name around and picks the matching Get/Set query at
// call time rather than hardcoding sqlite's dialect everywhere.
type SQLStore struct {
	db         *sql.DB
	driverName string
}

// Open connects to dbType ("sqlite", "postgres"/"postgresql", or
// "mysql") at dsn, pings it, tunes the pool the way DBManager did, and
// ensures the cache table exists.
func Open(dbType, dsn string) (*SQLStore, error) {
	var driverName string
	switch dbType {
	case "sqlite", "sqlite3", "":
		driverName = "sqlite"
	case "postgres", "postgresql":
		driverName = "postgres"
	case "mysql":
		driverName = "mysql"
	default:
		return nil, fmt.Errorf("unsupported cache database type: %s", dbType)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping cache database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS solver_cache (
		fingerprint TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TIMESTAMP
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare cache table: %w", err)
	}

	return &SQLStore{db: db, driverName: driverName}, nil
}

// Get returns the stored value for key and whether it was present. An
// empty stored value is a legitimate cache entry (spec.md S4.8: "a
// solved query with no RHS" is cached as emptiness, not as a miss).
func (s *SQLStore) Get(ctx context.Context, key string) (value string, found bool, err error) {
	query := "SELECT value FROM solver_cache WHERE fingerprint = " + s.placeholder(1)
	row := s.db.QueryRowContext(ctx, query, key)
	err = row.Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache lookup failed: %w", err)
	}
	return value, true, nil
}

// Set upserts key -> value. sqlite and postgres both understand the
// standard "ON CONFLICT ... DO UPDATE" syntax (postgres just needs
// $-numbered placeholders instead of sqlite's ?); mysql has no ON
// CONFLICT clause at all and instead upserts via "ON DUPLICATE KEY
// UPDATE", so the three drivers need three distinct statements rather
// than one shared string.
func (s *SQLStore) Set(ctx context.Context, key, value string) error {
	now := time.Now()
	var query string
	switch s.driverName {
	case "postgres":
		query = `INSERT INTO solver_cache (fingerprint, value, updated_at) VALUES ($1, $2, $3)
			ON CONFLICT (fingerprint) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	case "mysql":
		query = `INSERT INTO solver_cache (fingerprint, value, updated_at) VALUES (?, ?, ?)
			ON DUPLICATE KEY UPDATE value = VALUES(value), updated_at = VALUES(updated_at)`
	default: // sqlite
		query = `INSERT INTO solver_cache (fingerprint, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT (fingerprint) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	}
	if _, err := s.db.ExecContext(ctx, query, key, value, now); err != nil {
		return fmt.Errorf("cache store failed: %w", err)
	}
	return nil
}

// placeholder returns the positional-parameter marker this store's
// driver expects: postgres uses $N, sqlite and mysql both accept the
// driver-agnostic ?.
func (s *SQLStore) placeholder(n int) string {
	if s.driverName == "postgres" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// Close releases the underlying connection pool.
func (s *SQLStore) Close() error { return s.db.Close() }
