// Package duckdb persists indexed feature entries and the file, project and
// reference registry in DuckDB. It backs index rebuilds on startup and
// implements project and reference membership lookups for the search engine.
package duckdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// Store manages a DuckDB connection.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates a DuckDB database at the given path.
// Use an empty string for an in-memory database.
func Open(path string) (*Store, error) {
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// ensureSchema creates tables if they don't exist.
func (s *Store) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS files (
			file_id BIGINT PRIMARY KEY,
			path VARCHAR NOT NULL,
			format VARCHAR,
			reference_id BIGINT,
			size BIGINT,
			mod_time TIMESTAMP,
			indexed_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS project_files (
			project_id BIGINT,
			file_id BIGINT,
			PRIMARY KEY (project_id, file_id)
		)`,
		// Map and list columns hold JSON text.
		`CREATE TABLE IF NOT EXISTS feature_entries (
			file_id BIGINT,
			chrom VARCHAR,
			start_pos BIGINT,
			end_pos BIGINT,
			feature_type VARCHAR,
			identifiers VARCHAR,
			categorical VARCHAR,
			numeric VARCHAR,
			info VARCHAR
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
