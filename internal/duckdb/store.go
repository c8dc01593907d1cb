// Package duckdb persists the genome, its annotations and everything the
// enrichment workers learn about it in a single DuckDB database.
package duckdb

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/marcboeker/go-duckdb"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNothingToRevert is returned by RevertAnnotation when no original
	// content was captured.
	ErrNothingToRevert = errors.New("nothing to revert")
	// ErrConditionFailed is returned by ImproveAnnotationIf when the stored
	// annotation no longer satisfies the caller's condition.
	ErrConditionFailed = errors.New("condition failed")
)

// Store manages a DuckDB connection holding the genome browser state.
type Store struct {
	db   *sql.DB
	path string

	// mu serializes read-modify-write sequences (improve, revert).
	mu sync.Mutex

	now func() time.Time
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

	s := &Store{db: db, path: path, now: time.Now}
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

// Path returns the database file path ("" for in-memory).
func (s *Store) Path() string {
	return s.path
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS snps (
		rsid VARCHAR PRIMARY KEY,
		chromosome VARCHAR,
		position BIGINT,
		genotype VARCHAR
	)`,
	`CREATE TABLE IF NOT EXISTS annotations (
		rsid VARCHAR PRIMARY KEY,
		summary VARCHAR,
		magnitude DOUBLE,
		repute VARCHAR,
		gene VARCHAR,
		categories VARCHAR,
		genotypes VARCHAR,
		ref_urls VARCHAR,
		source VARCHAR DEFAULT 'snpedia',
		fetched_at TIMESTAMP,
		original_saved BOOLEAN DEFAULT false,
		original_summary VARCHAR,
		original_genotypes VARCHAR,
		improved_at TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS genotype_labels (
		rsid VARCHAR PRIMARY KEY,
		label VARCHAR NOT NULL,
		confidence VARCHAR,
		frequency DOUBLE,
		notes VARCHAR,
		source VARCHAR,
		created_at TIMESTAMP,
		updated_at TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS knowledge (
		id VARCHAR PRIMARY KEY,
		query VARCHAR NOT NULL,
		content VARCHAR NOT NULL,
		rsids VARCHAR,
		category VARCHAR,
		source VARCHAR,
		embedding VARCHAR,
		created_at TIMESTAMP,
		updated_at TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS data_log (
		id VARCHAR PRIMARY KEY,
		source VARCHAR NOT NULL,
		data_type VARCHAR NOT NULL,
		reference_id VARCHAR,
		content VARCHAR NOT NULL,
		metadata VARCHAR,
		created_at TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS snpedia_cache (
		page_name VARCHAR PRIMARY KEY,
		wikitext VARCHAR NOT NULL,
		categories VARCHAR,
		fetched_at TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS favorites (
		rsid VARCHAR PRIMARY KEY,
		added_at TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS genome_files (
		path VARCHAR PRIMARY KEY,
		size BIGINT,
		mod_time TIMESTAMP,
		snp_count BIGINT,
		loaded_at TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_data_log_ref ON data_log(reference_id)`,
}

// ensureSchema creates tables if they don't exist.
func (s *Store) ensureSchema() error {
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	f := n.Float64
	return &f
}

func timePtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time
	return &t
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
