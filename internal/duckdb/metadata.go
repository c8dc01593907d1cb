package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"
)

// FileFingerprint holds stat-based identity for a file.
type FileFingerprint struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// StatFile creates a FileFingerprint from an on-disk file.
func StatFile(path string) (FileFingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileFingerprint{}, err
	}
	return FileFingerprint{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// GenomeFile records a genome export that has been loaded.
type GenomeFile struct {
	FileFingerprint
	SNPCount int64
	LoadedAt time.Time
}

// RecordGenomeFile remembers that fp was loaded with count SNPs.
// Previously recorded files are forgotten since the genome was replaced.
func (s *Store) RecordGenomeFile(ctx context.Context, fp FileFingerprint, count int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM genome_files`); err != nil {
		return fmt.Errorf("clear genome files: %w", err)
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO genome_files (path, size, mod_time, snp_count, loaded_at)
		VALUES (?, ?, ?, ?, ?)`, fp.Path, fp.Size, storedTime(fp.ModTime), count, s.now())
	if err != nil {
		return fmt.Errorf("record genome file: %w", err)
	}
	return nil
}

// LoadedGenomeFile returns the last recorded genome file or ErrNotFound.
func (s *Store) LoadedGenomeFile(ctx context.Context) (*GenomeFile, error) {
	var g GenomeFile
	err := s.db.QueryRowContext(ctx, `SELECT path, size, mod_time, snp_count, loaded_at
		FROM genome_files ORDER BY loaded_at DESC LIMIT 1`).
		Scan(&g.Path, &g.Size, &g.ModTime, &g.SNPCount, &g.LoadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query genome file: %w", err)
	}
	return &g, nil
}

// GenomeFileUnchanged reports whether fp matches the recorded genome file.
func (s *Store) GenomeFileUnchanged(ctx context.Context, fp FileFingerprint) (bool, error) {
	g, err := s.LoadedGenomeFile(ctx)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return g.Path == fp.Path && g.Size == fp.Size && g.ModTime.Equal(storedTime(fp.ModTime)), nil
}

// storedTime truncates t to the microsecond precision of DuckDB timestamps.
func storedTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
