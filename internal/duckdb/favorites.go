package duckdb

import (
	"context"
	"fmt"

	"github.com/v64/genome-browser/internal/genome"
)

// AddFavorite marks rsid as a favorite.
func (s *Store) AddFavorite(ctx context.Context, rsid string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO favorites (rsid, added_at) VALUES (?, ?)`,
		genome.NormalizeRSID(rsid), s.now())
	if err != nil {
		return fmt.Errorf("add favorite: %w", err)
	}
	return nil
}

// RemoveFavorite unmarks rsid.
func (s *Store) RemoveFavorite(ctx context.Context, rsid string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM favorites WHERE rsid = ?`, genome.NormalizeRSID(rsid)); err != nil {
		return fmt.Errorf("remove favorite: %w", err)
	}
	return nil
}

// Favorites returns favorite rsids, most recently added first.
func (s *Store) Favorites(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT rsid FROM favorites ORDER BY added_at DESC, rsid`)
	if err != nil {
		return nil, fmt.Errorf("query favorites: %w", err)
	}
	defer rows.Close()
	return scanStrings(rows)
}
