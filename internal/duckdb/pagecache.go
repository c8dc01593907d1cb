package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// CachedPage is a wiki page stored verbatim.
type CachedPage struct {
	Name       string
	Wikitext   string
	Categories []string
	FetchedAt  time.Time
}

// PageCacheStats counts cached wiki pages.
type PageCacheStats struct {
	Total         int64
	MainPages     int64
	GenotypePages int64
}

// PutPage stores a wiki page. Names are case-insensitive.
func (s *Store) PutPage(ctx context.Context, p CachedPage) error {
	if p.FetchedAt.IsZero() {
		p.FetchedAt = s.now()
	}
	cats, err := encodeJSON(p.Categories)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT OR REPLACE INTO snpedia_cache
		(page_name, wikitext, categories, fetched_at) VALUES (?, ?, ?, ?)`,
		strings.ToLower(p.Name), p.Wikitext, cats, p.FetchedAt)
	if err != nil {
		return fmt.Errorf("cache page %s: %w", p.Name, err)
	}
	return nil
}

// GetPage returns a cached page or ErrNotFound.
func (s *Store) GetPage(ctx context.Context, name string) (*CachedPage, error) {
	var p CachedPage
	var cats sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT page_name, wikitext, categories, fetched_at FROM snpedia_cache WHERE page_name = ?`,
		strings.ToLower(name)).Scan(&p.Name, &p.Wikitext, &cats, &p.FetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query cached page: %w", err)
	}
	if err := decodeJSON(cats, &p.Categories); err != nil {
		return nil, fmt.Errorf("decode page categories: %w", err)
	}
	return &p, nil
}

// PageCacheStats counts cached main and genotype pages.
func (s *Store) PageCacheStats(ctx context.Context) (PageCacheStats, error) {
	var st PageCacheStats
	err := s.db.QueryRowContext(ctx, `SELECT
		COUNT(*),
		COUNT(*) FILTER (WHERE page_name NOT LIKE '%(%'),
		COUNT(*) FILTER (WHERE page_name LIKE '%(%')
		FROM snpedia_cache`).Scan(&st.Total, &st.MainPages, &st.GenotypePages)
	if err != nil {
		return st, fmt.Errorf("page cache stats: %w", err)
	}
	return st, nil
}
