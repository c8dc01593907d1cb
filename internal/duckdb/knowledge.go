package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/v64/genome-browser/internal/genome"
	"github.com/v64/genome-browser/internal/knowledge"
)

const knowledgeColumns = `id, query, content, rsids, category, source, embedding, created_at, updated_at`

// SaveKnowledge inserts e, assigning an ID and timestamps when missing.
func (s *Store) SaveKnowledge(ctx context.Context, e *knowledge.Entry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	now := s.now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	rsids, err := encodeJSON(e.RSIDs)
	if err != nil {
		return err
	}
	var emb sql.NullString
	if len(e.Embedding) > 0 {
		emb = sql.NullString{String: pgvector.NewVector(e.Embedding).String(), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `INSERT OR REPLACE INTO knowledge (`+knowledgeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Query, e.Content, rsids, nullString(e.Category), nullString(e.Source), emb,
		e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save knowledge: %w", err)
	}
	return nil
}

func scanKnowledge(row rowScanner) (*knowledge.Entry, error) {
	var e knowledge.Entry
	var rsids, category, source, emb sql.NullString
	if err := row.Scan(&e.ID, &e.Query, &e.Content, &rsids, &category, &source, &emb, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.Category = category.String
	e.Source = source.String
	if err := decodeJSON(rsids, &e.RSIDs); err != nil {
		return nil, fmt.Errorf("decode knowledge rsids: %w", err)
	}
	if emb.Valid && emb.String != "" {
		var v pgvector.Vector
		if err := v.Scan(emb.String); err != nil {
			return nil, fmt.Errorf("decode knowledge embedding: %w", err)
		}
		e.Embedding = v.Slice()
	}
	return &e, nil
}

// GetKnowledge returns the entry with id or ErrNotFound.
func (s *Store) GetKnowledge(ctx context.Context, id string) (*knowledge.Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+knowledgeColumns+` FROM knowledge WHERE id = ?`, id)
	e, err := scanKnowledge(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query knowledge: %w", err)
	}
	return e, nil
}

// KnowledgeUpdate lists the fields UpdateKnowledge changes. Nil fields
// are left alone.
type KnowledgeUpdate struct {
	Content  *string
	Category *string
	RSIDs    []string

	// Embedding replaces the stored vector when non-nil.
	Embedding []float32
}

// UpdateKnowledge edits an entry. Editing the content marks it as user edited.
func (s *Store) UpdateKnowledge(ctx context.Context, id string, u KnowledgeUpdate) (*knowledge.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.GetKnowledge(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Content != nil {
		e.Content = *u.Content
		e.Source = knowledge.SourceUserEdited
	}
	if u.Category != nil {
		e.Category = *u.Category
	}
	if u.RSIDs != nil {
		e.RSIDs = u.RSIDs
	}
	if u.Embedding != nil {
		e.Embedding = u.Embedding
	}
	if err := s.SaveKnowledge(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// DeleteKnowledge removes an entry. Returns ErrNotFound when absent.
func (s *Store) DeleteKnowledge(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM knowledge WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete knowledge: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListKnowledge returns entries, most recently updated first. An empty
// category matches all. limit <= 0 returns everything.
func (s *Store) ListKnowledge(ctx context.Context, category string, limit int) ([]knowledge.Entry, error) {
	q := `SELECT ` + knowledgeColumns + ` FROM knowledge`
	var args []any
	if category != "" {
		q += ` WHERE category = ?`
		args = append(args, category)
	}
	q += ` ORDER BY updated_at DESC, id`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list knowledge: %w", err)
	}
	defer rows.Close()

	var out []knowledge.Entry
	for rows.Next() {
		e, err := scanKnowledge(rows)
		if err != nil {
			return nil, fmt.Errorf("scan knowledge: %w", err)
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate knowledge: %w", err)
	}
	return out, nil
}

// KnowledgeFor returns entries that mention rsid as a whole word, so rs1
// does not match rs1801133.
func (s *Store) KnowledgeFor(ctx context.Context, rsid string) ([]knowledge.Entry, error) {
	rsid = genome.NormalizeRSID(rsid)
	word := `(?i)\b` + regexp.QuoteMeta(rsid) + `\b`
	rows, err := s.db.QueryContext(ctx, `SELECT `+knowledgeColumns+` FROM knowledge
		WHERE rsids ILIKE ? OR regexp_matches(query, ?) OR regexp_matches(content, ?)
		ORDER BY created_at DESC, id`, `%"`+rsid+`"%`, word, word)
	if err != nil {
		return nil, fmt.Errorf("query knowledge for %s: %w", rsid, err)
	}
	defer rows.Close()

	var out []knowledge.Entry
	for rows.Next() {
		e, err := scanKnowledge(rows)
		if err != nil {
			return nil, fmt.Errorf("scan knowledge: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// LoadKnowledgeIndex builds a search index over every stored entry.
func (s *Store) LoadKnowledgeIndex(ctx context.Context) (*knowledge.Index, error) {
	entries, err := s.ListKnowledge(ctx, "", 0)
	if err != nil {
		return nil, err
	}
	idx, err := knowledge.NewIndex()
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if err := idx.Add(e); err != nil {
			idx.Close()
			return nil, fmt.Errorf("index knowledge %s: %w", e.ID, err)
		}
	}
	return idx, nil
}
