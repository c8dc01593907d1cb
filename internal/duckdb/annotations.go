package duckdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/v64/genome-browser/internal/annotation"
	"github.com/v64/genome-browser/internal/genome"
	"github.com/v64/genome-browser/internal/repute"
)

const annotationColumns = `summary, magnitude, repute, gene, categories, genotypes, ref_urls,
		source, fetched_at, original_saved, original_summary, original_genotypes, improved_at`

const annotationColumnsA = `a.summary, a.magnitude, a.repute, a.gene, a.categories, a.genotypes, a.ref_urls,
		a.source, a.fetched_at, a.original_saved, a.original_summary, a.original_genotypes, a.improved_at`

// annotationRecord is the nullable row form of an annotation.
type annotationRecord struct {
	summary, repute, gene              sql.NullString
	categories, genotypes, refs        sql.NullString
	source                             sql.NullString
	magnitude                          sql.NullFloat64
	fetchedAt, improvedAt              sql.NullTime
	originalSaved                      sql.NullBool
	originalSummary, originalGenotypes sql.NullString
}

func (r *annotationRecord) dest() []any {
	return []any{
		&r.summary, &r.magnitude, &r.repute, &r.gene, &r.categories, &r.genotypes, &r.refs,
		&r.source, &r.fetchedAt, &r.originalSaved, &r.originalSummary, &r.originalGenotypes, &r.improvedAt,
	}
}

func (r *annotationRecord) annotation(rsid string) (*annotation.Annotation, error) {
	a := &annotation.Annotation{
		RSID:            rsid,
		Summary:         r.summary.String,
		Magnitude:       floatPtr(r.magnitude),
		Repute:          repute.ParsePolarity(r.repute.String),
		Gene:            r.gene.String,
		Source:          annotation.Source(r.source.String),
		FetchedAt:       r.fetchedAt.Time,
		HasOriginal:     r.originalSaved.Bool,
		OriginalSummary: r.originalSummary.String,
		ImprovedAt:      timePtr(r.improvedAt),
	}
	if a.Source == "" {
		a.Source = annotation.SourceWiki
	}
	if err := decodeJSON(r.categories, &a.Categories); err != nil {
		return nil, fmt.Errorf("decode categories for %s: %w", rsid, err)
	}
	if err := decodeJSON(r.genotypes, &a.Genotypes); err != nil {
		return nil, fmt.Errorf("decode genotypes for %s: %w", rsid, err)
	}
	if err := decodeJSON(r.refs, &a.References); err != nil {
		return nil, fmt.Errorf("decode references for %s: %w", rsid, err)
	}
	if err := decodeJSON(r.originalGenotypes, &a.OriginalGenotypes); err != nil {
		return nil, fmt.Errorf("decode original genotypes for %s: %w", rsid, err)
	}
	return a, nil
}

// SaveAnnotation inserts or replaces the annotation for a.RSID.
func (s *Store) SaveAnnotation(ctx context.Context, a *annotation.Annotation) error {
	rec := *a
	rec.RSID = genome.NormalizeRSID(rec.RSID)
	if rec.Source == "" {
		rec.Source = annotation.SourceWiki
	}
	if rec.FetchedAt.IsZero() {
		rec.FetchedAt = s.now()
	}
	return s.writeAnnotation(ctx, &rec)
}

func (s *Store) writeAnnotation(ctx context.Context, a *annotation.Annotation) error {
	cats, err := encodeJSON(a.Categories)
	if err != nil {
		return err
	}
	gts, err := encodeJSON(a.Genotypes)
	if err != nil {
		return err
	}
	refs, err := encodeJSON(a.References)
	if err != nil {
		return err
	}
	origGts, err := encodeJSON(a.OriginalGenotypes)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `INSERT OR REPLACE INTO annotations
		(rsid, `+annotationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.RSID, a.Summary, nullFloat(a.Magnitude), nullString(string(a.Repute)), nullString(a.Gene),
		cats, gts, refs, string(a.Source), a.FetchedAt,
		a.HasOriginal, nullString(a.OriginalSummary), origGts, nullTime(a.ImprovedAt),
	)
	if err != nil {
		return fmt.Errorf("save annotation %s: %w", a.RSID, err)
	}
	return nil
}

// GetAnnotation returns the annotation for rsid or ErrNotFound.
func (s *Store) GetAnnotation(ctx context.Context, rsid string) (*annotation.Annotation, error) {
	rsid = genome.NormalizeRSID(rsid)
	var rec annotationRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT `+annotationColumns+` FROM annotations WHERE rsid = ?`, rsid).Scan(rec.dest()...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query annotation: %w", err)
	}
	return rec.annotation(rsid)
}

// ImproveAnnotation applies imp to the stored annotation. The first
// content override keeps the original summary and genotype table.
func (s *Store) ImproveAnnotation(ctx context.Context, rsid string, imp annotation.Improvement) (*annotation.Annotation, error) {
	return s.ImproveAnnotationIf(ctx, rsid, imp, nil)
}

// ImproveAnnotationIf is ImproveAnnotation guarded by cond, which sees the
// stored annotation under the write lock. It returns ErrConditionFailed and
// writes nothing when cond reports false. A nil cond always passes.
func (s *Store) ImproveAnnotationIf(ctx context.Context, rsid string, imp annotation.Improvement, cond func(*annotation.Annotation) bool) (*annotation.Annotation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.GetAnnotation(ctx, rsid)
	if err != nil {
		return nil, err
	}
	if cond != nil && !cond(cur) {
		return nil, ErrConditionFailed
	}
	next := annotation.Apply(*cur, imp, s.now())
	if err := s.writeAnnotation(ctx, &next); err != nil {
		return nil, err
	}
	return &next, nil
}

// RevertAnnotation restores the original content captured by the first
// improvement. Returns ErrNothingToRevert when none was captured.
func (s *Store) RevertAnnotation(ctx context.Context, rsid string) (*annotation.Annotation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.GetAnnotation(ctx, rsid)
	if err != nil {
		return nil, err
	}
	next, ok := annotation.Revert(*cur)
	if !ok {
		return nil, ErrNothingToRevert
	}
	if err := s.writeAnnotation(ctx, &next); err != nil {
		return nil, err
	}
	return &next, nil
}

// CountAnnotations returns the number of stored annotations.
func (s *Store) CountAnnotations(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM annotations").Scan(&n); err != nil {
		return 0, fmt.Errorf("count annotations: %w", err)
	}
	return n, nil
}

func encodeJSON(v any) (sql.NullString, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode json: %w", err)
	}
	if string(b) == "null" {
		return sql.NullString{}, nil
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeJSON(ns sql.NullString, v any) error {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(ns.String), v)
}
