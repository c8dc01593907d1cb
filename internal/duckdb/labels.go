package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/v64/genome-browser/internal/genome"
	"github.com/v64/genome-browser/internal/label"
)

// SetLabel validates and upserts a genotype label. The creation time of
// an existing label is kept.
func (s *Store) SetLabel(ctx context.Context, l label.GenotypeLabel) error {
	l.RSID = genome.NormalizeRSID(l.RSID)
	if err := l.Validate(); err != nil {
		return err
	}
	now := s.now()
	_, err := s.db.ExecContext(ctx, `INSERT INTO genotype_labels
		(rsid, label, confidence, frequency, notes, source, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (rsid) DO UPDATE SET
			label = excluded.label,
			confidence = excluded.confidence,
			frequency = excluded.frequency,
			notes = excluded.notes,
			source = excluded.source,
			updated_at = excluded.updated_at`,
		l.RSID, string(l.Label), nullString(string(l.Confidence)), nullFloat(l.Frequency),
		nullString(l.Notes), nullString(l.Source), now, now)
	if err != nil {
		return fmt.Errorf("set label %s: %w", l.RSID, err)
	}
	return nil
}

const labelColumns = `rsid, label, confidence, frequency, notes, source, created_at, updated_at`

func scanLabel(row rowScanner) (*label.GenotypeLabel, error) {
	var l label.GenotypeLabel
	var lbl string
	var conf, notes, source sql.NullString
	var freq sql.NullFloat64
	if err := row.Scan(&l.RSID, &lbl, &conf, &freq, &notes, &source, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	l.Label = label.Label(lbl)
	l.Confidence = label.Confidence(conf.String)
	l.Frequency = floatPtr(freq)
	l.Notes = notes.String
	l.Source = source.String
	return &l, nil
}

// GetLabel returns the label for rsid or ErrNotFound.
func (s *Store) GetLabel(ctx context.Context, rsid string) (*label.GenotypeLabel, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+labelColumns+` FROM genotype_labels WHERE rsid = ?`, genome.NormalizeRSID(rsid))
	l, err := scanLabel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query label: %w", err)
	}
	return l, nil
}

// LabelsFor returns the labels present for rsids keyed by rsid.
func (s *Store) LabelsFor(ctx context.Context, rsids []string) (map[string]*label.GenotypeLabel, error) {
	out := make(map[string]*label.GenotypeLabel)
	if len(rsids) == 0 {
		return out, nil
	}
	args := make([]any, len(rsids))
	for i, id := range rsids {
		args[i] = genome.NormalizeRSID(id)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+labelColumns+` FROM genotype_labels WHERE rsid IN (`+placeholders(len(rsids))+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("query labels: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		l, err := scanLabel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan label: %w", err)
		}
		out[l.RSID] = l
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate labels: %w", err)
	}
	return out, nil
}

// LabeledVariant is a search hit for SearchByLabel.
type LabeledVariant struct {
	Variant
	Label label.GenotypeLabel
}

// SearchByLabel lists SNPs carrying lbl, most important first, and the
// total number of matches.
func (s *Store) SearchByLabel(ctx context.Context, lbl label.Label, limit, offset int) ([]LabeledVariant, int64, error) {
	if !lbl.Valid() {
		return nil, 0, fmt.Errorf("%w: %q", label.ErrInvalidLabel, string(lbl))
	}
	if limit <= 0 {
		limit = 50
	}

	var total int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM genotype_labels WHERE label = ?`, string(lbl)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count labels: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT gl.rsid FROM genotype_labels gl
		JOIN snps s ON s.rsid = gl.rsid
		LEFT JOIN annotations a ON a.rsid = gl.rsid
		WHERE gl.label = ?
		ORDER BY a.magnitude DESC NULLS LAST, gl.rsid
		LIMIT ? OFFSET ?`, string(lbl), limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("search by label: %w", err)
	}
	ids, err := scanStrings(rows)
	rows.Close()
	if err != nil {
		return nil, 0, err
	}

	labels, err := s.LabelsFor(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	out := make([]LabeledVariant, 0, len(ids))
	for _, id := range ids {
		v, err := s.GetVariant(ctx, id)
		if err != nil {
			return nil, 0, err
		}
		hit := LabeledVariant{Variant: *v}
		if l := labels[id]; l != nil {
			hit.Label = *l
		}
		out = append(out, hit)
	}
	return out, total, nil
}

// LabelCounts returns how many SNPs carry each label, largest first.
func (s *Store) LabelCounts(ctx context.Context) ([]label.Count, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT label, COUNT(*) AS n FROM genotype_labels GROUP BY label ORDER BY n DESC, label`)
	if err != nil {
		return nil, fmt.Errorf("query label counts: %w", err)
	}
	defer rows.Close()

	var out []label.Count
	for rows.Next() {
		var c label.Count
		var lbl string
		if err := rows.Scan(&lbl, &c.Count); err != nil {
			return nil, fmt.Errorf("scan label count: %w", err)
		}
		c.Label = label.Label(lbl)
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteLabel removes the label for rsid. Returns ErrNotFound when there
// was none.
func (s *Store) DeleteLabel(ctx context.Context, rsid string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM genotype_labels WHERE rsid = ?`, genome.NormalizeRSID(rsid))
	if err != nil {
		return fmt.Errorf("delete label: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
