package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/v64/genome-browser/internal/annotation"
	"github.com/v64/genome-browser/internal/genome"
)

// Variant joins a genotyped SNP with its annotation, if any.
type Variant struct {
	SNP        genome.SNP
	Annotation *annotation.Annotation
	Favorite   bool
}

// ReplaceSNPs swaps the stored genome for snps using the Appender API.
// Duplicate rsids are deduplicated before writing; the first call wins.
func (s *Store) ReplaceSNPs(ctx context.Context, snps []genome.SNP) (int, error) {
	seen := make(map[string]bool, len(snps))
	deduped := make([]genome.SNP, 0, len(snps))
	for _, snp := range snps {
		id := genome.NormalizeRSID(snp.RSID)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		snp.RSID = id
		deduped = append(deduped, snp)
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM snps"); err != nil {
		return 0, fmt.Errorf("clear snps: %w", err)
	}
	if len(deduped) == 0 {
		return 0, nil
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return 0, fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", "snps")
		return err
	}); err != nil {
		return 0, fmt.Errorf("create appender: %w", err)
	}
	defer appender.Close()

	for _, snp := range deduped {
		if err := appender.AppendRow(snp.RSID, snp.Chromosome, snp.Position, snp.Genotype); err != nil {
			return 0, fmt.Errorf("append snp %s: %w", snp.RSID, err)
		}
	}

	if err := appender.Flush(); err != nil {
		return 0, fmt.Errorf("flush snps: %w", err)
	}
	return len(deduped), nil
}

// GetSNP returns the user's call at rsid.
func (s *Store) GetSNP(ctx context.Context, rsid string) (*genome.SNP, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT rsid, chromosome, position, genotype FROM snps WHERE rsid = ?`,
		genome.NormalizeRSID(rsid))

	var snp genome.SNP
	if err := row.Scan(&snp.RSID, &snp.Chromosome, &snp.Position, &snp.Genotype); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query snp: %w", err)
	}
	return &snp, nil
}

// CountSNPs returns the number of stored SNPs.
func (s *Store) CountSNPs(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM snps").Scan(&n); err != nil {
		return 0, fmt.Errorf("count snps: %w", err)
	}
	return n, nil
}

// ChromosomeCounts returns the number of SNPs per chromosome.
func (s *Store) ChromosomeCounts(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT chromosome, COUNT(*) FROM snps GROUP BY chromosome")
	if err != nil {
		return nil, fmt.Errorf("query chromosome counts: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var chrom string
		var n int64
		if err := rows.Scan(&chrom, &n); err != nil {
			return nil, fmt.Errorf("scan chromosome count: %w", err)
		}
		out[chrom] = n
	}
	return out, rows.Err()
}

const variantColumns = `s.rsid, s.chromosome, s.position, s.genotype,
		a.rsid, ` + annotationColumnsA + `,
		f.rsid IS NOT NULL`

const variantJoins = `FROM snps s
		LEFT JOIN annotations a ON s.rsid = a.rsid
		LEFT JOIN favorites f ON s.rsid = f.rsid`

// GetVariant returns the SNP at rsid with its annotation.
func (s *Store) GetVariant(ctx context.Context, rsid string) (*Variant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+variantColumns+` `+variantJoins+` WHERE s.rsid = ?`,
		genome.NormalizeRSID(rsid))
	if err != nil {
		return nil, fmt.Errorf("query variant: %w", err)
	}
	defer rows.Close()

	vs, err := scanVariants(rows)
	if err != nil {
		return nil, err
	}
	if len(vs) == 0 {
		return nil, ErrNotFound
	}
	return &vs[0], nil
}

// NotableVariants returns called SNPs whose annotation magnitude is at
// least minMagnitude, most important first.
func (s *Store) NotableVariants(ctx context.Context, minMagnitude float64, limit int) ([]Variant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+variantColumns+` `+variantJoins+`
		WHERE a.magnitude >= ? AND s.genotype <> '--'
		ORDER BY a.magnitude DESC, s.rsid
		LIMIT ?`, minMagnitude, limit)
	if err != nil {
		return nil, fmt.Errorf("query notable variants: %w", err)
	}
	defer rows.Close()

	return scanVariants(rows)
}

// VariantFilter narrows SearchVariants. Zero values are ignored.
type VariantFilter struct {
	Text         string
	Chromosome   string
	Category     string
	Gene         string
	MinMagnitude *float64
	Repute       string
	Annotated    *bool
	Favorites    bool
	Limit        int
	Offset       int
}

// SearchVariants lists variants matching f ordered by magnitude.
func (s *Store) SearchVariants(ctx context.Context, f VariantFilter) ([]Variant, error) {
	var conds []string
	var args []any
	if f.Text != "" {
		p := "%" + f.Text + "%"
		conds = append(conds, "(s.rsid ILIKE ? OR a.gene ILIKE ? OR a.summary ILIKE ? OR a.categories ILIKE ?)")
		args = append(args, p, p, p, p)
	}
	if f.Chromosome != "" {
		conds = append(conds, "s.chromosome = ?")
		args = append(args, f.Chromosome)
	}
	if f.Category != "" {
		conds = append(conds, "a.categories ILIKE ?")
		args = append(args, "%"+f.Category+"%")
	}
	if f.Gene != "" {
		conds = append(conds, "a.gene ILIKE ?")
		args = append(args, "%"+f.Gene+"%")
	}
	if f.MinMagnitude != nil {
		conds = append(conds, "a.magnitude >= ?")
		args = append(args, *f.MinMagnitude)
	}
	if f.Repute != "" {
		conds = append(conds, "a.repute = ?")
		args = append(args, f.Repute)
	}
	if f.Annotated != nil {
		if *f.Annotated {
			conds = append(conds, "a.rsid IS NOT NULL")
		} else {
			conds = append(conds, "a.rsid IS NULL")
		}
	}
	if f.Favorites {
		conds = append(conds, "f.rsid IS NOT NULL")
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	q := `SELECT ` + variantColumns + ` ` + variantJoins
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY a.magnitude DESC NULLS LAST, s.rsid LIMIT ? OFFSET ?"
	args = append(args, limit, f.Offset)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("search variants: %w", err)
	}
	defer rows.Close()

	return scanVariants(rows)
}

// RandomUnimproved picks a called SNP whose annotation is missing or has
// not been improved, skipping the rsids in exclude.
func (s *Store) RandomUnimproved(ctx context.Context, exclude []string) (*genome.SNP, error) {
	q := `SELECT s.rsid, s.chromosome, s.position, s.genotype
		FROM snps s
		LEFT JOIN annotations a ON s.rsid = a.rsid
		WHERE s.genotype <> '--'
		AND a.improved_at IS NULL
		AND (a.source IS NULL OR a.source = 'snpedia')`
	args := make([]any, 0, len(exclude))
	if len(exclude) > 0 {
		q += " AND s.rsid NOT IN (" + placeholders(len(exclude)) + ")"
		for _, id := range exclude {
			args = append(args, id)
		}
	}
	q += " ORDER BY random() LIMIT 1"

	var snp genome.SNP
	err := s.db.QueryRowContext(ctx, q, args...).Scan(&snp.RSID, &snp.Chromosome, &snp.Position, &snp.Genotype)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query random snp: %w", err)
	}
	return &snp, nil
}

// UnannotatedSample returns up to limit random SNPs without an annotation.
func (s *Store) UnannotatedSample(ctx context.Context, limit int) ([]genome.SNP, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT s.rsid, s.chromosome, s.position, s.genotype
		FROM snps s
		LEFT JOIN annotations a ON s.rsid = a.rsid
		WHERE a.rsid IS NULL
		ORDER BY random()
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query unannotated snps: %w", err)
	}
	defer rows.Close()

	var out []genome.SNP
	for rows.Next() {
		var snp genome.SNP
		if err := rows.Scan(&snp.RSID, &snp.Chromosome, &snp.Position, &snp.Genotype); err != nil {
			return nil, fmt.Errorf("scan snp: %w", err)
		}
		out = append(out, snp)
	}
	return out, rows.Err()
}

// Unannotated filters rsids down to those present in the genome but
// lacking an annotation.
func (s *Store) Unannotated(ctx context.Context, rsids []string) ([]string, error) {
	if len(rsids) == 0 {
		return nil, nil
	}
	args := make([]any, len(rsids))
	for i, id := range rsids {
		args[i] = genome.NormalizeRSID(id)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT s.rsid FROM snps s
		WHERE s.rsid IN (`+placeholders(len(rsids))+`)
		AND s.rsid NOT IN (SELECT rsid FROM annotations)
		ORDER BY s.rsid`, args...)
	if err != nil {
		return nil, fmt.Errorf("query unannotated: %w", err)
	}
	defer rows.Close()

	return scanStrings(rows)
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan value: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate values: %w", err)
	}
	return out, nil
}

// scanVariants scans rows selected with variantColumns.
func scanVariants(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]Variant, error) {
	var out []Variant
	for rows.Next() {
		var v Variant
		var annID sql.NullString
		var rec annotationRecord
		dest := []any{&v.SNP.RSID, &v.SNP.Chromosome, &v.SNP.Position, &v.SNP.Genotype, &annID}
		dest = append(dest, rec.dest()...)
		dest = append(dest, &v.Favorite)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		if annID.Valid {
			a, err := rec.annotation(annID.String)
			if err != nil {
				return nil, err
			}
			v.Annotation = a
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate variants: %w", err)
	}
	return out, nil
}
