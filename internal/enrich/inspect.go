package enrich

import (
	"context"
	"errors"

	"github.com/v64/genome-browser/internal/duckdb"
	"github.com/v64/genome-browser/internal/genotype"
	"github.com/v64/genome-browser/internal/label"
	"github.com/v64/genome-browser/internal/repute"
)

// View is a variant as presented to the user: its annotation, the table
// entry matching the user's genotype, and the effective repute.
type View struct {
	duckdb.Variant
	Match     genotype.Match
	Label     *label.GenotypeLabel
	Effective repute.Polarity
}

// Inspect builds the View of rsid. Returns duckdb.ErrNotFound when the
// SNP is not in the genome.
func (e *Enricher) Inspect(ctx context.Context, rsid string) (*View, error) {
	v, err := e.store.GetVariant(ctx, rsid)
	if err != nil {
		return nil, err
	}
	l, err := e.store.GetLabel(ctx, rsid)
	if err != nil && !errors.Is(err, duckdb.ErrNotFound) {
		return nil, err
	}
	return e.view(*v, l), nil
}

// InspectAll builds views for variants, loading their labels in one query.
func (e *Enricher) InspectAll(ctx context.Context, variants []duckdb.Variant) ([]View, error) {
	ids := make([]string, len(variants))
	for i, v := range variants {
		ids[i] = v.SNP.RSID
	}
	labels, err := e.store.LabelsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]View, len(variants))
	for i, v := range variants {
		out[i] = *e.view(v, labels[v.SNP.RSID])
	}
	return out, nil
}

func (e *Enricher) view(v duckdb.Variant, l *label.GenotypeLabel) *View {
	out := &View{Variant: v, Label: l}
	var lbl label.Label
	if l != nil {
		lbl = l.Label
	}
	if v.Annotation == nil {
		// A label needs no genotype table.
		if lbl != "" {
			out.Effective = e.classifier.Classify(nil, v.SNP.Genotype, repute.None, lbl)
		}
		return out
	}
	out.Match = genotype.MatchGenotype(v.Annotation.Genotypes, v.SNP.Genotype)
	out.Effective = e.classifier.Classify(v.Annotation.Genotypes, v.SNP.Genotype, v.Annotation.Repute, lbl)
	return out
}
