// Package annotation defines the per-SNP annotation record and the rules
// for applying overrides to it.
package annotation

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/v64/genome-browser/internal/genotype"
	"github.com/v64/genome-browser/internal/repute"
)

// Source records who produced the current annotation content.
type Source string

const (
	SourceWiki  Source = "snpedia"
	SourceModel Source = "model"
	SourceUser  Source = "user"
)

// Annotation is the stored knowledge about one SNP.
type Annotation struct {
	RSID       string
	Summary    string
	Magnitude  *float64
	Repute     repute.Polarity
	Gene       string
	Categories []string
	// Genotypes maps a canonical genotype to its interpretation. Keys may be
	// on either strand; look them up through genotype.MatchGenotype.
	Genotypes  map[string]string
	References []string
	Source     Source
	FetchedAt  time.Time

	// Originals captured by the first override, restored by a revert.
	HasOriginal       bool
	OriginalSummary   string
	OriginalGenotypes map[string]string
	ImprovedAt        *time.Time
}

// IsImproved reports whether the annotation carries a model or user override.
func (a *Annotation) IsImproved() bool {
	return a.ImprovedAt != nil || a.Source == SourceModel || a.Source == SourceUser
}

// Interpretation returns the table text for userGenotype.
func (a *Annotation) Interpretation(userGenotype string) genotype.Match {
	return genotype.MatchGenotype(a.Genotypes, userGenotype)
}

// Improvement is an override applied on top of an annotation. Nil fields
// are left untouched.
type Improvement struct {
	Summary    *string
	Genotypes  map[string]string
	Categories []string
	Source     Source
}

// Apply returns a copy of a with imp applied at time now. The first
// override captures the original summary and genotype table; later
// overrides leave the captured originals alone.
func Apply(a Annotation, imp Improvement, now time.Time) Annotation {
	out := a
	if !out.HasOriginal && (imp.Summary != nil || imp.Genotypes != nil) {
		out.HasOriginal = true
		out.OriginalSummary = a.Summary
		out.OriginalGenotypes = copyTable(a.Genotypes)
	}
	if imp.Summary != nil {
		out.Summary = *imp.Summary
	}
	if imp.Genotypes != nil {
		out.Genotypes = NormalizeTable(imp.Genotypes)
	}
	if imp.Categories != nil {
		out.Categories = MergeCategories(a.Categories, imp.Categories)
	}
	out.Source = imp.Source
	if out.Source == "" {
		out.Source = SourceModel
	}
	t := now
	out.ImprovedAt = &t
	return out
}

// Revert restores the captured originals. ok is false when there is
// nothing to revert.
func Revert(a Annotation) (Annotation, bool) {
	if !a.HasOriginal {
		return a, false
	}
	out := a
	out.Summary = a.OriginalSummary
	out.Genotypes = copyTable(a.OriginalGenotypes)
	out.HasOriginal = false
	out.OriginalSummary = ""
	out.OriginalGenotypes = nil
	out.Source = SourceWiki
	out.ImprovedAt = nil
	return out, true
}

// NormalizeTable canonicalizes genotype keys ("A;G" -> "AG") and drops
// empty keys or texts.
func NormalizeTable(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		k = genotype.Normalize(strings.TrimSpace(k))
		v = strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		out[k] = v
	}
	return out
}

// MergeCategories appends added to existing, skipping case-insensitive
// duplicates. Newly added categories are stored lower-case.
func MergeCategories(existing, added []string) []string {
	fold := cases.Fold()
	seen := make(map[string]bool, len(existing)+len(added))
	out := make([]string, 0, len(existing)+len(added))
	for _, c := range existing {
		key := fold.String(strings.TrimSpace(c))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	lower := cases.Lower(language.Und)
	for _, c := range added {
		c = strings.TrimSpace(c)
		key := fold.String(c)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, lower.String(c))
	}
	return out
}

func copyTable(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
