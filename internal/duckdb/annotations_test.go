package duckdb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v64/genome-browser/internal/annotation"
	"github.com/v64/genome-browser/internal/repute"
)

func wikiAnnotation() *annotation.Annotation {
	return &annotation.Annotation{
		RSID:       "rs1801133",
		Summary:    "Common MTHFR variant.",
		Magnitude:  f64(2.5),
		Repute:     repute.Bad,
		Gene:       "MTHFR",
		Categories: []string{"health"},
		Genotypes:  map[string]string{"CC": "normal", "CT": "reduced activity", "TT": "much reduced"},
		References: []string{"https://pubmed.example/1"},
	}
}

func TestSaveAndGetAnnotation(t *testing.T) {
	s := openInMemory(t)
	ctx := context.Background()

	require.NoError(t, s.SaveAnnotation(ctx, wikiAnnotation()))

	got, err := s.GetAnnotation(ctx, "RS1801133")
	require.NoError(t, err)
	assert.Equal(t, "Common MTHFR variant.", got.Summary)
	assert.Equal(t, 2.5, *got.Magnitude)
	assert.Equal(t, repute.Bad, got.Repute)
	assert.Equal(t, "MTHFR", got.Gene)
	assert.Equal(t, []string{"health"}, got.Categories)
	assert.Equal(t, "reduced activity", got.Genotypes["CT"])
	assert.Equal(t, []string{"https://pubmed.example/1"}, got.References)
	assert.Equal(t, annotation.SourceWiki, got.Source)
	assert.False(t, got.FetchedAt.IsZero())
	assert.False(t, got.IsImproved())
	assert.Nil(t, got.ImprovedAt)

	_, err = s.GetAnnotation(ctx, "rs404")
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := s.CountAnnotations(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSaveAnnotationNilMagnitude(t *testing.T) {
	s := openInMemory(t)
	ctx := context.Background()

	require.NoError(t, s.SaveAnnotation(ctx, &annotation.Annotation{RSID: "rs1", Summary: "x"}))
	got, err := s.GetAnnotation(ctx, "rs1")
	require.NoError(t, err)
	assert.Nil(t, got.Magnitude)
	assert.Equal(t, repute.None, got.Repute)
	assert.Empty(t, got.Genotypes)
}

func TestImproveAndRevert(t *testing.T) {
	s := openInMemory(t)
	ctx := context.Background()
	s.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	require.NoError(t, s.SaveAnnotation(ctx, wikiAnnotation()))

	first := "Model summary one."
	improved, err := s.ImproveAnnotation(ctx, "rs1801133", annotation.Improvement{
		Summary:    &first,
		Genotypes:  map[string]string{"C;C": "typical", "C;T": "mildly reduced"},
		Categories: []string{"Health", "Nutrition"},
		Source:     annotation.SourceModel,
	})
	require.NoError(t, err)
	assert.Equal(t, first, improved.Summary)

	got, err := s.GetAnnotation(ctx, "rs1801133")
	require.NoError(t, err)
	assert.Equal(t, first, got.Summary)
	assert.Equal(t, "mildly reduced", got.Genotypes["CT"])
	assert.Equal(t, []string{"health", "nutrition"}, got.Categories)
	assert.Equal(t, annotation.SourceModel, got.Source)
	require.NotNil(t, got.ImprovedAt)
	assert.True(t, got.IsImproved())
	assert.True(t, got.HasOriginal)
	assert.Equal(t, "Common MTHFR variant.", got.OriginalSummary)

	second := "User summary two."
	_, err = s.ImproveAnnotation(ctx, "rs1801133", annotation.Improvement{Summary: &second, Source: annotation.SourceUser})
	require.NoError(t, err)

	got, err = s.GetAnnotation(ctx, "rs1801133")
	require.NoError(t, err)
	assert.Equal(t, second, got.Summary)
	assert.Equal(t, annotation.SourceUser, got.Source)
	assert.Equal(t, "Common MTHFR variant.", got.OriginalSummary, "first original kept")

	reverted, err := s.RevertAnnotation(ctx, "rs1801133")
	require.NoError(t, err)
	assert.Equal(t, "Common MTHFR variant.", reverted.Summary)

	got, err = s.GetAnnotation(ctx, "rs1801133")
	require.NoError(t, err)
	assert.Equal(t, "Common MTHFR variant.", got.Summary)
	assert.Equal(t, "reduced activity", got.Genotypes["CT"])
	assert.Equal(t, annotation.SourceWiki, got.Source)
	assert.Nil(t, got.ImprovedAt)
	assert.False(t, got.HasOriginal)

	_, err = s.RevertAnnotation(ctx, "rs1801133")
	assert.ErrorIs(t, err, ErrNothingToRevert)
}

func TestImproveMissingAnnotation(t *testing.T) {
	s := openInMemory(t)
	summary := "x"
	_, err := s.ImproveAnnotation(context.Background(), "rs404", annotation.Improvement{Summary: &summary})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.RevertAnnotation(context.Background(), "rs404")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestImproveAnnotationIf(t *testing.T) {
	s := openInMemory(t)
	ctx := context.Background()
	require.NoError(t, s.SaveAnnotation(ctx, wikiAnnotation()))

	notImproved := func(a *annotation.Annotation) bool { return !a.IsImproved() }

	mine := "User summary."
	_, err := s.ImproveAnnotationIf(ctx, "rs1801133", annotation.Improvement{Summary: &mine, Source: annotation.SourceUser}, notImproved)
	require.NoError(t, err)

	model := "Model summary."
	_, err = s.ImproveAnnotationIf(ctx, "rs1801133", annotation.Improvement{Summary: &model, Source: annotation.SourceModel}, notImproved)
	assert.ErrorIs(t, err, ErrConditionFailed)

	got, err := s.GetAnnotation(ctx, "rs1801133")
	require.NoError(t, err)
	assert.Equal(t, mine, got.Summary)
	assert.Equal(t, annotation.SourceUser, got.Source)
}
