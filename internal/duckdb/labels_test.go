package duckdb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v64/genome-browser/internal/annotation"
	"github.com/v64/genome-browser/internal/label"
)

func TestSetAndGetLabel(t *testing.T) {
	s := openInMemory(t)
	ctx := context.Background()

	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return created }
	require.NoError(t, s.SetLabel(ctx, label.GenotypeLabel{
		RSID: "RS1801133", Label: label.Risk, Confidence: label.High, Frequency: f64(10), Source: "model",
	}))

	updated := created.Add(time.Hour)
	s.now = func() time.Time { return updated }
	require.NoError(t, s.SetLabel(ctx, label.GenotypeLabel{
		RSID: "rs1801133", Label: label.Carrier, Notes: "heterozygous", Source: "user",
	}))

	got, err := s.GetLabel(ctx, "rs1801133")
	require.NoError(t, err)
	assert.Equal(t, label.Carrier, got.Label)
	assert.Equal(t, label.Confidence(""), got.Confidence)
	assert.Nil(t, got.Frequency)
	assert.Equal(t, "heterozygous", got.Notes)
	assert.Equal(t, "user", got.Source)
	assert.True(t, got.CreatedAt.Equal(created), "creation time kept on update")
	assert.True(t, got.UpdatedAt.Equal(updated))

	_, err = s.GetLabel(ctx, "rs404")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetLabelRejectsInvalid(t *testing.T) {
	s := openInMemory(t)
	ctx := context.Background()

	err := s.SetLabel(ctx, label.GenotypeLabel{RSID: "rs1", Label: "dangerous"})
	assert.ErrorIs(t, err, label.ErrInvalidLabel)

	err = s.SetLabel(ctx, label.GenotypeLabel{RSID: "rs1", Label: label.Risk, Confidence: "certain"})
	assert.ErrorIs(t, err, label.ErrInvalidConfidence)

	_, err = s.GetLabel(ctx, "rs1")
	assert.ErrorIs(t, err, ErrNotFound, "nothing persisted")
}

func TestLabelSearchAndCounts(t *testing.T) {
	s := openInMemory(t)
	ctx := context.Background()
	seedGenome(t, s)

	require.NoError(t, s.SaveAnnotation(ctx, &annotation.Annotation{RSID: "rs429358", Summary: "APOE4", Magnitude: f64(3)}))
	require.NoError(t, s.SaveAnnotation(ctx, &annotation.Annotation{RSID: "rs1801133", Summary: "MTHFR", Magnitude: f64(2)}))

	for id, l := range map[string]label.Label{
		"rs429358":  label.Risk,
		"rs1801133": label.Risk,
		"rs7412":    label.Risk,
		"rs53576":   label.Normal,
	} {
		require.NoError(t, s.SetLabel(ctx, label.GenotypeLabel{RSID: id, Label: l}))
	}

	hits, total, err := s.SearchByLabel(ctx, label.Risk, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, hits, 3)
	assert.Equal(t, "rs429358", hits[0].SNP.RSID)
	assert.Equal(t, "rs1801133", hits[1].SNP.RSID)
	assert.Equal(t, "rs7412", hits[2].SNP.RSID, "unannotated last")
	assert.Equal(t, label.Risk, hits[0].Label.Label)

	page, _, err := s.SearchByLabel(ctx, label.Risk, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "rs1801133", page[0].SNP.RSID)

	_, _, err = s.SearchByLabel(ctx, "bogus", 10, 0)
	assert.ErrorIs(t, err, label.ErrInvalidLabel)

	counts, err := s.LabelCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []label.Count{{Label: label.Risk, Count: 3}, {Label: label.Normal, Count: 1}}, counts)

	batch, err := s.LabelsFor(ctx, []string{"rs53576", "rs404"})
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, label.Normal, batch["rs53576"].Label)
}

func TestDeleteLabel(t *testing.T) {
	s := openInMemory(t)
	ctx := context.Background()

	require.NoError(t, s.SetLabel(ctx, label.GenotypeLabel{RSID: "rs1", Label: label.Rare}))
	require.NoError(t, s.DeleteLabel(ctx, "rs1"))
	assert.ErrorIs(t, s.DeleteLabel(ctx, "rs1"), ErrNotFound)
}
