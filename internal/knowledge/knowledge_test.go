package knowledge

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T, entries ...Entry) *Index {
	t.Helper()
	idx, err := NewIndex()
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	for _, e := range entries {
		require.NoError(t, idx.Add(e))
	}
	return idx
}

var corpus = []Entry{
	{ID: "a", Query: "What is rs429358?", Content: "APOE e4 allele raises Alzheimer's disease risk.", RSIDs: []string{"rs429358"}, Embedding: []float32{1, 0}},
	{ID: "b", Query: "What is rs1801133?", Content: "MTHFR C677T reduces folate metabolism.", RSIDs: []string{"rs1801133"}, Embedding: []float32{0, 1}},
	{ID: "c", Query: "What is rs4988235?", Content: "Lactase persistence, tolerance of milk in adults.", RSIDs: []string{"rs4988235"}},
}

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	return f.vec, f.err
}

func TestTextSearch(t *testing.T) {
	idx := newTestIndex(t, corpus...)
	assert.Equal(t, 3, idx.Len())

	hits, err := idx.TextSearch("APOE", 5)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "a", hits[0].Entry.ID)
	assert.Equal(t, 1, hits[0].Rank)

	hits, err = idx.TextSearch("   ", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestRemove(t *testing.T) {
	idx := newTestIndex(t, corpus...)
	require.NoError(t, idx.Remove("a"))
	assert.Equal(t, 2, idx.Len())

	hits, err := idx.TextSearch("APOE", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestVectorSearch(t *testing.T) {
	idx := newTestIndex(t, corpus...)

	hits := idx.VectorSearch([]float32{0.1, 0.9}, 5)
	require.Len(t, hits, 2, "entries without embeddings are skipped")
	assert.Equal(t, "b", hits[0].Entry.ID)
	assert.Equal(t, "a", hits[1].Entry.ID)
	assert.Equal(t, 2, hits[1].Rank)

	assert.Nil(t, idx.VectorSearch(nil, 5))
}

func TestSearch_Hybrid(t *testing.T) {
	idx := newTestIndex(t, corpus...)

	// Text favours "b" (folate), the vector favours "a"; both must appear.
	hits, err := idx.Search(context.Background(), "folate", fakeEmbedder{vec: []float32{1, 0}}, 5)
	require.NoError(t, err)
	var ids []string
	for _, h := range hits {
		ids = append(ids, h.Entry.ID)
	}
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
	assert.Equal(t, "b", hits[0].Entry.ID, "an entry ranked by both lists wins")
}

func TestSearch_EmbedderFailureFallsBack(t *testing.T) {
	idx := newTestIndex(t, corpus...)

	hits, err := idx.Search(context.Background(), "milk", fakeEmbedder{err: errors.New("offline")}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "c", hits[0].Entry.ID)

	hits, err = idx.Search(context.Background(), "milk", nil, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
}

func TestFuseRRF(t *testing.T) {
	mk := func(ids ...string) []Hit {
		out := make([]Hit, len(ids))
		for i, id := range ids {
			out[i] = Hit{Entry: Entry{ID: id}, Rank: i + 1}
		}
		return out
	}

	got := FuseRRF(mk("x", "y", "z"), mk("y", "w"), 3)
	require.Len(t, got, 3)
	assert.Equal(t, "y", got[0].Entry.ID)
	assert.Equal(t, "x", got[1].Entry.ID)
	assert.InDelta(t, 1.0/62+1.0/61, got[0].Score, 1e-12)
	for i, h := range got {
		assert.Equal(t, i+1, h.Rank)
	}

	assert.Empty(t, FuseRRF(nil, nil, 5))
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, Cosine([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Zero(t, Cosine([]float32{0, 0}, []float32{1, 1}))
}

func TestExtractRSIDs(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{"APOE is rs429358 and RS7412; also rs429358 again.", []string{"rs429358", "rs7412"}},
		{"no ids here, not even xrs123", nil},
		{"(rs1801133)", []string{"rs1801133"}},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractRSIDs(tt.text))
		})
	}
}
