package snpedia

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v64/genome-browser/internal/duckdb"
	"github.com/v64/genome-browser/internal/repute"
)

// countingSource wraps a PageSource and counts network requests per page.
type countingSource struct {
	mu    sync.Mutex
	pages map[string]*Page
	hits  map[string]int
}

func (c *countingSource) FetchPage(_ context.Context, name string) (*Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hits[name]++
	p, ok := c.pages[name]
	if !ok {
		return nil, ErrPageNotFound
	}
	cp := *p
	return &cp, nil
}

func (c *countingSource) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.hits {
		n += v
	}
	return n
}

func newSource() *countingSource {
	return &countingSource{
		hits: map[string]int{},
		pages: map[string]*Page{
			"rs429358": {Name: "rs429358", Wikitext: "{{Rsnum|rsid=429358|Gene=APOE}}\nOne of the two SNPs that define the APOE alleles.",
				Categories: []string{"Alzheimer's disease"}},
			"Rs429358(C;C)": {Wikitext: "{{Genotype|magnitude=3|repute=Bad|summary=two copies of the APOE4 allele}}"},
			"Rs429358(C;T)": {Wikitext: "{{Genotype|magnitude=2.5|repute=Bad|summary=one copy of the APOE4 allele}}"},
			"Rs429358(T;T)": {Wikitext: "{{Genotype|magnitude=0|repute=Good|summary=no APOE4 alleles present}}"},
		},
	}
}

func openStore(t *testing.T) *duckdb.Store {
	t.Helper()
	s, err := duckdb.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestFetcherFetch(t *testing.T) {
	src := newSource()
	f := NewFetcher(src, openStore(t))
	f.SetRequestDelay(0)

	res, err := f.Fetch(context.Background(), "RS429358")
	require.NoError(t, err)

	a := res.Annotation
	assert.Equal(t, "rs429358", a.RSID)
	assert.Equal(t, "APOE", a.Gene)
	assert.Equal(t, "One of the two SNPs that define the APOE alleles.", a.Summary)
	assert.Equal(t, []string{"health"}, a.Categories)
	require.NotNil(t, a.Magnitude)
	assert.Equal(t, 3.0, *a.Magnitude, "max genotype magnitude")
	assert.Equal(t, repute.Bad, a.Repute, "first genotype repute in page order")
	assert.Equal(t, map[string]string{
		"CC": "two copies of the APOE4 allele",
		"CT": "one copy of the APOE4 allele",
		"TT": "no APOE4 alleles present",
	}, a.Genotypes)

	require.Len(t, res.Fetched, 4)
	assert.Equal(t, KindMain, res.Fetched[0].Kind)
	assert.Equal(t, KindGenotype, res.Fetched[1].Kind)
	assert.Equal(t, "C;C", res.Fetched[1].Genotype)
	assert.Equal(t, 1+len(GenotypePages), src.total())
}

func TestFetcherNeverRefetchesCachedPages(t *testing.T) {
	src := newSource()
	f := NewFetcher(src, openStore(t))
	f.SetRequestDelay(0)

	_, err := f.Fetch(context.Background(), "rs429358")
	require.NoError(t, err)
	first := src.total()

	res, err := f.Fetch(context.Background(), "rs429358")
	require.NoError(t, err)
	assert.Empty(t, res.Fetched)
	assert.Equal(t, "APOE", res.Annotation.Gene)
	// Missing genotype pages are not cached, so only they are asked for again.
	assert.Equal(t, first+len(GenotypePages)-3, src.total())
	assert.Equal(t, 1, src.hits["rs429358"])
	assert.Equal(t, 1, src.hits["Rs429358(C;C)"])
}

func TestFetcherMainPageMissing(t *testing.T) {
	f := NewFetcher(newSource(), nil)
	f.SetRequestDelay(0)

	_, err := f.Fetch(context.Background(), "rs404")
	assert.ErrorIs(t, err, ErrPageNotFound)
}

func TestFetcherMainPageMagnitudeWins(t *testing.T) {
	src := newSource()
	src.pages["rs429358"].Wikitext = "{{Rsnum|rsid=429358|magnitude=1.5|repute=Good}}"
	f := NewFetcher(src, nil)
	f.SetRequestDelay(0)

	res, err := f.Fetch(context.Background(), "rs429358")
	require.NoError(t, err)
	assert.Equal(t, 1.5, *res.Annotation.Magnitude)
	assert.Equal(t, repute.Good, res.Annotation.Repute)
}
