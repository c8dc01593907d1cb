// Package knowledge keeps the retrieval corpus built up while enriching
// the genome and searches it with BM25 fused with embedding similarity.
package knowledge

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve"
)

// Entry sources written by the enrichment pipeline.
const (
	SourceWiki        = "snpedia"
	SourceWikiRaw     = "snpedia_raw"
	SourceImprovement = "model_improvement"
	SourceUser        = "user"
	SourceUserEdited  = "user_edited"
)

// Entry is one knowledge record.
type Entry struct {
	ID        string
	Query     string
	Content   string
	RSIDs     []string
	Category  string
	Source    string
	Embedding []float32
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Hit is a ranked search result.
type Hit struct {
	Entry Entry
	Score float64
	Rank  int
}

// Embedder turns text into a vector. It is optional; without one only
// BM25 ranking is used.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

const rrfK = 60 // reciprocal-rank-fusion constant

type document struct {
	Query    string `json:"query"`
	Content  string `json:"content"`
	Category string `json:"category"`
	RSIDs    string `json:"rsids"`
}

// Index is an in-memory search index over knowledge entries.
type Index struct {
	mu      sync.RWMutex
	bleve   bleve.Index
	entries map[string]Entry
}

// NewIndex creates an empty index.
func NewIndex() (*Index, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create search index: %w", err)
	}
	return &Index{bleve: idx, entries: make(map[string]Entry)}, nil
}

// Add indexes e, replacing any entry with the same ID.
func (i *Index) Add(e Entry) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.entries[e.ID] = e
	return i.bleve.Index(e.ID, document{
		Query:    e.Query,
		Content:  e.Content,
		Category: e.Category,
		RSIDs:    strings.Join(e.RSIDs, " "),
	})
}

// Remove drops the entry with id.
func (i *Index) Remove(id string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.entries, id)
	return i.bleve.Delete(id)
}

// Len returns the number of indexed entries.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.entries)
}

// Close releases the underlying index.
func (i *Index) Close() error {
	return i.bleve.Close()
}

// TextSearch ranks entries by BM25 over query, content, category and rsids.
func (i *Index) TextSearch(q string, k int) ([]Hit, error) {
	if strings.TrimSpace(q) == "" || k <= 0 {
		return nil, nil
	}
	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(q), k*3, 0, false)
	res, err := i.bleve.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	i.mu.RLock()
	defer i.mu.RUnlock()
	var out []Hit
	for _, h := range res.Hits {
		e, ok := i.entries[h.ID]
		if !ok {
			continue
		}
		out = append(out, Hit{Entry: e, Score: h.Score, Rank: len(out) + 1})
		if len(out) >= k {
			break
		}
	}
	return out, nil
}

// VectorSearch ranks entries carrying an embedding by cosine similarity.
func (i *Index) VectorSearch(q []float32, k int) []Hit {
	if len(q) == 0 || k <= 0 {
		return nil
	}
	i.mu.RLock()
	defer i.mu.RUnlock()

	var scored []Hit
	for _, e := range i.entries {
		if len(e.Embedding) == 0 {
			continue
		}
		scored = append(scored, Hit{Entry: e, Score: Cosine(q, e.Embedding)})
	}
	sort.Slice(scored, func(a, b int) bool {
		if scored[a].Score != scored[b].Score {
			return scored[a].Score > scored[b].Score
		}
		return scored[a].Entry.ID < scored[b].Entry.ID
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	for n := range scored {
		scored[n].Rank = n + 1
	}
	return scored
}

// Search runs a hybrid query. When embedder is nil or fails only BM25
// results are returned.
func (i *Index) Search(ctx context.Context, q string, embedder Embedder, k int) ([]Hit, error) {
	text, err := i.TextSearch(q, k)
	if err != nil {
		return nil, err
	}
	if embedder == nil {
		return text, nil
	}
	vec, err := embedder.Embed(ctx, q)
	if err != nil || len(vec) == 0 {
		return text, nil
	}
	return FuseRRF(text, i.VectorSearch(vec, k), k), nil
}

// FuseRRF merges two rankings with reciprocal rank fusion.
func FuseRRF(a, b []Hit, k int) []Hit {
	type agg struct {
		hit   Hit
		score float64
	}
	m := map[string]*agg{}
	add := func(list []Hit) {
		for _, h := range list {
			x, ok := m[h.Entry.ID]
			if !ok {
				x = &agg{hit: h}
				m[h.Entry.ID] = x
			}
			x.score += 1.0 / float64(rrfK+h.Rank)
		}
	}
	add(a)
	add(b)

	items := make([]*agg, 0, len(m))
	for _, v := range m {
		items = append(items, v)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].score != items[j].score {
			return items[i].score > items[j].score
		}
		return items[i].hit.Entry.ID < items[j].hit.Entry.ID
	})
	n := min(k, len(items))
	out := make([]Hit, 0, n)
	for i := 0; i < n; i++ {
		h := items[i].hit
		h.Score = items[i].score
		h.Rank = i + 1
		out = append(out, h)
	}
	return out
}

// Cosine returns the cosine similarity of a and b, 0 for zero vectors.
func Cosine(a, b []float32) float64 {
	var dot, na, nb float64
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		ai := float64(a[i])
		bi := float64(b[i])
		dot += ai * bi
		na += ai * ai
		nb += bi * bi
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

var rsidPattern = regexp.MustCompile(`(?i)\brs\d+\b`)

// ExtractRSIDs returns the distinct rsids mentioned in text, lower-cased,
// in order of first appearance.
func ExtractRSIDs(text string) []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range rsidPattern.FindAllString(text, -1) {
		id := strings.ToLower(m)
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
