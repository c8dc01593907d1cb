// Package enrich turns raw SNP calls into annotated, explained variants:
// it fetches wiki annotations, asks the oracle for plain-language rewrites
// and records everything it learns in the store.
package enrich

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/v64/genome-browser/internal/annotation"
	"github.com/v64/genome-browser/internal/duckdb"
	"github.com/v64/genome-browser/internal/knowledge"
	"github.com/v64/genome-browser/internal/metrics"
	"github.com/v64/genome-browser/internal/oracle"
	"github.com/v64/genome-browser/internal/repute"
	"github.com/v64/genome-browser/internal/snpedia"
)

// Data log sources and types written by the enricher.
const (
	LogSourceWiki  = "snpedia"
	LogSourceModel = "model"
	LogSourceUser  = "user"

	LogTypeImprovement = "annotation_improvement"
	LogTypeEdit        = "annotation_edit"
	LogTypeRevert      = "annotation_revert"
)

// DefaultConcurrency bounds ImproveBatch.
const DefaultConcurrency = 4

// Enricher coordinates the store, the wiki fetcher and the oracle.
type Enricher struct {
	store      *duckdb.Store
	fetcher    *snpedia.Fetcher
	oracle     oracle.Oracle
	embedder   knowledge.Embedder
	index      *knowledge.Index
	classifier *repute.Classifier
	metrics    *metrics.Metrics

	concurrency int
	logger      *zap.Logger

	// mu guards inflight and the lazily loaded index.
	mu       sync.Mutex
	inflight map[string]bool
}

// New creates an enricher. fetcher and orc may be nil, disabling wiki
// fetches and improvements respectively.
func New(store *duckdb.Store, fetcher *snpedia.Fetcher, orc oracle.Oracle) *Enricher {
	return &Enricher{
		store:       store,
		fetcher:     fetcher,
		oracle:      orc,
		classifier:  repute.NewClassifier(repute.DefaultPhrases()),
		concurrency: DefaultConcurrency,
		logger:      zap.NewNop(),
		inflight:    make(map[string]bool),
	}
}

// SetLogger sets the logger.
func (e *Enricher) SetLogger(l *zap.Logger) {
	e.logger = l
}

// SetEmbedder enables embeddings on new knowledge entries.
func (e *Enricher) SetEmbedder(emb knowledge.Embedder) {
	e.embedder = emb
}

// SetIndex keeps idx in sync with knowledge entries written by the enricher.
func (e *Enricher) SetIndex(idx *knowledge.Index) {
	e.mu.Lock()
	e.index = idx
	e.mu.Unlock()
}

func (e *Enricher) currentIndex() *knowledge.Index {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.index
}

// SetClassifier replaces the repute classifier.
func (e *Enricher) SetClassifier(c *repute.Classifier) {
	e.classifier = c
}

// SetMetrics sets the Prometheus collectors.
func (e *Enricher) SetMetrics(m *metrics.Metrics) {
	e.metrics = m
}

// SetConcurrency bounds ImproveBatch parallelism.
func (e *Enricher) SetConcurrency(n int) {
	if n > 0 {
		e.concurrency = n
	}
}

// Store returns the underlying store.
func (e *Enricher) Store() *duckdb.Store {
	return e.store
}

// Oracle returns the configured oracle, possibly nil.
func (e *Enricher) Oracle() oracle.Oracle {
	return e.oracle
}

// FetchAnnotation reads rsid from the wiki and stores the annotation. Pages
// that came from the network are written to the data log, and the parsed
// annotation is added to the knowledge base. An annotation that already
// carries a model or user override is returned unchanged.
func (e *Enricher) FetchAnnotation(ctx context.Context, rsid string) (*annotation.Annotation, error) {
	if e.fetcher == nil {
		return nil, fmt.Errorf("fetch %s: no wiki fetcher configured", rsid)
	}
	rsid = strings.ToLower(strings.TrimSpace(rsid))

	res, err := e.fetcher.Fetch(ctx, rsid)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rsid, err)
	}

	for _, p := range res.Fetched {
		e.metrics.WikiPage(p.Kind)
		entry := &duckdb.LogEntry{
			Source:      LogSourceWiki,
			DataType:    p.Kind,
			ReferenceID: rsid,
			Content:     p.Wikitext,
			Metadata:    map[string]any{"page": p.Name, "categories": p.Categories},
		}
		if p.Kind == snpedia.KindGenotype {
			entry.ReferenceID = p.Name
			entry.Metadata["rsid"] = rsid
			entry.Metadata["genotype"] = p.Genotype
		}
		if err := e.store.AppendLog(ctx, entry); err != nil {
			e.logger.Warn("data log write failed", zap.String("rsid", rsid), zap.Error(err))
		}
		if p.Kind == snpedia.KindMain {
			e.remember(ctx, &knowledge.Entry{
				Query:   "SNPedia page for " + rsid,
				Content: p.Wikitext,
				RSIDs:   []string{rsid},
				Source:  knowledge.SourceWikiRaw,
			})
		}
	}

	existing, err := e.store.GetAnnotation(ctx, rsid)
	if err == nil && existing.IsImproved() {
		e.logger.Debug("keeping improved annotation", zap.String("rsid", rsid))
		return existing, nil
	}

	a := res.Annotation
	if err := e.store.SaveAnnotation(ctx, a); err != nil {
		return nil, err
	}
	e.remember(ctx, wikiKnowledge(a))

	e.logger.Info("annotation fetched",
		zap.String("rsid", rsid),
		zap.Int("pages_fetched", len(res.Fetched)),
		zap.Int("genotypes", len(a.Genotypes)))
	return a, nil
}

// wikiKnowledge renders a wiki annotation as a knowledge entry.
func wikiKnowledge(a *annotation.Annotation) *knowledge.Entry {
	var b strings.Builder
	fmt.Fprintf(&b, "SNP: %s\n", a.RSID)
	if a.Gene != "" {
		fmt.Fprintf(&b, "Gene: %s\n", a.Gene)
	}
	if a.Summary != "" {
		fmt.Fprintf(&b, "Summary: %s\n", a.Summary)
	}
	if a.Magnitude != nil {
		fmt.Fprintf(&b, "Importance: %s/10\n", formatMagnitude(*a.Magnitude))
	}
	if a.Repute != repute.None {
		fmt.Fprintf(&b, "Effect: %s\n", a.Repute)
	}
	writeGenotypes(&b, a.Genotypes, "")

	subject := a.Gene
	if subject == "" {
		subject = a.RSID
	}
	var category string
	if len(a.Categories) > 0 {
		category = a.Categories[0]
	}
	return &knowledge.Entry{
		Query:    fmt.Sprintf("What is %s? What does %s do?", a.RSID, subject),
		Content:  strings.TrimSpace(b.String()),
		RSIDs:    []string{a.RSID},
		Category: category,
		Source:   knowledge.SourceWiki,
	}
}

// remember saves a knowledge entry, embedding it when an embedder is set.
// Failures are logged; knowledge is auxiliary to the annotation itself.
func (e *Enricher) remember(ctx context.Context, k *knowledge.Entry) {
	if err := e.Remember(ctx, k); err != nil {
		e.logger.Warn("knowledge write failed", zap.String("query", k.Query), zap.Error(err))
	}
}

// Remember embeds (when possible), saves and indexes a knowledge entry.
func (e *Enricher) Remember(ctx context.Context, k *knowledge.Entry) error {
	if len(k.RSIDs) == 0 {
		k.RSIDs = knowledge.ExtractRSIDs(k.Query + " " + k.Content)
	}
	if e.embedder != nil && len(k.Embedding) == 0 {
		vec, err := e.embedder.Embed(ctx, k.Query+"\n"+k.Content)
		if err != nil {
			e.logger.Debug("embedding failed", zap.Error(err))
		} else {
			k.Embedding = vec
		}
	}
	if err := e.store.SaveKnowledge(ctx, k); err != nil {
		return err
	}
	if idx := e.currentIndex(); idx != nil {
		if err := idx.Add(*k); err != nil {
			return fmt.Errorf("index knowledge: %w", err)
		}
	}
	return nil
}

// Forget deletes a knowledge entry from the store and the index.
func (e *Enricher) Forget(ctx context.Context, id string) error {
	if err := e.store.DeleteKnowledge(ctx, id); err != nil {
		return err
	}
	if idx := e.currentIndex(); idx != nil {
		if err := idx.Remove(id); err != nil {
			return fmt.Errorf("unindex knowledge: %w", err)
		}
	}
	return nil
}

// UpdateKnowledge edits a stored entry and refreshes its index document.
// New content is embedded again when an embedder is set.
func (e *Enricher) UpdateKnowledge(ctx context.Context, id string, u duckdb.KnowledgeUpdate) (*knowledge.Entry, error) {
	if u.Content != nil && e.embedder != nil {
		cur, err := e.store.GetKnowledge(ctx, id)
		if err != nil {
			return nil, err
		}
		if vec, err := e.embedder.Embed(ctx, cur.Query+"\n"+*u.Content); err == nil {
			u.Embedding = vec
		} else {
			e.logger.Debug("embedding failed", zap.Error(err))
		}
	}
	updated, err := e.store.UpdateKnowledge(ctx, id, u)
	if err != nil {
		return nil, err
	}
	if idx := e.currentIndex(); idx != nil {
		if err := idx.Add(*updated); err != nil {
			return nil, fmt.Errorf("index knowledge: %w", err)
		}
	}
	return updated, nil
}

// SearchKnowledge runs a hybrid search over the knowledge base, loading
// the index from the store on first use.
func (e *Enricher) SearchKnowledge(ctx context.Context, q string, k int) ([]knowledge.Hit, error) {
	e.mu.Lock()
	if e.index == nil {
		idx, err := e.store.LoadKnowledgeIndex(ctx)
		if err != nil {
			e.mu.Unlock()
			return nil, err
		}
		e.index = idx
	}
	idx := e.index
	e.mu.Unlock()
	return idx.Search(ctx, q, e.embedder, k)
}
