package snpedia

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/v64/genome-browser/internal/annotation"
	"github.com/v64/genome-browser/internal/duckdb"
	"github.com/v64/genome-browser/internal/genotype"
	"github.com/v64/genome-browser/internal/repute"
)

// DefaultRequestDelay is the pause after each SNP that touched the network.
const DefaultRequestDelay = 500 * time.Millisecond

// Page kinds reported in FetchedPage.Kind.
const (
	KindMain     = "main_page"
	KindGenotype = "genotype_page"
)

// PageSource fetches wiki pages. *Client implements it.
type PageSource interface {
	FetchPage(ctx context.Context, name string) (*Page, error)
}

// PageCache stores pages so that no page is fetched over the network twice.
// *duckdb.Store implements it.
type PageCache interface {
	GetPage(ctx context.Context, name string) (*duckdb.CachedPage, error)
	PutPage(ctx context.Context, p duckdb.CachedPage) error
}

// FetchedPage is a page that was retrieved over the network during Fetch.
type FetchedPage struct {
	Page
	Kind     string
	RSID     string
	Genotype string
}

// Result is the outcome of fetching one SNP.
type Result struct {
	Annotation *annotation.Annotation
	// Fetched lists pages that came from the network rather than the cache.
	Fetched []FetchedPage
}

// Fetcher assembles annotations from a main SNP page plus its genotype pages.
type Fetcher struct {
	source      PageSource
	cache       PageCache
	delay       time.Duration
	concurrency int
	logger      *zap.Logger
}

// NewFetcher creates a fetcher. cache may be nil.
func NewFetcher(source PageSource, cache PageCache) *Fetcher {
	return &Fetcher{
		source:      source,
		cache:       cache,
		delay:       DefaultRequestDelay,
		concurrency: 4,
		logger:      zap.NewNop(),
	}
}

// SetLogger sets the logger.
func (f *Fetcher) SetLogger(l *zap.Logger) {
	f.logger = l
}

// SetRequestDelay sets the pause after a SNP that hit the network.
func (f *Fetcher) SetRequestDelay(d time.Duration) {
	f.delay = d
}

// SetConcurrency bounds parallel genotype page requests.
func (f *Fetcher) SetConcurrency(n int) {
	if n > 0 {
		f.concurrency = n
	}
}

// Fetch builds the annotation for rsid. It returns ErrPageNotFound when the
// wiki has no main page for it.
func (f *Fetcher) Fetch(ctx context.Context, rsid string) (*Result, error) {
	rsid = strings.ToLower(strings.TrimSpace(rsid))
	res := &Result{}

	main, fromNetwork, err := f.page(ctx, rsid)
	if err != nil {
		return nil, err
	}
	if fromNetwork {
		res.Fetched = append(res.Fetched, FetchedPage{Page: *main, Kind: KindMain, RSID: rsid})
	}

	a := ParseWikitext(rsid, main.Wikitext, main.Categories)

	facts, fetched := f.genotypePages(ctx, rsid)
	res.Fetched = append(res.Fetched, fetched...)

	table := make(map[string]string)
	var maxMag *float64
	gtRepute := repute.None
	for i, gt := range GenotypePages {
		fc := facts[i]
		if fc == nil {
			continue
		}
		if fc.summary != "" {
			table[genotype.Normalize(gt)] = fc.summary
		}
		if fc.magnitude != nil && (maxMag == nil || *fc.magnitude > *maxMag) {
			maxMag = fc.magnitude
		}
		if gtRepute == repute.None && fc.repute != repute.None {
			gtRepute = fc.repute
		}
	}
	if len(table) > 0 {
		a.Genotypes = table
	}
	if a.Magnitude == nil {
		a.Magnitude = maxMag
	}
	if a.Repute == repute.None {
		a.Repute = gtRepute
	}
	res.Annotation = a

	if len(res.Fetched) > 0 && f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	return res, nil
}

// genotypePages reads every genotype page of rsid. Missing or failing
// pages leave a nil entry; results are indexed like GenotypePages.
func (f *Fetcher) genotypePages(ctx context.Context, rsid string) ([]*genotypeFacts, []FetchedPage) {
	facts := make([]*genotypeFacts, len(GenotypePages))
	network := make([]*FetchedPage, len(GenotypePages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for i, gt := range GenotypePages {
		g.Go(func() error {
			name := GenotypePageName(rsid, gt)
			p, fromNetwork, err := f.page(gctx, name)
			if err != nil {
				if !errors.Is(err, ErrPageNotFound) {
					f.logger.Debug("genotype page failed", zap.String("page", name), zap.Error(err))
				}
				return nil
			}
			fc := parseGenotypePage(p.Wikitext)
			facts[i] = &fc
			if fromNetwork {
				network[i] = &FetchedPage{Page: *p, Kind: KindGenotype, RSID: rsid, Genotype: gt}
			}
			return nil
		})
	}
	_ = g.Wait()

	var fetched []FetchedPage
	for _, fp := range network {
		if fp != nil {
			fetched = append(fetched, *fp)
		}
	}
	return facts, fetched
}

// page returns name from the cache, falling back to the network and
// caching the result. fromNetwork reports which path was taken.
func (f *Fetcher) page(ctx context.Context, name string) (*Page, bool, error) {
	if f.cache != nil {
		cp, err := f.cache.GetPage(ctx, name)
		if err == nil {
			return &Page{Name: name, Wikitext: cp.Wikitext, Categories: cp.Categories}, false, nil
		}
		if !errors.Is(err, duckdb.ErrNotFound) {
			f.logger.Warn("page cache read failed", zap.String("page", name), zap.Error(err))
		}
	}

	p, err := f.source.FetchPage(ctx, name)
	if err != nil {
		return nil, false, err
	}
	if f.cache != nil {
		if err := f.cache.PutPage(ctx, duckdb.CachedPage{Name: name, Wikitext: p.Wikitext, Categories: p.Categories}); err != nil {
			return nil, false, fmt.Errorf("cache page %s: %w", name, err)
		}
	}
	return p, true, nil
}
