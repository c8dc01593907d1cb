package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/v64/genome-browser/internal/duckdb"
	"github.com/v64/genome-browser/internal/enrich"
	"github.com/v64/genome-browser/internal/genome"
	"github.com/v64/genome-browser/internal/oracle"
)

const (
	notableSeeds  = 20
	improvedSeeds = 10
	favoriteSeeds = 10
)

// cycle runs one round of discovery: an occasional random exploration,
// then one queued SNP explored for related SNPs.
func (w *Worker) cycle(ctx context.Context) error {
	w.mu.Lock()
	w.cycles++
	n := w.cycles
	w.mu.Unlock()
	w.metrics.Cycle()

	if w.cfg.RandomEvery > 0 && n%w.cfg.RandomEvery == 0 {
		if _, err := w.exploreRandom(ctx); err != nil {
			return err
		}
		if !w.pause(ctx, w.cfg.ImprovementDelay) {
			return errStopped
		}
	}

	if w.queueLen() == 0 {
		seeds, err := w.seeds(ctx)
		if err != nil {
			return fmt.Errorf("load seeds: %w", err)
		}
		if len(seeds) == 0 {
			w.logf(LevelInfo, "No seed SNPs available, will try random exploration")
			_, err := w.exploreRandom(ctx)
			return err
		}
		w.enqueueSeeds(seeds)
		w.logf(LevelInfo, "Reloaded queue with %d seed SNPs", len(seeds))
	}

	current, ok := w.next()
	if !ok {
		return nil
	}
	defer w.setCurrent("")
	w.logf(LevelInfo, "Exploring: %s", current)

	related := w.queryRelated(ctx, current)
	if len(related) > 0 {
		w.logf(LevelInfo, "Found %d related: %s", len(related), preview(related))
		w.dataLog(ctx, TypeExploration, current,
			fmt.Sprintf("Explored %s, found %d related SNPs", current, len(related)),
			map[string]any{"related_snps": related})

		for _, id := range related {
			if w.stopRequested(ctx) {
				return errStopped
			}
			w.enqueue(id)
			if err := w.processDiscovered(ctx, id, current); err != nil {
				return err
			}
			if !w.pause(ctx, w.cfg.ImprovementDelay) {
				return errStopped
			}
		}
	}

	return w.processDiscovered(ctx, current, "seed")
}

func preview(ids []string) string {
	s := strings.Join(ids[:min(5, len(ids))], ", ")
	if len(ids) > 5 {
		s += "..."
	}
	return s
}

func (w *Worker) queueLen() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.queue.Len()
}

// next pops the queue head and marks it explored.
func (w *Worker) next() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	id, ok := w.queue.Pop()
	if !ok {
		return "", false
	}
	w.explored[id] = true
	w.current = id
	w.metrics.Sizes(w.queue.Len(), len(w.explored))
	return id, true
}

func (w *Worker) setCurrent(id string) {
	w.mu.Lock()
	w.current = id
	w.mu.Unlock()
}

func (w *Worker) markExplored(id string) {
	w.mu.Lock()
	w.explored[id] = true
	w.metrics.Sizes(w.queue.Len(), len(w.explored))
	w.mu.Unlock()
}

func (w *Worker) isExplored(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.explored[id]
}

func (w *Worker) exploredList() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.explored))
	for id := range w.explored {
		out = append(out, id)
	}
	return out
}

// enqueue queues id unless it was explored or is already queued. It
// reports whether id was added.
func (w *Worker) enqueue(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.explored[id] {
		return false
	}
	switch w.queue.Push(id) {
	case Added:
		w.discovered++
		w.metrics.Queued(1, 0)
		w.metrics.Sizes(w.queue.Len(), len(w.explored))
		return true
	case Dropped:
		w.dropped++
		w.metrics.Queued(0, 1)
	}
	return false
}

// enqueueSeeds queues seeds without counting them as discoveries.
func (w *Worker) enqueueSeeds(seeds []string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, id := range seeds {
		if w.explored[id] {
			continue
		}
		if w.queue.Push(id) == Dropped {
			w.dropped++
			w.metrics.Queued(0, 1)
		}
	}
	w.metrics.Sizes(w.queue.Len(), len(w.explored))
}

// seeds collects starting points: notable variants, recently improved
// SNPs and favorites, deduplicated and without explored ones.
func (w *Worker) seeds(ctx context.Context) ([]string, error) {
	var candidates []string

	notable, err := w.store.NotableVariants(ctx, w.cfg.NotableMagnitude, notableSeeds)
	if err != nil {
		return nil, err
	}
	for _, v := range notable {
		candidates = append(candidates, v.SNP.RSID)
	}

	recent, err := w.store.QueryLog(ctx, duckdb.LogFilter{
		Source:   enrich.LogSourceModel,
		DataType: enrich.LogTypeImprovement,
		Limit:    improvedSeeds,
	})
	if err != nil {
		return nil, err
	}
	for _, e := range recent {
		candidates = append(candidates, e.ReferenceID)
	}

	favs, err := w.store.Favorites(ctx)
	if err != nil {
		return nil, err
	}
	candidates = append(candidates, favs[:min(favoriteSeeds, len(favs))]...)

	w.mu.Lock()
	defer w.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for _, c := range candidates {
		id := genome.NormalizeRSID(c)
		if id == "" || seen[id] || w.explored[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
		if len(out) == w.cfg.SeedLimit {
			break
		}
	}
	return out, nil
}

// queryRelated asks the oracle for SNPs related to rsid. Oracle and parse
// failures are recorded and yield no ids.
func (w *Worker) queryRelated(ctx context.Context, rsid string) []string {
	var snpContext string
	if a, err := w.store.GetAnnotation(ctx, rsid); err == nil {
		gene := a.Gene
		if gene == "" {
			gene = "unknown"
		}
		snpContext = fmt.Sprintf("This SNP is in gene %s. %s", gene, truncate(a.Summary, 200))
	}

	prompt := relatedPrompt(rsid, snpContext)
	reply, err := w.oracle.Send(ctx, prompt, "")
	w.metrics.OracleCall("related", err)
	if err != nil {
		if ctx.Err() == nil {
			w.recordError(ctx, fmt.Sprintf("query_related_snps(%s)", rsid), err)
		}
		return nil
	}

	ids, ok := oracle.ParseRelated(reply, rsid)
	if !ok {
		w.logf(LevelWarn, "Could not parse SNP list from response: %s", truncate(reply, 100))
		return nil
	}
	w.conversation(ctx, "Find SNPs related to "+rsid, reply, ids)
	return ids
}

func relatedPrompt(rsid, snpContext string) string {
	return fmt.Sprintf(`Given the SNP %[1]s, list other SNPs (rs numbers) that are:
1. In the same gene or nearby genes
2. Associated with similar traits or conditions
3. Often studied together in research
4. Part of the same biological pathway

%[2]s

Return ONLY a JSON array of rs numbers, e.g.:
["rs429358", "rs7412", "rs1800562", "rs1801133"]

Focus on well-known, clinically relevant SNPs. Include 5-15 SNPs.
Do not include %[1]s itself.`, rsid, snpContext)
}

// Exploration is the oracle's description of an unfamiliar SNP.
type Exploration struct {
	Gene      string
	Summary   string
	Magnitude any
	Repute    string
	Related   []string
}

func explorePrompt(rsid string) string {
	return fmt.Sprintf(`Tell me about the SNP %s.

Return a JSON object with:
{
    "gene": "GENE_SYMBOL or null if unknown",
    "summary": "Brief description of what this SNP is associated with",
    "magnitude": 1-10 importance score (10 = very significant),
    "repute": "good", "bad", or "neutral",
    "related_snps": ["rs123", "rs456"] - other SNPs often studied with this one
}

If you don't have specific information about this SNP, provide your best assessment or indicate uncertainty.`, rsid)
}

// ParseExploration reads the JSON object of an explore reply.
func ParseExploration(reply, rsid string) (*Exploration, error) {
	var raw struct {
		Gene      *string `json:"gene"`
		Summary   string  `json:"summary"`
		Magnitude any     `json:"magnitude"`
		Repute    string  `json:"repute"`
		Related   []any   `json:"related_snps"`
	}
	if err := oracle.ExtractJSONObject(reply, &raw); err != nil {
		return nil, err
	}
	x := &Exploration{
		Summary:   raw.Summary,
		Magnitude: raw.Magnitude,
		Repute:    raw.Repute,
		Related:   oracle.CleanRSIDs(raw.Related, rsid),
	}
	if raw.Gene != nil {
		x.Gene = *raw.Gene
	}
	return x, nil
}

// exploreRandom asks the oracle about a random unimproved SNP, queues
// its related SNPs and improves it. Store failures are returned; oracle
// failures are recorded.
func (w *Worker) exploreRandom(ctx context.Context) (bool, error) {
	w.logf(LevelInfo, "Exploring random unimproved SNP...")

	snp, err := w.store.RandomUnimproved(ctx, w.exploredList())
	if errors.Is(err, duckdb.ErrNotFound) {
		sample, serr := w.store.UnannotatedSample(ctx, 1)
		if serr != nil {
			return false, serr
		}
		if len(sample) == 0 || w.isExplored(sample[0].RSID) {
			w.logf(LevelDebug, "No unimproved SNPs found")
			return false, nil
		}
		snp, err = &sample[0], nil
	}
	if err != nil {
		return false, err
	}

	rsid := snp.RSID
	w.markExplored(rsid)
	w.logf(LevelInfo, "Random: %s (chr%s, %s)", rsid, snp.Chromosome, snp.Genotype)

	reply, err := w.oracle.Send(ctx, explorePrompt(rsid), "")
	w.metrics.OracleCall("explore", err)
	if err != nil {
		if ctx.Err() == nil {
			w.recordError(ctx, fmt.Sprintf("explore_snp(%s)", rsid), err)
		}
		return false, nil
	}
	info, err := ParseExploration(reply, rsid)
	if err != nil {
		w.logf(LevelWarn, "Could not parse exploration of %s: %s", rsid, truncate(reply, 100))
		return false, nil
	}
	w.conversation(ctx, "Tell me about SNP "+rsid, reply, append([]string{rsid}, info.Related...))

	if len(info.Related) > 0 {
		w.logf(LevelInfo, "  Related SNPs: %s", strings.Join(info.Related[:min(5, len(info.Related))], ", "))
		for _, id := range info.Related {
			w.enqueue(id)
		}
	}

	w.improve(ctx, rsid)

	w.dataLog(ctx, TypeRandom, rsid,
		fmt.Sprintf("Random exploration: %s, gene=%s, found %d related", rsid, info.Gene, len(info.Related)),
		map[string]any{
			"gene":         info.Gene,
			"summary":      info.Summary,
			"magnitude":    info.Magnitude,
			"repute":       info.Repute,
			"related_snps": info.Related,
		})
	return true, nil
}

// processDiscovered improves rsid when it is in the genome with a call.
func (w *Worker) processDiscovered(ctx context.Context, rsid, source string) error {
	snp, err := w.store.GetSNP(ctx, rsid)
	if errors.Is(err, duckdb.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !snp.HasCall() {
		return nil
	}

	w.mu.Lock()
	w.matched++
	w.mu.Unlock()
	w.metrics.Matched()
	w.logf(LevelInfo, "  Found %s in genome (genotype: %s)", rsid, snp.Genotype)
	w.dataLog(ctx, TypeMatched, rsid,
		fmt.Sprintf("Found %s in genome, discovered via %s", rsid, source),
		map[string]any{"source_snp": source, "genotype": snp.Genotype})

	w.improve(ctx, rsid)
	return nil
}

func (w *Worker) improve(ctx context.Context, rsid string) {
	res := w.enricher.ImproveSNP(ctx, rsid, triggeredBy)
	switch res.Outcome {
	case enrich.Improved:
		w.mu.Lock()
		w.improved++
		w.mu.Unlock()
		w.logf(LevelInfo, "  Improved %s", rsid)
	case enrich.Failed:
		if ctx.Err() == nil {
			w.recordError(ctx, fmt.Sprintf("improve_snp(%s)", rsid), res.Err)
		}
	default:
		w.logf(LevelDebug, "  Skipped %s: %s", rsid, res.Reason)
	}
}

// conversation records an oracle exchange in the data log.
func (w *Worker) conversation(ctx context.Context, prompt, reply string, mentioned []string) {
	w.writeLog(ctx, enrich.LogSourceModel, TypeConversation, "", reply, map[string]any{
		"prompt":         truncate(prompt, maxPromptLogLen),
		"snps_mentioned": mentioned,
		"triggered_by":   triggeredBy,
	})
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
