package enrich

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/v64/genome-browser/internal/annotation"
	"github.com/v64/genome-browser/internal/duckdb"
	"github.com/v64/genome-browser/internal/genome"
	"github.com/v64/genome-browser/internal/knowledge"
	"github.com/v64/genome-browser/internal/label"
)

// Outcome is the result class of one improvement attempt.
type Outcome string

const (
	Improved Outcome = "improved"
	Skipped  Outcome = "skipped"
	Failed   Outcome = "failed"
)

// Skip reasons reported in Result.Reason.
const (
	ReasonNotInGenome     = "not in genome"
	ReasonNoCall          = "no genotype call"
	ReasonAlreadyImproved = "already improved"
	ReasonNoAnnotation    = "no annotation available"
	ReasonInProgress      = "improvement in progress"
)

// Result reports what happened to one SNP.
type Result struct {
	RSID       string
	Outcome    Outcome
	Reason     string
	Err        error
	Annotation *annotation.Annotation
	Label      *label.GenotypeLabel
}

func skipped(rsid, reason string) Result {
	return Result{RSID: rsid, Outcome: Skipped, Reason: reason}
}

func failed(rsid string, err error) Result {
	return Result{RSID: rsid, Outcome: Failed, Reason: err.Error(), Err: err}
}

// ImproveSNP asks the oracle to rewrite the annotation of rsid for the
// user's genotype. A SNP that is absent, uncalled, or already carries a
// model or user override is skipped without contacting the oracle. A SNP
// without an annotation is fetched from the wiki first. triggeredBy is
// recorded in the data log.
func (e *Enricher) ImproveSNP(ctx context.Context, rsid, triggeredBy string) Result {
	rsid = genome.NormalizeRSID(rsid)
	res := e.improve(ctx, rsid, triggeredBy)
	e.metrics.Improvement(string(res.Outcome))
	switch res.Outcome {
	case Failed:
		e.logger.Warn("improvement failed", zap.String("rsid", rsid), zap.Error(res.Err))
	case Skipped:
		e.logger.Debug("improvement skipped", zap.String("rsid", rsid), zap.String("reason", res.Reason))
	}
	return res
}

func (e *Enricher) improve(ctx context.Context, rsid, triggeredBy string) Result {
	if !e.claim(rsid) {
		return skipped(rsid, ReasonInProgress)
	}
	defer e.release(rsid)

	snp, err := e.store.GetSNP(ctx, rsid)
	if errors.Is(err, duckdb.ErrNotFound) {
		return skipped(rsid, ReasonNotInGenome)
	}
	if err != nil {
		return failed(rsid, err)
	}
	if !snp.HasCall() {
		return skipped(rsid, ReasonNoCall)
	}

	ann, err := e.store.GetAnnotation(ctx, rsid)
	switch {
	case errors.Is(err, duckdb.ErrNotFound):
		if e.fetcher == nil {
			return skipped(rsid, ReasonNoAnnotation)
		}
		ann, err = e.FetchAnnotation(ctx, rsid)
		if err != nil {
			e.logger.Debug("wiki fetch before improve failed", zap.String("rsid", rsid), zap.Error(err))
			return skipped(rsid, ReasonNoAnnotation)
		}
	case err != nil:
		return failed(rsid, err)
	}
	if ann.IsImproved() {
		return skipped(rsid, ReasonAlreadyImproved)
	}
	if e.oracle == nil {
		return failed(rsid, errors.New("no oracle configured"))
	}

	text, err := e.oracle.Send(ctx, ImprovePrompt(*snp, ann), systemPrompt)
	e.metrics.OracleCall("improve", err)
	if err != nil {
		return failed(rsid, fmt.Errorf("ask oracle: %w", err))
	}
	reply, err := ParseReply(text)
	if err != nil {
		return failed(rsid, err)
	}

	// An edit may have landed while the oracle was busy; the stored record
	// decides.
	summary := reply.Summary
	updated, err := e.store.ImproveAnnotationIf(ctx, rsid, annotation.Improvement{
		Summary:    &summary,
		Genotypes:  reply.Genotypes,
		Categories: reply.Tags,
		Source:     annotation.SourceModel,
	}, notImproved)
	if errors.Is(err, duckdb.ErrConditionFailed) {
		return skipped(rsid, ReasonAlreadyImproved)
	}
	if err != nil {
		return failed(rsid, err)
	}
	res := Result{RSID: rsid, Outcome: Improved, Annotation: updated}

	if reply.Label != nil {
		gl := label.GenotypeLabel{
			RSID:       rsid,
			Label:      reply.Label.Label,
			Confidence: reply.Label.Confidence,
			Frequency:  reply.Label.Frequency,
			Source:     string(annotation.SourceModel),
		}
		if err := e.store.SetLabel(ctx, gl); err != nil {
			e.logger.Warn("label write failed", zap.String("rsid", rsid), zap.Error(err))
		} else {
			res.Label = &gl
		}
	}

	if err := e.store.AppendLog(ctx, &duckdb.LogEntry{
		Source:      LogSourceModel,
		DataType:    LogTypeImprovement,
		ReferenceID: rsid,
		Content:     reply.Display,
		Metadata: map[string]any{
			"original_summary": ann.Summary,
			"genotype":         snp.Genotype,
			"triggered_by":     triggeredBy,
		},
	}); err != nil {
		e.logger.Warn("data log write failed", zap.String("rsid", rsid), zap.Error(err))
	}

	e.remember(ctx, improvementKnowledge(snp, updated))

	e.logger.Info("annotation improved",
		zap.String("rsid", rsid),
		zap.String("triggered_by", triggeredBy),
		zap.Int("genotypes", len(updated.Genotypes)))
	return res
}

func notImproved(a *annotation.Annotation) bool {
	return !a.IsImproved()
}

func improvementKnowledge(snp *genome.SNP, a *annotation.Annotation) *knowledge.Entry {
	var b strings.Builder
	b.WriteString(a.Summary)
	b.WriteString("\n")
	writeGenotypes(&b, a.Genotypes, "")
	var category string
	if len(a.Categories) > 0 {
		category = a.Categories[0]
	}
	return &knowledge.Entry{
		Query:    fmt.Sprintf("What is %s? What does %s mean for %s?", snp.RSID, snp.Genotype, snp.RSID),
		Content:  strings.TrimSpace(b.String()),
		RSIDs:    []string{snp.RSID},
		Category: category,
		Source:   knowledge.SourceImprovement,
	}
}

func (e *Enricher) claim(rsid string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inflight[rsid] {
		return false
	}
	e.inflight[rsid] = true
	return true
}

func (e *Enricher) release(rsid string) {
	e.mu.Lock()
	delete(e.inflight, rsid)
	e.mu.Unlock()
}

// ImproveBatch improves rsids with bounded parallelism. Failures are
// isolated per SNP; results are returned in input order.
func (e *Enricher) ImproveBatch(ctx context.Context, rsids []string, triggeredBy string) []Result {
	results := make([]Result, len(rsids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, id := range rsids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = failed(genome.NormalizeRSID(id), err)
				return nil
			}
			results[i] = e.ImproveSNP(gctx, id, triggeredBy)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// Summarize counts results by outcome.
func Summarize(results []Result) map[Outcome]int {
	out := map[Outcome]int{Improved: 0, Skipped: 0, Failed: 0}
	for _, r := range results {
		out[r.Outcome]++
	}
	return out
}

// Edit applies a user override to the annotation of rsid. Nil summary or
// genotypes leave that part untouched.
func (e *Enricher) Edit(ctx context.Context, rsid string, summary *string, genotypes map[string]string) (*annotation.Annotation, error) {
	if summary == nil && genotypes == nil {
		return nil, errors.New("edit: nothing to change")
	}
	rsid = genome.NormalizeRSID(rsid)
	updated, err := e.store.ImproveAnnotation(ctx, rsid, annotation.Improvement{
		Summary:   summary,
		Genotypes: genotypes,
		Source:    annotation.SourceUser,
	})
	if err != nil {
		return nil, err
	}
	meta := map[string]any{}
	if summary != nil {
		meta["summary"] = *summary
	}
	if genotypes != nil {
		meta["genotypes"] = genotypes
	}
	if err := e.store.AppendLog(ctx, &duckdb.LogEntry{
		Source:      LogSourceUser,
		DataType:    LogTypeEdit,
		ReferenceID: rsid,
		Content:     updated.Summary,
		Metadata:    meta,
	}); err != nil {
		e.logger.Warn("data log write failed", zap.String("rsid", rsid), zap.Error(err))
	}
	return updated, nil
}

// Revert restores the original wiki content of rsid.
func (e *Enricher) Revert(ctx context.Context, rsid string) (*annotation.Annotation, error) {
	rsid = genome.NormalizeRSID(rsid)
	reverted, err := e.store.RevertAnnotation(ctx, rsid)
	if err != nil {
		return nil, err
	}
	if err := e.store.AppendLog(ctx, &duckdb.LogEntry{
		Source:      LogSourceUser,
		DataType:    LogTypeRevert,
		ReferenceID: rsid,
		Content:     reverted.Summary,
	}); err != nil {
		e.logger.Warn("data log write failed", zap.String("rsid", rsid), zap.Error(err))
	}
	return reverted, nil
}
