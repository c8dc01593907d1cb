package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/v64/genome-browser/internal/duckdb"
	"github.com/v64/genome-browser/internal/enrich"
	"github.com/v64/genome-browser/internal/genome"
	"github.com/v64/genome-browser/internal/output"
	"github.com/v64/genome-browser/internal/snpedia"
)

func (a *app) newLoadCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "load <file>",
		Short: "Load a raw genotype export",
		Long: `Load a 23andMe-style raw data export (tab-separated rsid, chromosome,
position and genotype; gzip input is detected). The stored genome is
replaced. A file that has not changed since the last load is skipped.`,
		Example: `  genome-browser load genome_Jane_Doe_v5_Full.txt
  genome-browser load --force genome.txt.gz`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runLoad(cmd, args[0], force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Reload even if the file is unchanged")
	return cmd
}

func (a *app) runLoad(cmd *cobra.Command, path string, force bool) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	store, err := a.openStore()
	if err != nil {
		return err
	}

	var fp *duckdb.FileFingerprint
	if path != "-" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", path, err)
		}
		f, err := duckdb.StatFile(abs)
		if err != nil {
			return fmt.Errorf("stat genome file: %w", err)
		}
		fp = &f
		if !force {
			unchanged, err := store.GenomeFileUnchanged(ctx, f)
			if err != nil {
				return err
			}
			if unchanged {
				fmt.Fprintf(out, "%s is unchanged since the last load (use --force to reload)\n", path)
				return nil
			}
		}
	}

	p, err := genome.NewParser(path)
	if err != nil {
		return err
	}
	defer p.Close()

	snps, err := p.ReadAll()
	if err != nil {
		return fmt.Errorf("parse genome file: %w", err)
	}
	if !genome.LooksLikeExport(strings.Join(p.Header(), "\n")) {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s has no 23andMe header; check the column order (rsid, chromosome, position, genotype)\n", path)
	}
	n, err := store.ReplaceSNPs(ctx, snps)
	if err != nil {
		return err
	}
	if fp != nil {
		if err := store.RecordGenomeFile(ctx, *fp, int64(n)); err != nil {
			return err
		}
	}

	a.logger.Info("genome loaded", zap.String("path", path), zap.Int("snps", n), zap.Int("skipped", p.Skipped()))
	fmt.Fprintf(out, "Loaded %d SNPs from %s (%d lines skipped)\n", n, path, p.Skipped())
	return nil
}

func (a *app) newFetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <rsid>...",
		Short: "Fetch SNPedia annotations",
		Long: `Fetch the SNPedia page and genotype pages of each SNP and store the
parsed annotation. Pages are cached, so fetching again is cheap. An
annotation that was improved or edited is kept.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.enricher(false)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			failures := 0
			for _, id := range args {
				ann, err := e.FetchAnnotation(cmd.Context(), id)
				switch {
				case errors.Is(err, snpedia.ErrPageNotFound):
					failures++
					fmt.Fprintf(out, "%-14sno SNPedia page\n", id)
				case err != nil:
					failures++
					fmt.Fprintf(out, "%-14serror: %v\n", id, err)
				default:
					fmt.Fprintf(out, "%-14s%d genotypes\n", ann.RSID, len(ann.Genotypes))
				}
			}
			if failures > 0 {
				return fmt.Errorf("%d of %d fetches failed", failures, len(args))
			}
			return nil
		},
	}
}

func (a *app) newImproveCmd() *cobra.Command {
	var concurrency int
	cmd := &cobra.Command{
		Use:   "improve <rsid>...",
		Short: "Explain SNPs with the language model",
		Long: `Ask the language model to rewrite the annotation of each SNP for your
genotype and to classify the result. SNPs without an annotation are
fetched from SNPedia first. SNPs that were already improved or edited
are skipped.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.enricher(true)
			if err != nil {
				return err
			}
			if concurrency > 0 {
				e.SetConcurrency(concurrency)
			}
			results := e.ImproveBatch(cmd.Context(), args, "cli")
			output.WriteResults(cmd.OutOrStdout(), results)
			if n := enrich.Summarize(results)[enrich.Failed]; n > 0 {
				return fmt.Errorf("%d of %d improvements failed", n, len(results))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Parallel improvements (default from improve.concurrency)")
	return cmd
}

func (a *app) newEditCmd() *cobra.Command {
	var (
		summary   string
		genotypes []string
	)
	cmd := &cobra.Command{
		Use:   "edit <rsid>",
		Short: "Override an annotation by hand",
		Example: `  genome-browser edit rs53576 --summary "Oxytocin receptor variant"
  genome-browser edit rs53576 --genotype "AG=Slightly less empathetic" --genotype "GG=Typical"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var sum *string
			if cmd.Flags().Changed("summary") {
				sum = &summary
			}
			table, err := parseGenotypeFlags(genotypes)
			if err != nil {
				return err
			}
			if sum == nil && table == nil {
				return usagef("nothing to change: pass --summary or --genotype")
			}

			e, err := a.enricher(false)
			if err != nil {
				return err
			}
			if _, err := e.Edit(cmd.Context(), args[0], sum, table); err != nil {
				return notFound(args[0], err)
			}
			return a.showViews(cmd, e, args)
		},
	}
	cmd.Flags().StringVar(&summary, "summary", "", "New summary text")
	cmd.Flags().StringArrayVar(&genotypes, "genotype", nil, "Genotype interpretation as KEY=TEXT (repeatable)")
	return cmd
}

// parseGenotypeFlags turns KEY=TEXT pairs into a genotype table. It returns
// nil for no pairs.
func parseGenotypeFlags(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	table := make(map[string]string, len(pairs))
	for _, p := range pairs {
		key, text, ok := strings.Cut(p, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, usagef("invalid --genotype %q: want KEY=TEXT", p)
		}
		table[key] = strings.TrimSpace(text)
	}
	return table, nil
}

func (a *app) newRevertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revert <rsid>",
		Short: "Restore the original SNPedia annotation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.enricher(false)
			if err != nil {
				return err
			}
			if _, err := e.Revert(cmd.Context(), args[0]); err != nil {
				if errors.Is(err, duckdb.ErrNothingToRevert) {
					return fmt.Errorf("%s has no original annotation to restore", args[0])
				}
				return notFound(args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reverted %s\n", args[0])
			return nil
		},
	}
}

func (a *app) newShowCmd() *cobra.Command {
	var long bool
	cmd := &cobra.Command{
		Use:   "show <rsid>...",
		Short: "Show SNPs with their annotation, matched genotype and label",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.enricher(false)
			if err != nil {
				return err
			}
			if long {
				return a.showDetails(cmd, e, args)
			}
			return a.showViews(cmd, e, args)
		},
	}
	cmd.Flags().BoolVarP(&long, "long", "l", false, "Show summary and the full genotype table")
	return cmd
}

func (a *app) showViews(cmd *cobra.Command, e *enrich.Enricher, rsids []string) error {
	views := make([]enrich.View, 0, len(rsids))
	for _, id := range rsids {
		v, err := e.Inspect(cmd.Context(), id)
		if errors.Is(err, duckdb.ErrNotFound) {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s is not in the genome\n", id)
			continue
		}
		if err != nil {
			return err
		}
		views = append(views, *v)
	}
	return writeViews(cmd.OutOrStdout(), views)
}

func (a *app) showDetails(cmd *cobra.Command, e *enrich.Enricher, rsids []string) error {
	out := cmd.OutOrStdout()
	for i, id := range rsids {
		v, err := e.Inspect(cmd.Context(), id)
		if errors.Is(err, duckdb.ErrNotFound) {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s is not in the genome\n", id)
			continue
		}
		if err != nil {
			return err
		}
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintln(out, enrich.FormatContext(v.SNP, v.Annotation))
		if v.Effective != "" {
			fmt.Fprintf(out, "Your result: %s\n", v.Effective)
		}
		if v.Label != nil {
			output.WriteLabel(out, v.Label)
		}
		if ann := v.Annotation; ann != nil && len(ann.References) > 0 {
			fmt.Fprintf(out, "References: %s\n", strings.Join(ann.References, ", "))
		}
	}
	return nil
}

func writeViews(w io.Writer, views []enrich.View) error {
	tw := output.NewTabWriter(w)
	if err := tw.WriteHeader(); err != nil {
		return err
	}
	for i := range views {
		if err := tw.Write(&views[i]); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func (a *app) newNotableCmd() *cobra.Command {
	var (
		minMagnitude float64
		limit        int
	)
	cmd := &cobra.Command{
		Use:   "notable",
		Short: "List the most important annotated SNPs in your genome",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.enricher(false)
			if err != nil {
				return err
			}
			variants, err := e.Store().NotableVariants(cmd.Context(), minMagnitude, limit)
			if err != nil {
				return err
			}
			views, err := e.InspectAll(cmd.Context(), variants)
			if err != nil {
				return err
			}
			return writeViews(cmd.OutOrStdout(), views)
		},
	}
	cmd.Flags().Float64Var(&minMagnitude, "min-magnitude", 2, "Minimum SNPedia magnitude")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum SNPs to list")
	return cmd
}

func (a *app) newSearchCmd() *cobra.Command {
	var (
		f            duckdb.VariantFilter
		minMagnitude float64
		annotated    bool
	)
	cmd := &cobra.Command{
		Use:   "search [text]",
		Short: "Search SNPs by text, location, gene or category",
		Example: `  genome-browser search APOE
  genome-browser search --chromosome 19 --min-magnitude 2
  genome-browser search --category health --repute bad`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				f.Text = args[0]
			}
			if cmd.Flags().Changed("min-magnitude") {
				f.MinMagnitude = &minMagnitude
			}
			if cmd.Flags().Changed("annotated") {
				f.Annotated = &annotated
			}
			e, err := a.enricher(false)
			if err != nil {
				return err
			}
			variants, err := e.Store().SearchVariants(cmd.Context(), f)
			if err != nil {
				return err
			}
			views, err := e.InspectAll(cmd.Context(), variants)
			if err != nil {
				return err
			}
			return writeViews(cmd.OutOrStdout(), views)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&f.Chromosome, "chromosome", "", "Chromosome")
	flags.StringVar(&f.Gene, "gene", "", "Gene name (substring)")
	flags.StringVar(&f.Category, "category", "", "Annotation category")
	flags.StringVar(&f.Repute, "repute", "", "SNPedia repute: good, bad or neutral")
	flags.Float64Var(&minMagnitude, "min-magnitude", 0, "Minimum magnitude")
	flags.BoolVar(&annotated, "annotated", false, "Only annotated SNPs (--annotated=false for unannotated)")
	flags.BoolVar(&f.Favorites, "favorites", false, "Only favorites")
	flags.IntVar(&f.Limit, "limit", 50, "Maximum SNPs to list")
	flags.IntVar(&f.Offset, "offset", 0, "Skip this many results")
	return cmd
}

// notFound rewrites ErrNotFound into a message naming rsid.
func notFound(rsid string, err error) error {
	if errors.Is(err, duckdb.ErrNotFound) {
		return fmt.Errorf("%s has no annotation (run fetch first)", rsid)
	}
	return err
}
