package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/v64/genome-browser/internal/duckdb"
	"github.com/v64/genome-browser/internal/genome"
	"github.com/v64/genome-browser/internal/output"
)

func (a *app) newLogCmd() *cobra.Command {
	var (
		f     duckdb.LogFilter
		stats bool
		width int
	)
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show the data log",
		Long: `The data log records every SNPedia page fetched, every model exchange
and every manual edit, newest first.`,
		Example: `  genome-browser log --source model --type annotation_improvement
  genome-browser log --ref rs429358
  genome-browser log --stats`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if stats {
				s, err := store.LogStats(cmd.Context())
				if err != nil {
					return err
				}
				output.WriteLogStats(out, s)
				return nil
			}
			if err := validatePositiveInt(f.Limit, "limit"); err != nil {
				return err
			}
			f.ReferenceID = normalizeRef(f.ReferenceID)
			entries, err := store.QueryLog(cmd.Context(), f)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "No log entries")
				return nil
			}
			output.WriteLog(out, entries, width)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&f.Source, "source", "", "Filter by source (snpedia, model, user, snp_discovery)")
	flags.StringVar(&f.DataType, "type", "", "Filter by data type")
	flags.StringVar(&f.ReferenceID, "ref", "", "Filter by reference (rsid or page name)")
	flags.IntVar(&f.Limit, "limit", 20, "Maximum entries to show")
	flags.IntVar(&width, "width", 160, "Truncate content to this many characters (0 for no limit)")
	flags.BoolVar(&stats, "stats", false, "Show totals by source and type instead")
	return cmd
}

// normalizeRef lower-cases bare rsids; genotype page names such as
// "Rs53576(A;G)" keep their case.
func normalizeRef(ref string) string {
	if genome.IsRSID(ref) {
		return genome.NormalizeRSID(ref)
	}
	return ref
}
