package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/v64/genome-browser/internal/duckdb"
	"github.com/v64/genome-browser/internal/output"
)

func (a *app) newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show what the database holds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			var s output.Stats
			file, err := store.LoadedGenomeFile(ctx)
			switch {
			case err == nil:
				s.File = file
			case !errors.Is(err, duckdb.ErrNotFound):
				return err
			}
			if s.SNPs, err = store.CountSNPs(ctx); err != nil {
				return err
			}
			if s.Chromosomes, err = store.ChromosomeCounts(ctx); err != nil {
				return err
			}
			if s.Annotations, err = store.CountAnnotations(ctx); err != nil {
				return err
			}
			counts, err := store.LabelCounts(ctx)
			if err != nil {
				return err
			}
			for _, c := range counts {
				s.Labeled += c.Count
			}
			favorites, err := store.Favorites(ctx)
			if err != nil {
				return err
			}
			s.Favorites = len(favorites)
			if s.Pages, err = store.PageCacheStats(ctx); err != nil {
				return err
			}
			logStats, err := store.LogStats(ctx)
			if err != nil {
				return err
			}
			s.LogEntries = logStats.Total

			output.WriteStats(cmd.OutOrStdout(), s)
			return nil
		},
	}
}
