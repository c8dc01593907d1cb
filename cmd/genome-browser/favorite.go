package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/v64/genome-browser/internal/duckdb"
)

func (a *app) newFavoriteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "favorite",
		Aliases: []string{"fav"},
		Short:   "Manage favorite SNPs",
		Long:    "Favorites are shown first when seeding discovery and can be listed together.",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <rsid>...",
			Short: "Mark SNPs as favorites",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := a.openStore()
				if err != nil {
					return err
				}
				for _, id := range args {
					if err := store.AddFavorite(cmd.Context(), id); err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %d favorites\n", len(args))
				return nil
			},
		},
		&cobra.Command{
			Use:   "remove <rsid>...",
			Short: "Unmark favorite SNPs",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := a.openStore()
				if err != nil {
					return err
				}
				for _, id := range args {
					if err := store.RemoveFavorite(cmd.Context(), id); err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d favorites\n", len(args))
				return nil
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List favorite SNPs",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				e, err := a.enricher(false)
				if err != nil {
					return err
				}
				ids, err := e.Store().Favorites(cmd.Context())
				if err != nil {
					return err
				}
				if len(ids) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No favorites yet")
					return nil
				}
				variants, err := e.Store().SearchVariants(cmd.Context(), duckdb.VariantFilter{
					Favorites: true,
					Limit:     len(ids),
				})
				if err != nil {
					return err
				}
				views, err := e.InspectAll(cmd.Context(), variants)
				if err != nil {
					return err
				}
				return writeViews(cmd.OutOrStdout(), views)
			},
		},
	)
	return cmd
}
