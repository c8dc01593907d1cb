package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/v64/genome-browser/internal/duckdb"
	"github.com/v64/genome-browser/internal/enrich"
	"github.com/v64/genome-browser/internal/label"
	"github.com/v64/genome-browser/internal/output"
)

func (a *app) newLabelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "label",
		Short: "Manage genotype labels",
		Long: fmt.Sprintf(`Genotype labels classify your result at a SNP.
Valid labels: %v
Valid confidences: %v`, label.Labels, label.Confidences),
	}
	cmd.AddCommand(
		a.newLabelSetCmd(),
		a.newLabelGetCmd(),
		a.newLabelDeleteCmd(),
		a.newLabelListCmd(),
		a.newLabelSearchCmd(),
	)
	return cmd
}

func (a *app) newLabelSetCmd() *cobra.Command {
	var (
		confidence string
		frequency  float64
		notes      string
	)
	cmd := &cobra.Command{
		Use:     "set <rsid> <label>",
		Short:   "Set the label of a SNP",
		Example: `  genome-browser label set rs1801133 carrier --confidence high --frequency 40`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lbl, err := label.ParseLabel(args[1])
			if err != nil {
				return usage(err)
			}
			gl := label.GenotypeLabel{
				RSID:   args[0],
				Label:  lbl,
				Notes:  notes,
				Source: enrich.LogSourceUser,
			}
			if confidence != "" {
				c, err := label.ParseConfidence(confidence)
				if err != nil {
					return usage(err)
				}
				gl.Confidence = c
			}
			if cmd.Flags().Changed("frequency") {
				gl.Frequency = &frequency
			}
			if err := gl.Validate(); err != nil {
				return usage(err)
			}

			store, err := a.openStore()
			if err != nil {
				return err
			}
			if err := store.SetLabel(cmd.Context(), gl); err != nil {
				return err
			}
			saved, err := store.GetLabel(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			output.WriteLabel(cmd.OutOrStdout(), saved)
			return nil
		},
	}
	cmd.Flags().StringVar(&confidence, "confidence", "", "Confidence: high, medium or low")
	cmd.Flags().Float64Var(&frequency, "frequency", 0, "Population frequency in percent")
	cmd.Flags().StringVar(&notes, "notes", "", "Free-form notes")
	return cmd
}

func (a *app) newLabelGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <rsid>",
		Short: "Show the label of a SNP",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			l, err := store.GetLabel(cmd.Context(), args[0])
			if errors.Is(err, duckdb.ErrNotFound) {
				return fmt.Errorf("%s has no label", args[0])
			}
			if err != nil {
				return err
			}
			output.WriteLabel(cmd.OutOrStdout(), l)
			return nil
		},
	}
}

func (a *app) newLabelDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <rsid>",
		Short: "Remove the label of a SNP",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			err = store.DeleteLabel(cmd.Context(), args[0])
			if errors.Is(err, duckdb.ErrNotFound) {
				return fmt.Errorf("%s has no label", args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted label of %s\n", args[0])
			return nil
		},
	}
}

func (a *app) newLabelListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Count SNPs per label",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			counts, err := store.LabelCounts(cmd.Context())
			if err != nil {
				return err
			}
			output.WriteLabelCounts(cmd.OutOrStdout(), counts)
			return nil
		},
	}
}

func (a *app) newLabelSearchCmd() *cobra.Command {
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "search <label>",
		Short: "List SNPs carrying a label",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lbl, err := label.ParseLabel(args[0])
			if err != nil {
				return usage(err)
			}
			e, err := a.enricher(false)
			if err != nil {
				return err
			}
			hits, total, err := e.Store().SearchByLabel(cmd.Context(), lbl, limit, offset)
			if err != nil {
				return err
			}
			variants := make([]duckdb.Variant, len(hits))
			for i, h := range hits {
				variants[i] = h.Variant
			}
			views, err := e.InspectAll(cmd.Context(), variants)
			if err != nil {
				return err
			}
			if err := writeViews(cmd.OutOrStdout(), views); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d of %d SNPs labeled %s\n", len(hits), total, lbl)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum SNPs to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "Skip this many results")
	return cmd
}
