package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/v64/genome-browser/internal/duckdb"
	"github.com/v64/genome-browser/internal/genome"
	"github.com/v64/genome-browser/internal/knowledge"
	"github.com/v64/genome-browser/internal/output"
)

func (a *app) newKnowledgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "knowledge",
		Aliases: []string{"kb"},
		Short:   "Search and curate the knowledge base",
		Long: `The knowledge base holds every SNPedia page, model explanation and note
gathered so far. Search ranks entries by BM25 and, when embeddings are
enabled, fuses that ranking with embedding similarity.`,
	}
	cmd.AddCommand(
		a.newKnowledgeSearchCmd(),
		a.newKnowledgeListCmd(),
		a.newKnowledgeAddCmd(),
		a.newKnowledgeEditCmd(),
		a.newKnowledgeDeleteCmd(),
	)
	return cmd
}

func (a *app) newKnowledgeSearchCmd() *cobra.Command {
	var (
		limit int
		width int
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the knowledge base",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validatePositiveInt(limit, "limit"); err != nil {
				return err
			}
			e, err := a.enricher(false)
			if err != nil {
				return err
			}
			query := strings.Join(args, " ")
			hits, err := e.SearchKnowledge(cmd.Context(), query, limit)
			if err != nil {
				return err
			}
			if len(hits) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No knowledge found for query: %s\n", query)
				return nil
			}
			output.WriteHits(cmd.OutOrStdout(), hits, width)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 5, "Maximum results to return")
	cmd.Flags().IntVar(&width, "width", 200, "Truncate content to this many characters (0 for no limit)")
	return cmd
}

func (a *app) newKnowledgeAddCmd() *cobra.Command {
	var (
		query    string
		content  string
		category string
		rsids    []string
	)
	cmd := &cobra.Command{
		Use:     "add",
		Short:   "Add a note to the knowledge base",
		Example: `  genome-browser knowledge add --query "MTHFR and folate" --content "Methylfolate recommended" --rsid rs1801133`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(query) == "" || strings.TrimSpace(content) == "" {
				return usagef("--query and --content are required")
			}
			e, err := a.enricher(false)
			if err != nil {
				return err
			}
			entry := &knowledge.Entry{
				Query:    query,
				Content:  content,
				Category: category,
				RSIDs:    normalizeRSIDs(rsids),
				Source:   knowledge.SourceUser,
			}
			if err := e.Remember(cmd.Context(), entry); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", entry.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&query, "query", "", "Question or title of the note")
	cmd.Flags().StringVar(&content, "content", "", "Note text")
	cmd.Flags().StringVar(&category, "category", "", "Category")
	cmd.Flags().StringSliceVar(&rsids, "rsid", nil, "Related SNPs (default: extracted from the text)")
	return cmd
}

func (a *app) newKnowledgeDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a knowledge entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.enricher(false)
			if err != nil {
				return err
			}
			err = e.Forget(cmd.Context(), args[0])
			if errors.Is(err, duckdb.ErrNotFound) {
				return fmt.Errorf("no knowledge entry %s", args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

func (a *app) newKnowledgeListCmd() *cobra.Command {
	var (
		rsid     string
		category string
		limit    int
		width    int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List knowledge entries, newest first",
		Example: `  genome-browser knowledge list --rsid rs429358
  genome-browser knowledge list --category health --limit 10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validatePositiveInt(limit, "limit"); err != nil {
				return err
			}
			store, err := a.openStore()
			if err != nil {
				return err
			}
			var entries []knowledge.Entry
			if rsid != "" {
				entries, err = store.KnowledgeFor(cmd.Context(), genome.NormalizeRSID(rsid))
				if len(entries) > limit {
					entries = entries[:limit]
				}
			} else {
				entries, err = store.ListKnowledge(cmd.Context(), category, limit)
			}
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No knowledge entries")
				return nil
			}
			hits := make([]knowledge.Hit, len(entries))
			for i, e := range entries {
				hits[i] = knowledge.Hit{Entry: e, Rank: i + 1}
			}
			output.WriteHits(cmd.OutOrStdout(), hits, width)
			return nil
		},
	}
	cmd.Flags().StringVar(&rsid, "rsid", "", "Only entries mentioning this SNP")
	cmd.Flags().StringVar(&category, "category", "", "Only entries in this category")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum entries to list")
	cmd.Flags().IntVar(&width, "width", 200, "Truncate content to this many characters (0 for no limit)")
	return cmd
}

func (a *app) newKnowledgeEditCmd() *cobra.Command {
	var (
		content  string
		category string
		rsids    []string
	)
	cmd := &cobra.Command{
		Use:     "edit <id>",
		Short:   "Edit a knowledge entry",
		Example: `  genome-browser knowledge edit 3f2a... --content "Corrected note" --rsid rs1801133`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var u duckdb.KnowledgeUpdate
			if cmd.Flags().Changed("content") {
				u.Content = &content
			}
			if cmd.Flags().Changed("category") {
				u.Category = &category
			}
			if cmd.Flags().Changed("rsid") {
				u.RSIDs = normalizeRSIDs(rsids)
				if u.RSIDs == nil {
					u.RSIDs = []string{}
				}
			}
			if u.Content == nil && u.Category == nil && u.RSIDs == nil {
				return usagef("nothing to change: pass --content, --category or --rsid")
			}
			e, err := a.enricher(false)
			if err != nil {
				return err
			}
			updated, err := e.UpdateKnowledge(cmd.Context(), args[0], u)
			if errors.Is(err, duckdb.ErrNotFound) {
				return fmt.Errorf("no knowledge entry %s", args[0])
			}
			if err != nil {
				return err
			}
			output.WriteHits(cmd.OutOrStdout(), []knowledge.Hit{{Entry: *updated, Rank: 1}}, 0)
			return nil
		},
	}
	cmd.Flags().StringVar(&content, "content", "", "New note text")
	cmd.Flags().StringVar(&category, "category", "", "New category")
	cmd.Flags().StringSliceVar(&rsids, "rsid", nil, "Replace the related SNPs")
	return cmd
}
