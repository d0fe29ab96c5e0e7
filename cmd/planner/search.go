package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tmc/langchaingo/schema"

	"github.com/leofalp/planner/internal/knowledge"
	"github.com/leofalp/planner/providers/observability"
)

func newSearchCommand(application *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the textbook knowledge base",
		Long:  `Embeds the query and prints the most similar chunks of the knowledge base built by build-knowledge-base.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return application.search(cmd.Context(), cmd.OutOrStdout(), strings.Join(args, " "), limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "k", 4, "number of chunks to return")
	return cmd
}

func (application *app) search(ctx context.Context, out io.Writer, query string, limit int) error {
	cfg := application.config.Knowledge
	if _, err := os.Stat(cfg.StorePath); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s (run build-knowledge-base first)", knowledge.ErrStoreNotFound, cfg.StorePath)
	}

	embedder, err := knowledge.NewFastEmbed(cfg.EmbeddingModel, cfg.CacheDir)
	if err != nil {
		return err
	}
	defer embedder.Close()

	store, err := knowledge.Open(cfg.StorePath, cfg.Collection, embedder)
	if err != nil {
		return err
	}

	results, err := store.Search(ctx, query, limit)
	if err != nil {
		return err
	}
	application.observer.Debug(ctx, "Knowledge search completed",
		observability.String(observability.AttrKnowledgeStore, cfg.StorePath),
		observability.Int("results", len(results)),
	)

	return writeResults(out, results)
}

func writeResults(out io.Writer, results []schema.Document) error {
	if len(results) == 0 {
		_, err := fmt.Fprintln(out, "No results.")
		return err
	}
	for index, result := range results {
		if _, err := fmt.Fprintf(out, "[%d] score=%.3f chunk=%v\n%s\n\n",
			index+1, result.Score, result.Metadata[knowledge.MetadataChunk], strings.TrimSpace(result.PageContent)); err != nil {
			return err
		}
	}
	return nil
}
