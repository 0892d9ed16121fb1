package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/janus-koncepts/wabot/engine/infra/server"
	"github.com/janus-koncepts/wabot/pkg/config"
	"github.com/janus-koncepts/wabot/pkg/logger"
)

func IndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Rebuild the vector index from the knowledge base document",
		Long: `Read the document, split and embed it, and replace the persisted index.
The new index is built next to the old one and swapped in only when complete.`,
		Args: cobra.NoArgs,
		RunE: runIndex,
	}
	cmd.Flags().String("format", "", "Index format (json or bolt)")
	return cmd
}

func runIndex(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg := config.FromContext(ctx)
	emb, err := server.NewEmbedder(ctx, cfg)
	if err != nil {
		return err
	}
	ix, err := server.NewIndexer(cfg, emb)
	if err != nil {
		return err
	}
	res, err := ix.Rebuild(ctx)
	if err != nil {
		return fmt.Errorf("failed to build index: %w", err)
	}
	defer func() {
		if err := res.Store.Close(context.WithoutCancel(ctx)); err != nil {
			logger.FromContext(ctx).Error("Failed to close index", "error", err)
		}
	}()
	_, err = fmt.Fprintf(cmd.OutOrStdout(),
		"Indexed %d chunks from %s into %s (%s) in %s\n",
		res.Records, cfg.Knowledge.DocumentPath, res.Dir, res.Manifest.Format, res.Duration.Round(time.Millisecond),
	)
	return err
}
