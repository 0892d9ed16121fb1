package cli

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/janus-koncepts/wabot/engine/infra/server"
	"github.com/janus-koncepts/wabot/pkg/config"
	"github.com/janus-koncepts/wabot/pkg/logger"
)

const productionEnvironment = "production"

func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"start"},
		Short:   "Start the webhook server",
		Long: `Load or build the knowledge index and serve the WhatsApp webhook.
When the index cannot be prepared the server still starts and replies with the not-ready text.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	cmd.Flags().String("host", "", "Host interface to bind")
	cmd.Flags().Int("port", 0, "Port to listen on")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg := config.FromContext(ctx)
	if cfg.Runtime.Environment == productionEnvironment {
		gin.SetMode(gin.ReleaseMode)
	}
	logger.FromContext(ctx).Info("Starting wabot",
		"environment", cfg.Runtime.Environment,
		"document", cfg.Knowledge.DocumentPath,
		"index_dir", cfg.Knowledge.IndexDir,
	)
	srv, err := server.NewServer(ctx)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	return srv.Run()
}
