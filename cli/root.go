package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/janus-koncepts/wabot/pkg/config"
	"github.com/janus-koncepts/wabot/pkg/logger"
	"github.com/janus-koncepts/wabot/pkg/version"
)

func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "wabot",
		Short:         "WhatsApp chatbot answering questions from a PDF knowledge base",
		Version:       version.Get().Version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setupContext(cmd)
		},
	}
	pf := root.PersistentFlags()
	pf.String("config", "wabot.yaml", "Path to the YAML config file")
	pf.String("env-file", ".env", "Path to the environment variables file")
	pf.String("log-level", "info", "Log level (debug, info, warn, error, disabled)")
	pf.Bool("log-json", false, "Output logs in JSON format")
	pf.Bool("log-source", false, "Include source code location in logs")
	pf.String("llm-provider", "", "Chat model provider")
	pf.String("llm-model", "", "Chat model name")
	pf.String("embedder-provider", "", "Embedding provider")
	pf.String("embedder-model", "", "Embedding model name")
	pf.String("document", "", "Path to the knowledge base document")
	pf.String("index-dir", "", "Directory of the persisted vector index")

	root.AddCommand(
		ServeCmd(),
		IndexCmd(),
		AskCmd(),
		DoctorCmd(),
	)
	return root
}

// setupContext loads .env, configuration and the logger, and stores the
// configuration and logger on the command context.
func setupContext(cmd *cobra.Command) error {
	level, logJSON, logSource, err := logger.GetLoggerConfig(cmd)
	if err != nil {
		return err
	}
	log := logger.SetupLogger(level, logJSON, logSource)
	envFile, err := loadEnvFile(cmd)
	if err != nil {
		return err
	}
	configFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("failed to get config flag: %w", err)
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = logger.ContextWithLogger(ctx, log)
	cfg, err := config.NewService().Load(ctx,
		config.NewYAMLProvider(configFile),
		config.NewCLIProvider(extractCLIFlags(cmd)),
	)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	cfg.CLI.ConfigFile = configFile
	cfg.CLI.EnvFile = envFile
	log = logger.SetupLogger(logger.LogLevel(cfg.Runtime.LogLevel), cfg.Runtime.LogJSON, cfg.Runtime.LogSource)
	log.Debug("Configuration loaded", "config_file", configFile, "env_file", envFile)
	ctx = config.ContextWithConfig(logger.ContextWithLogger(ctx, log), cfg)
	cmd.SetContext(ctx)
	return nil
}
