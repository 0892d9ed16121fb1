package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/janus-koncepts/wabot/engine/infra/server"
	"github.com/janus-koncepts/wabot/engine/knowledge/qa"
	"github.com/janus-koncepts/wabot/pkg/config"
	"github.com/janus-koncepts/wabot/pkg/logger"
)

func AskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question from the knowledge base",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAsk,
	}
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := config.FromContext(ctx)
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return errors.New("question must not be empty")
	}
	k := server.BuildKnowledge(ctx, cfg)
	defer func() {
		if err := k.Close(context.WithoutCancel(ctx)); err != nil {
			logger.FromContext(ctx).Error("Failed to close index", "error", err)
		}
	}()
	answer, err := k.Answerer.Answer(ctx, question)
	switch {
	case errors.Is(err, qa.ErrNotReady):
		answer = cfg.Replies.NotReady
	case err != nil:
		return fmt.Errorf("failed to answer: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), answer)
	return err
}
