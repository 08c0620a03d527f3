package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"paperboy/internal/config"
	"paperboy/pkg/logger"
)

// renderCommand runs the content pipeline for a single URL from the command
// line. Useful for trying out fetch/summarize/speech settings without the bot.
func renderCommand(cfg *config.Config) *cobra.Command {
	var bypass bool

	cmd := &cobra.Command{
		Use:   "render <url>",
		Short: "Render one URL into a narrated artifact",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx, _ := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

			renderer, closePipeline := getPipeline(ctx, cfg)
			defer closePipeline()

			artifact, err := renderer.Render(ctx, args[0], bypass)
			if err != nil {
				logger.Fatal(ctx, "render failed", zap.Error(err))
			}

			cmd.Printf("title:      %s\n", artifact.Title)
			if artifact.Author != "" {
				cmd.Printf("author:     %s\n", artifact.Author)
			}
			if artifact.Duration > 0 {
				cmd.Printf("duration:   %s\n", artifact.Duration)
			}
			cmd.Printf("summary:    %s\n", artifact.SummaryText)
			cmd.Printf("transcript: %s\n", artifact.TranscriptFile)
			if artifact.VideoFile != "" {
				cmd.Printf("video:      %s\n", artifact.VideoFile)
			}
		},
	}

	cmd.Flags().BoolVar(&bypass, "bypass", false, "use the headless-browser fetch path")

	return cmd
}
