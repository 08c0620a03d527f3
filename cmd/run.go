package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"

	"paperboy/internal/bot"
	"paperboy/internal/config"
	"paperboy/internal/ops"
	"paperboy/internal/reader"
	"paperboy/pkg/chat"
	"paperboy/pkg/chat/telegram"
	"paperboy/pkg/logger"
	"paperboy/pkg/metrics"
	"paperboy/pkg/pipeline"
	"paperboy/pkg/pipeline/fetch"
	"paperboy/pkg/pipeline/speech"
	"paperboy/pkg/pipeline/summarize"
	"paperboy/pkg/pipeline/video"
	"paperboy/pkg/pipeline/youtube"
)

// setupDebugServer starts the operational HTTP server and returns its
// shutdown function.
func setupDebugServer(ctx context.Context, cfg *config.Config) func(ctx context.Context) {
	server := ops.NewServer(ops.Options{
		Addr:              cfg.Debug.Addr,
		MetricsPath:       cfg.Debug.MetricsPath,
		ReadTimeout:       cfg.Debug.ReadTimeout,
		ReadHeaderTimeout: cfg.Debug.ReadHeaderTimeout,
		WriteTimeout:      cfg.Debug.WriteTimeout,
		IdleTimeout:       cfg.Debug.IdleTimeout,
	})

	go func() {
		logger.Info(ctx, "starting debug server...", zap.String("addr", cfg.Debug.Addr))
		if err := server.ListenAndServe(); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				logger.Error(ctx, "could not start debug server", zap.Error(err))
			}
		}
	}()

	return func(ctx context.Context) {
		logger.Info(ctx, "stopping debug server...")
		if err := server.Shutdown(ctx); err != nil {
			logger.Error(ctx, "could not stop debug server", zap.Error(err))
		}
	}
}

// getMetrics wires the otel prometheus exporter into the default registry and
// creates the application instruments.
func getMetrics(ctx context.Context) *metrics.Metrics {
	exp, err := otelprom.New(otelprom.WithRegisterer(prometheus.DefaultRegisterer))
	if err != nil {
		logger.Fatal(ctx, "could not create otel exporter", zap.Error(err))
	}
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exp)).Meter("paperboy")

	m, err := metrics.New(meter)
	if err != nil {
		logger.Fatal(ctx, "could not create metrics", zap.Error(err))
	}

	return m
}

// getSummarizer selects the summarizer implementation from the configuration.
func getSummarizer(cfg *config.Config) summarize.Summarizer {
	if cfg.Pipeline.Summarize.Mode == "openai" {
		return summarize.NewOpenAI(summarize.OpenAIOptions{
			APIKey: cfg.Pipeline.Summarize.APIKey,
			Model:  cfg.Pipeline.Summarize.Model,
		})
	}

	return summarize.Extractive{Sentences: cfg.Pipeline.Summarize.Sentences}
}

// getPipeline assembles the content pipeline and returns it along with a
// cleanup function that stops the headless browser.
func getPipeline(ctx context.Context, cfg *config.Config) (*pipeline.Pipeline, func()) {
	fetcher := fetch.New(&http.Client{Timeout: cfg.Pipeline.Fetch.Timeout}, fetch.Options{
		UserAgent:       cfg.Pipeline.Fetch.UserAgent,
		BrowserEndpoint: cfg.Pipeline.Fetch.BrowserEndpoint,
	})

	apiClient := &http.Client{Timeout: time.Minute}
	p := pipeline.New(
		fetcher,
		getSummarizer(cfg),
		speech.New(apiClient, speech.Options{
			APIKey:       cfg.Pipeline.Speech.APIKey,
			LanguageCode: cfg.Pipeline.Speech.LanguageCode,
			Voice:        cfg.Pipeline.Speech.Voice,
		}),
		video.New(video.Options{
			FFmpegPath: cfg.Pipeline.Video.FFmpegPath,
			ImagePath:  cfg.Pipeline.Video.ImagePath,
		}),
		youtube.New(apiClient),
		pipeline.Options{ArticlesDir: cfg.Pipeline.ArticlesDir},
	)

	return p, func() {
		logger.Info(ctx, "closing fetcher...")
		if err := fetcher.Close(); err != nil {
			logger.Warn(ctx, "could not close fetcher", zap.Error(err))
		}
	}
}

func runCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Starts the chat bot and the debug server",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, _ := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

			stopDebugServer := setupDebugServer(ctx, cfg)

			strg, closeStrg := getStorage(ctx, cfg)
			defer closeStrg()

			renderer, closePipeline := getPipeline(ctx, cfg)
			defer closePipeline()

			tg := telegram.New(&http.Client{Timeout: cfg.Bot.PollTimeout + 10*time.Second}, telegram.Options{
				Token:       cfg.Bot.Token,
				BaseURL:     cfg.Bot.APIBaseURL,
				PollTimeout: cfg.Bot.PollTimeout,
			})

			m := getMetrics(ctx)

			rd := reader.New(strg, tg, renderer, m, reader.Options{
				ConfirmTimeout: cfg.Bot.ConfirmTimeout,
				UploadAttempts: cfg.Pipeline.Upload.MaxAttempts,
				UploadDelay:    cfg.Pipeline.Upload.Delay,
			})

			channels := make([]chat.ChannelID, 0, len(cfg.Bot.Channels))
			for _, ch := range cfg.Bot.Channels {
				channels = append(channels, chat.ChannelID(ch))
			}
			front := bot.New(tg, rd, strg, m, bot.Options{
				Channels:        channels,
				CommandPrefix:   cfg.Bot.CommandPrefix,
				MessageLifetime: cfg.Bot.MessageLifetime,
			})

			go func() {
				logger.Info(ctx, "starting update listener...")
				if err := tg.Listen(ctx, front); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error(ctx, "update listener stopped", zap.Error(err))
				}
			}()

			// wait for interrupt
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GracefulShutdownTimeout)
			defer cancel()

			logger.Info(shutdownCtx, "waiting for in-flight pipeline runs...")
			rd.Wait()
			stopDebugServer(shutdownCtx)
		},
	}

	return cmd
}
