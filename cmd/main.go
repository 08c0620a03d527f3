// Package main provides the CLI entrypoint for the paperboy bot.
// It wires subcommands (run, policy, render), loads configuration, and initializes logging.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"paperboy/internal/config"
	"paperboy/pkg/logger"
	"paperboy/pkg/storage"
	"paperboy/pkg/storage/memory"
	"paperboy/pkg/storage/sqlite"
)

// getStorage creates the policy store selected by the configuration and
// returns it along with a cleanup function.
func getStorage(ctx context.Context, cfg *config.Config) (storage.Storage, func()) {
	var (
		strg storage.Storage
		err  error
	)
	switch cfg.Storage.Backend {
	case "memory":
		strg = memory.New()
	default:
		strg, err = sqlite.New(ctx, sqlite.Options{Path: cfg.Storage.Path})
	}
	if err != nil {
		logger.Fatal(ctx, "could not create policy store", zap.Error(err))
	}

	return strg, func() {
		logger.Info(ctx, "closing policy store...")
		if err := strg.Close(); err != nil {
			logger.Warn(ctx, "could not close policy store", zap.Error(err))
		}
	}
}

// main sets up the root Cobra command, loads configuration and logging, and
// registers subcommands before executing the CLI.
func main() {
	rootCmd := &cobra.Command{
		Use: "paperboy",
	}

	// there is no way to access flags before command execution in cobra.
	// configPath here is parsed using the standard flags package.
	// following line is just added to prevent errors when Cobra is parsing the flags.
	rootCmd.PersistentFlags().StringP("config", "c", "config.yml", "Config File Path")

	configPath := flag.String("c", "config.yml", "The config file path")
	flag.Parse()

	log.Println("loading config ...")
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("could not load config file", err)
	}

	logger.Setup(cfg.Environment)

	ctx := context.Background()

	defer func() {
		if p := recover(); p != nil {
			logger.Error(ctx, "captured panic, exiting...", zap.Any("panic", p))
			_ = logger.Get(ctx).Sync()

			panic(p)
		}
	}()

	rootCmd.AddCommand(
		runCommand(cfg),
		policyCommand(cfg),
		renderCommand(cfg),
	)

	err = rootCmd.Execute()
	_ = logger.Get(ctx).Sync()
	if err != nil {
		os.Exit(1) //nolint: gocritic
	}
}
