package cli

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"
	"github.com/vietddude/textchain/internal/control"
	"github.com/vietddude/textchain/internal/core/config"
	"github.com/vietddude/textchain/internal/platform/privacylog"
)

var (
	cfgPath        string
	isDebug        bool
	skipMigrations bool
)

var rootCmd = &cobra.Command{
	Use:   "textchain",
	Short: "TextChain SMS wallet gateway",
	Long:  `TextChain answers SMS commands (JOIN, BALANCE, SEND, REDEEM, ...) with multi-chain wallet state.`,
	Run:   runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook server",
	Run:   runServe,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
	serveCmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "do not run database migrations at startup")
	rootCmd.AddCommand(serveCmd)
}

// loadConfig reads .env and the config file, then installs the logger.
// A missing config file falls back to the built-in defaults.
func loadConfig() *config.AppConfig {
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	missing := errors.Is(err, os.ErrNotExist)
	if missing {
		cfg, err = config.Default(), nil
	}
	if err != nil {
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	setupLogging(cfg)
	if missing {
		slog.Warn("Config file not found, using defaults", "config", cfgPath)
	}
	return cfg
}

func setupLogging(cfg *config.AppConfig) {
	slogLevel := slog.LevelInfo
	if isDebug || cfg.Logging.Level == "debug" {
		slogLevel = slog.LevelDebug
	}

	stylelog.InitDefault(&tint.Options{
		Level:      slogLevel,
		TimeFormat: time.RFC3339,
	})
	slog.SetDefault(slog.New(privacylog.WrapHandler(slog.Default().Handler())))
}

func runServe(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := control.NewApp(ctx, cfg, control.Options{SkipMigrations: skipMigrations})
	if err != nil {
		slog.Error("Failed to initialize TextChain", "error", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := app.Start(ctx); err != nil {
		slog.Error("Failed to start TextChain", "error", err)
		os.Exit(1)
	}

	slog.Info("TextChain started", "config", cfgPath)

	sig := <-sigChan
	slog.Info("Received signal, shutting down...", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := app.Stop(shutdownCtx); err != nil {
		slog.Error("Error during shutdown", "error", err)
		os.Exit(1)
	}
}
