// Package cmd contains the coursechat command line interface.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"coursechat/internal/app"
	"coursechat/internal/config"
	"coursechat/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "coursechat",
	Short: "Question answering over course materials",
	Long: `coursechat answers questions about ingested course materials using
retrieval-augmented generation. Ask one-off questions, run the HTTP API,
or expose the search tools over MCP.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// initLogger builds the process logger and installs it as slog's default.
//
// Log level is controlled by the DEBUG environment variable. Output goes
// to stderr so the MCP stdio transport keeps stdout for JSON-RPC.
func initLogger() log.Logger {
	cfg := log.Config{Level: slog.LevelInfo}
	if os.Getenv("DEBUG") != "" {
		cfg.Level = slog.LevelDebug
	}
	logger := log.New(cfg)
	slog.SetDefault(logger)
	return logger
}

// setupApp loads configuration and initializes the full application.
// Callers must Close the returned App.
func setupApp(ctx context.Context) (*app.App, log.Logger, error) {
	logger := initLogger()

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing application: %w", err)
	}
	return a, logger, nil
}

// closeApp releases the application, logging rather than failing on
// shutdown errors.
func closeApp(a *app.App, logger log.Logger) {
	if err := a.Close(); err != nil {
		logger.Warn("shutdown error", "error", err)
	}
}
