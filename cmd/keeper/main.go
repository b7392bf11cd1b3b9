// Command keeper drives prediction-market rounds through their lifecycle. It
// loads configuration, validates it, sets up signal handling and runs the
// application in the configured mode.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alanyoungcy/roundkeeper/internal/app"
	"github.com/alanyoungcy/roundkeeper/internal/config"
	"github.com/alanyoungcy/roundkeeper/internal/logging"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file")
	mode := flag.String("mode", "", "override the configured mode (keeper|once)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config %s: %v\n", *configPath, err)
		os.Exit(1)
	}
	if *mode != "" {
		cfg.Mode = *mode
	}

	logger, closeLog := logging.New(cfg.Log)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		_ = closeLog()
		os.Exit(1)
	}

	logger.Info("round keeper starting",
		slog.String("mode", cfg.Mode),
		slog.String("config", *configPath),
		slog.Any("settings", config.RedactedConfig(cfg)),
	)

	os.Exit(run(cfg, logger, closeLog))
}

func run(cfg *config.Config, logger *slog.Logger, closeLog func() error) int {
	defer func() { _ = closeLog() }()

	application := app.New(cfg, logger)
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		// context.Canceled is expected on clean shutdown.
		if errors.Is(err, context.Canceled) {
			logger.Info("shutdown complete")
			return 0
		}
		logger.Error("application error", slog.String("error", err.Error()))
		return 1
	}

	logger.Info("shutdown complete")
	return 0
}
