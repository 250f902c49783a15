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

	"github.com/joho/godotenv"

	"openweather-device/internal/app"
	"openweather-device/internal/config"
	"openweather-device/internal/logging"
)

var version = "dev"
var appName = "openweather-device"

func main() {
	var configFile string
	flag.StringVar(&configFile, "f", "", "config file")
	flag.StringVar(&configFile, "config_file", "", "config file (same as -f)")
	flag.Parse()

	if configFile == "" {
		fmt.Fprintf(os.Stderr, "usage: %s -f <config_file>\n", appName)
		flag.PrintDefaults()
		os.Exit(2)
	}

	// A missing .env is fine; the environment and config file still apply.
	_ = godotenv.Load()

	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg, version, appName)
	slog.SetDefault(logger)

	slog.Info("starting",
		"app", appName,
		"version", version,
		"env", cfg.AppEnv,
		"log_level", cfg.LogLevel.String(),
		"config_file", configFile,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run failed", "err", err)
		os.Exit(1)
	}

	slog.Info("shutting down")
}
