package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/venturesroom/venturechat/internal/app"
	"github.com/venturesroom/venturechat/internal/config"
	"github.com/venturesroom/venturechat/internal/log"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file (default: look up, then write one)")
	flag.Parse()

	bootLog := log.New("info")

	cfg, usedPath, err := config.Load(bootLog, configPath)
	if err != nil {
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}

	logger := log.New(cfg.LogLevel)
	if usedPath != "" {
		logger.Info().Str("config", usedPath).Msg("configuration loaded")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize application")
	}

	logger.Info().Str("addr", cfg.Addr).Msg("starting venturechat gateway")
	if err := application.Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server exited with error")
	}
	logger.Info().Msg("server stopped")
}
