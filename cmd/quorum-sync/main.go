package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/QuilibriumNetwork/quorum-shared/internal/app"
	"github.com/QuilibriumNetwork/quorum-shared/pkg/banner"
	"github.com/QuilibriumNetwork/quorum-shared/pkg/config"
	"github.com/QuilibriumNetwork/quorum-shared/pkg/logger"
)

// set via ldflags during release builds
var version = "dev"

func main() {
	_ = godotenv.Load(".env")

	flags := config.ParseConfigFlags()
	fileCfg, fileExists, err := config.ParseConfigFile(flags)
	if err != nil {
		logger.Setup("", "")
		logger.Error("config_load_failed", "path", flags.Config, "error", err)
		os.Exit(1)
	}
	envCfg, _ := config.ParseConfigEnvs()
	eff, err := config.LoadEffectiveConfig(flags, fileCfg, fileExists, envCfg)
	if err != nil {
		logger.Setup("", "")
		logger.Error("config_resolve_failed", "error", err)
		os.Exit(1)
	}

	logger.Setup(eff.Config.Logging.Level, eff.Config.Logging.Format)
	logger.Info("starting", "version", version, "config_source", eff.Source, "db", eff.DBPath)

	a, err := app.New(eff, version)
	if err != nil {
		logger.Error("startup_failed", "error", err)
		os.Exit(1)
	}
	banner.Print(eff, version)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := a.Run(ctx); err != nil {
		logger.Error("run_failed", "error", err)
		os.Exit(1)
	}
	logger.Info("stopped")
}
