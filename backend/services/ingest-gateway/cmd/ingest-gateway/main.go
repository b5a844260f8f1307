package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"trackhub/backend/libs/logging"
	"trackhub/backend/services/ingest-gateway/internal/app"
	"trackhub/backend/services/ingest-gateway/internal/config"
)

func main() {
	configFile := pflag.String("config", "", "path to YAML config (overrides CONFIG_FILE)")
	envFile := pflag.String("env-file", "", "path to dotenv file (overrides ENV_FILE)")
	pflag.Parse()
	if *configFile != "" {
		_ = os.Setenv("CONFIG_FILE", *configFile)
	}
	if *envFile != "" {
		_ = os.Setenv("ENV_FILE", *envFile)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := logging.NewLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Fatal("failed to init application", zap.Error(err))
	}
	defer application.Close()

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("application stopped with error", zap.Error(err))
	}
}
