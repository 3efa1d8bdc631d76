package main

import (
	"context"
	"log"

	"github.com/dmitrijs2005/bizdesk/internal/logging"
	"github.com/dmitrijs2005/bizdesk/internal/server"
	"github.com/dmitrijs2005/bizdesk/internal/server/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()

	zl, err := logging.NewZap(cfg.LogLevel, cfg.LogFormat, "bizdesk")
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := logging.NewZapLogger(zl)
	defer logger.Sync()

	app, err := server.NewApp(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "app init failed", "error", err)
		return
	}

	if err := app.Run(ctx); err != nil {
		logger.Error(ctx, "app stopped with error", "error", err)
	}

}
