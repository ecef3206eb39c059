package main

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/devjyo/minigame-lobby-backend/internal/broadcast"
	"github.com/devjyo/minigame-lobby-backend/internal/config"
	"github.com/devjyo/minigame-lobby-backend/internal/gateway"
	"github.com/devjyo/minigame-lobby-backend/internal/httpapi"
	"github.com/devjyo/minigame-lobby-backend/internal/lobby"
	"github.com/devjyo/minigame-lobby-backend/internal/registry"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	b := broadcast.New(log)
	dir := lobby.NewDirectory(ctx, cfg.StartDelay, b, log)

	handler := httpapi.SetupRoutes(gateway.Handler(gateway.Deps{
		Registry:       registry.New(),
		Broadcast:      b,
		Directory:      dir,
		Log:            log,
		OriginPatterns: cfg.AllowedOrigins,
	}))

	log.Info("listening", zap.String("addr", cfg.Addr))
	if err := http.ListenAndServe(cfg.Addr, handler); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}
