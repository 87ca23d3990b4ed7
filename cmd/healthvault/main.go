package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/totegamma/healthvault/internal/config"
	"github.com/totegamma/healthvault/internal/logger"
	"github.com/totegamma/healthvault/internal/server"
	"github.com/totegamma/healthvault/internal/telemetry"
)

func main() {
	configPath := flag.String("config", os.Getenv("HEALTHVAULT_CONFIG"), "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log, err := logger.New(cfg.Log,
		zap.String("service", server.ServiceName),
		zap.String("mode", cfg.Server.Mode),
	)
	if err != nil {
		panic("failed to build logger: " + err.Error())
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Trace.Enable {
		shutdown, err := telemetry.Setup(ctx, server.ServiceName, cfg.Trace.Endpoint)
		if err != nil {
			log.Fatal("failed to setup tracing", zap.Error(err))
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				log.Warn("tracer shutdown failed", zap.Error(err))
			}
		}()
	}

	srv, err := server.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to build server", zap.Error(err))
	}

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Error("server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", zap.Error(err))
	}
}
