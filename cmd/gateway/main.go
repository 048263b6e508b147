// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Command gateway wires together the voice-conversation gateway: config,
// logging, the session registry, the Remote Stream Driver, the Session
// Lifecycle Manager, and the WebSocket bridge, then serves it over HTTP.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/rapidaai/voicegateway/internal/bridge"
	"github.com/rapidaai/voicegateway/internal/config"
	"github.com/rapidaai/voicegateway/internal/dispatch"
	"github.com/rapidaai/voicegateway/internal/lifecycle"
	"github.com/rapidaai/voicegateway/internal/logging"
	"github.com/rapidaai/voicegateway/internal/session"
	"github.com/rapidaai/voicegateway/internal/stream"
	"github.com/rapidaai/voicegateway/internal/tool"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	vConfig, err := config.InitConfig()
	if err != nil {
		return fmt.Errorf("init config: %w", err)
	}
	cfg, err := config.GetApplicationConfig(vConfig)
	if err != nil {
		return fmt.Errorf("load application config: %w", err)
	}

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, FilePath: cfg.LogFile})
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	logger.Infow("starting voice gateway", "version", cfg.Version, "region", cfg.AWSRegion, "model", cfg.ModelID)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opener, err := stream.NewBedrockOpener(ctx, logger, cfg.AWSRegion, cfg.AWSProfile)
	if err != nil {
		return fmt.Errorf("build bedrock opener: %w", err)
	}

	registry := session.NewRegistry()
	invoker := tool.NewInvoker(logger, cfg.WeatherAPIBase)
	dispatcher := dispatch.New(logger, invoker)
	driver := stream.New(opener, dispatcher, logger, cfg.ModelID, cfg.RequestTimeout)
	manager := lifecycle.New(logger, registry, driver, cfg)

	go manager.StartSweeper(ctx)

	b := bridge.New(logger, manager)

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization"},
	}))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "activeSessions": registry.Len()})
	})
	router.GET("/ws/:clientId", b.Handle)
	router.GET("/ws", b.Handle)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Infow("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Infow("shutdown signal received")
	case err := <-serveErr:
		return fmt.Errorf("serve: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorw("graceful shutdown failed", "error", err)
	}
	return nil
}
