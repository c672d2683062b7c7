// Package main is the entry point for the mChat API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/mchat/internal/auth"
	"github.com/capitalize-ai/mchat/internal/capability"
	"github.com/capitalize-ai/mchat/internal/config"
	"github.com/capitalize-ai/mchat/internal/export"
	"github.com/capitalize-ai/mchat/internal/handler"
	natsclient "github.com/capitalize-ai/mchat/internal/nats"
	"github.com/capitalize-ai/mchat/internal/service"
	"github.com/capitalize-ai/mchat/pkg/logger"
	"github.com/capitalize-ai/mchat/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	log.Info("starting API server")

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "mchat", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Session events always reach SSE subscribers, and NATS when configured.
	broadcaster := service.NewBroadcaster(64)
	publishers := service.Publishers{broadcaster}

	var (
		feed       handler.EventReader
		readyCheck handler.ConnectionChecker
	)
	if cfg.NATSEnabled() {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		natsClient, err := natsclient.Connect(connectCtx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			cancel()
			log.Fatal("failed to connect to NATS", zap.Error(err))
		}
		defer natsClient.Close()

		// Ensure JetStream stream exists
		streamManager := natsclient.NewStreamManager(natsClient, 24*time.Hour)
		err = streamManager.EnsureStream(connectCtx)
		cancel()
		if err != nil {
			log.Fatal("failed to ensure stream", zap.Error(err))
		}

		publishers = append(publishers, streamManager)
		feed = streamManager
		readyCheck = natsClient
	} else {
		log.Info("NATS_URL not set, event feed disabled")
	}

	// Platform capabilities
	var caps capability.Set
	if cfg.ExportDir != "" {
		exporter, err := export.NewDirExporter(cfg.ExportDir)
		if err != nil {
			log.Fatal("failed to prepare export dir", zap.Error(err))
		}
		caps.Exporter = exporter
	}

	// Initialize auth gate and sessions
	gate, err := auth.NewGate(auth.Config{
		Secret:   cfg.JWTSecret,
		TokenTTL: cfg.JWTExpiration,
		Latency:  cfg.AuthLatency,
	}, auth.DemoUsers...)
	if err != nil {
		log.Fatal("failed to create auth gate", zap.Error(err))
	}

	sessions := service.NewManager(service.Options{
		ReplyDelay:   &service.ReplyDelay{Min: cfg.ReplyDelayMin, Spread: cfg.ReplyDelaySpread},
		Publisher:    publishers,
		Capabilities: caps,
		Logger:       log,
	})

	// Create router
	router := handler.NewRouter(handler.RouterConfig{
		Health:            handler.NewHealthHandler(readyCheck),
		Auth:              handler.NewAuthHandler(gate, sessions, log),
		Session:           handler.NewSessionHandler(sessions),
		Conversations:     handler.NewConversationHandler(sessions, log),
		Messages:          handler.NewMessageHandler(sessions, log, cfg.ServerWriteTimeout/2),
		Stream:            handler.NewStreamHandler(sessions, broadcaster, feed, log, 30*time.Second),
		Verifier:          gate,
		AllowedOrigins:    cfg.AllowedOrigins,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
	}, log)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	// Let pending replies land so their events are published.
	done := make(chan struct{})
	go func() {
		sessions.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		log.Warn("replies still pending at shutdown")
	}

	log.Info("server stopped")
}
