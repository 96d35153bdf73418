package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/restfulblog/blog-service/internal/blog"
	"github.com/restfulblog/blog-service/internal/cache"
	"github.com/restfulblog/blog-service/internal/config"
	"github.com/restfulblog/blog-service/internal/events"
	"github.com/restfulblog/blog-service/internal/server"
	"github.com/restfulblog/blog-service/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize storage
	store, err := storage.NewStorage(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal("Failed to initialize storage", zap.String("type", cfg.Storage.Type), zap.Error(err))
	}

	if cfg.Cache.RedisAddr != "" {
		client, err := cache.NewRedisClient(ctx, cfg.Cache)
		if err != nil {
			logger.Fatal("Failed to initialize cache", zap.Error(err))
		}
		store = cache.NewStore(store, client, cfg.Cache.TTL, logger)
		logger.Info("Redis cache enabled", zap.String("addr", cfg.Cache.RedisAddr))
	}
	defer store.Close()

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.Events.NATSURL != "" {
		natsPublisher, err := events.NewNATSPublisher(cfg.Events.NATSURL, cfg.Events.SubjectPrefix)
		if err != nil {
			logger.Fatal("Failed to initialize event publisher", zap.Error(err))
		}
		publisher = natsPublisher
		logger.Info("NATS events enabled", zap.String("url", cfg.Events.NATSURL))
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("Event publisher did not close cleanly", zap.Error(err))
		}
	}()

	// Initialize blog service
	service := blog.NewService(store, publisher, logger)

	if cfg.Seed {
		seeded, err := service.SeedSamplePost(ctx)
		if err != nil {
			logger.Error("Failed to seed sample post", zap.Error(err))
		} else if seeded {
			logger.Info("Seeded sample post")
		}
	}

	// Initialize HTTP server
	gin.SetMode(gin.ReleaseMode)
	httpServer := server.NewServer(cfg.Server, service, logger)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("The RESTful Blog server has started", zap.Int("port", cfg.Server.Port), zap.String("storage", cfg.Storage.Type))
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", zap.Error(err))
			sigChan <- syscall.SIGTERM
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	logger.Info("Shutdown signal received, gracefully shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	cancel()
	logger.Info("Shutdown complete")
}
