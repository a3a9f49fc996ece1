package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/liliang-cn/folio/internal/api"
	"github.com/liliang-cn/folio/internal/api/middleware"
	"github.com/liliang-cn/folio/internal/config"
	"github.com/liliang-cn/folio/internal/repository"
	"github.com/liliang-cn/folio/internal/service"
	"github.com/liliang-cn/folio/internal/upstream"
	"go.uber.org/zap"
)

var (
	configPath = flag.String("config", "", "Path to config file")
)

func main() {
	flag.Parse()

	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("warning: failed to load .env file: %v", err)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if cfg.Upstream.APIKey == "" {
		logger.Warn("No upstream API key configured, chat requests will fail until one is set")
	}

	// Initialize database (transcript log only, /chat keeps no state)
	db, err := repository.NewDB(cfg.Database.Path)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	transcriptRepo := repository.NewTranscriptRepository(db)

	// Initialize services
	completer := upstream.NewClient(upstream.Options{
		BaseURL:      cfg.Upstream.BaseURL,
		Model:        cfg.Upstream.Model,
		Timeout:      cfg.Upstream.Timeout,
		MaxErrorBody: cfg.Upstream.MaxErrorBody,
		Logger:       logger.Named("upstream"),
	})
	proxyService := service.NewProxyService(cfg, completer, logger.Named("proxy"))
	widgetService := service.NewWidgetService(cfg)
	transcriptService := service.NewTranscriptService(transcriptRepo)

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewRateLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst)
	}

	// Setup router
	router := api.SetupRouter(proxyService, widgetService, transcriptService, api.RouterConfig{
		AllowOrigins: cfg.CORS.AllowOrigins,
		RateLimiter:  limiter,
		ContentRoute: cfg.Content.Route,
		ContentPath:  cfg.Content.Path,
		Logger:       logger,
	})

	// Create HTTP server. No WriteTimeout: streamed replies are bounded by
	// the upstream timeout instead.
	srv := &http.Server{
		Addr:              cfg.Address(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Starting folio server",
			zap.String("address", cfg.Address()),
			zap.String("base_url", cfg.Server.BaseURL),
			zap.String("upstream", cfg.Upstream.BaseURL),
			zap.String("model", cfg.Upstream.Model),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
