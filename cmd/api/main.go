package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/mediapress/transcoder/internal/cache"
	"github.com/mediapress/transcoder/internal/coconut"
	"github.com/mediapress/transcoder/internal/config"
	"github.com/mediapress/transcoder/internal/database"
	"github.com/mediapress/transcoder/internal/jobs"
	"github.com/mediapress/transcoder/internal/logging"
	"github.com/mediapress/transcoder/internal/metrics"
	"github.com/mediapress/transcoder/internal/middleware"
	"github.com/mediapress/transcoder/internal/outputs"
	"github.com/mediapress/transcoder/internal/queue"
	"github.com/mediapress/transcoder/internal/storages"
	"github.com/mediapress/transcoder/internal/tracing"
	"github.com/mediapress/transcoder/internal/upload"
)

// uploadBucket holds volume-scoped uploads for the default HTTP-upload
// storage.
const uploadBucket = "uploads"

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	if cfg.Tracing.Enabled {
		_, closer, err := tracing.InitTracer(cfg.Tracing.ServiceName, cfg.Tracing.JaegerEndpoint)
		if err != nil {
			logger.Fatalf("Failed to initialize tracer: %v", err)
		}
		defer closer.Close()
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	repo := database.NewRepository(db)

	redisCache, err := cache.NewCache(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Warnf("Redis unavailable, continuing without cache: %v", err)
		redisCache = nil
	}

	q, err := queue.New(cfg.Queue)
	if err != nil {
		logger.Fatalf("Failed to connect to queue: %v", err)
	}
	defer q.Close()

	uploader, err := upload.New(cfg.Upload, uploadBucket)
	if err != nil {
		logger.Fatalf("Failed to initialize upload backend: %v", err)
	}

	client := coconut.NewHTTPClient(cfg.Coconut)
	outputService := outputs.NewService(repo, redisCache, logger)
	storageService := storages.NewService(cfg.Jobs.Storages, cfg.Upload.BaseURL, redisCache, logger)
	jobService := jobs.NewService(client, repo, outputService, logger, cfg.Jobs.PollInterval)

	api := &API{
		cfg:      cfg,
		db:       db,
		jobs:     jobService,
		store:    repo,
		outputs:  outputService,
		storages: storageService,
		uploader: uploader,
		queue:    q,
		logger:   logger,
	}

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Port)
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.ErrorWithErr("Metrics server failed", err)
			}
		}()
	}

	router := setupRouter(api)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Infof("Starting API server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatalf("Server forced to shutdown: %v", err)
	}
	if metricsServer != nil {
		_ = metricsServer.Shutdown(ctx)
	}

	logger.Info("Server stopped")
}

func setupRouter(api *API) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(api.logger))

	router.GET("/health", api.healthCheck)

	// Webhooks and uploads are called by external services and are not
	// subject to the API key.
	router.POST("/webhooks/coconut", api.webhook)
	router.POST("/uploads/:volume/*path", api.upload)
	router.PUT("/uploads/:volume/*path", api.upload)

	limiter := middleware.NewRateLimiter(20, 40)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.APIKeyAuth(api.cfg.Auth.APIKey))
	v1.Use(middleware.RateLimit(limiter))
	{
		v1.POST("/jobs", api.createJob)
		v1.GET("/jobs/:id", api.getJob)
		v1.GET("/jobs/:id/outputs", api.getJobOutputs)
		v1.GET("/queue/stats", api.queueStats)
		v1.POST("/queue/redrive", api.redriveQueue)
	}

	return router
}
