// Command devbackend serves the research backend API locally. Jobs are kept
// in Redis and walked through the research stages by an Asynq worker that
// produces canned papers, so the gateway and CLI can run end to end.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/airesearcher/frontend/internal/config"
	"github.com/airesearcher/frontend/internal/handler"
	"github.com/airesearcher/frontend/internal/logging"
	"github.com/airesearcher/frontend/internal/service"
	"github.com/airesearcher/frontend/internal/worker"
	"github.com/airesearcher/frontend/pkg/response"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger, closeLog := logging.Setup(cfg.Server.LogLevel, cfg.Server.LogFile)
	defer closeLog()
	slog.SetDefault(appLogger)

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	// Test Redis connection
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		appLogger.Warn("Redis not available", "error", err)
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	// Initialize Asynq client
	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()

	jobService := service.NewJobService(redisClient, asynqClient)
	backendHandler := handler.NewBackendHandler(jobService, handler.NewValidator(), appLogger)

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	// API routes
	api := app.Group("/api")
	api.Get("/health", backendHandler.Health)

	research := api.Group("/research")
	research.Post("/start", backendHandler.Start)
	research.Get("/:jobId/status", backendHandler.Status)
	research.Get("/:jobId/logs", backendHandler.Logs)
	research.Get("/:jobId/results", backendHandler.Results)
	research.Get("/:jobId/pdf", backendHandler.PDF)

	// Start Asynq worker server
	srv := newWorkerServer(cfg, redisOpt)
	researchWorker := worker.NewResearchWorker(jobService, cfg.DevBackend.StageDelay, appLogger)

	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypeResearch, researchWorker.ProcessTask)
	if err := srv.Start(mux); err != nil {
		appLogger.Error("Asynq worker error", "error", err)
		os.Exit(1)
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		appLogger.Info("Shutting down dev backend...")
		srv.Shutdown()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			appLogger.Error("Server shutdown error", "error", err)
		}
	}()

	addr := ":" + cfg.DevBackend.Port
	appLogger.Info("Dev backend starting", "addr", addr, "stage_delay", cfg.DevBackend.StageDelay)
	if err := app.Listen(addr); err != nil {
		appLogger.Error("Server error", "error", err)
		os.Exit(1)
	}
}

func newWorkerServer(cfg *config.Config, redisOpt asynq.RedisClientOpt) *asynq.Server {
	asynqLogLevel := asynq.InfoLevel
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		asynqLogLevel = asynq.DebugLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "warn") {
		asynqLogLevel = asynq.WarnLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "error") {
		asynqLogLevel = asynq.ErrorLevel
	}

	concurrency := cfg.DevBackend.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	return asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			service.QueueResearch: 1,
		},
		LogLevel: asynqLogLevel,
	})
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return response.Detail(c, code, message)
}
