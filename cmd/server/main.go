package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"github.com/airesearcher/frontend/internal/client"
	"github.com/airesearcher/frontend/internal/config"
	"github.com/airesearcher/frontend/internal/handler"
	"github.com/airesearcher/frontend/internal/logging"
	"github.com/airesearcher/frontend/internal/middleware"
	"github.com/airesearcher/frontend/internal/service"
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

	// Redis backs the start rate limiter; without it the limiter runs in process
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	ctx := context.Background()
	var limiterRedis *redis.Client
	if err := redisClient.Ping(ctx).Err(); err != nil {
		appLogger.Warn("Redis not available, rate limiting per process", "error", err)
	} else {
		limiterRedis = redisClient
	}

	// Initialize backend client and services
	backendClient := client.NewBackendClient(&cfg.API, appLogger)
	proxyService := service.NewProxyService(backendClient, appLogger)

	// Initialize handlers and middleware
	proxyHandler := handler.NewProxyHandler(proxyService, appLogger)
	rateLimiter := middleware.NewRateLimiter(limiterRedis, appLogger)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    10 * 1024 * 1024, // 10MB
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

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		hctx, cancel := context.WithTimeout(c.Context(), 3*time.Second)
		defer cancel()

		backendOK := backendClient.Health(hctx) == nil
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"backend": backendOK,
				"redis":   limiterRedis != nil,
			},
		})
	})

	// API proxy
	app.Get("/api/*", proxyHandler.Get)
	app.Post("/api/*", rateLimiter.StartLimit(cfg.RateLimit.StartPerHour), proxyHandler.Post)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		appLogger.Info("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			appLogger.Error("Server shutdown error", "error", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	appLogger.Info("Server starting", "addr", addr, "backend", backendClient.BaseURL())
	if err := app.Listen(addr); err != nil {
		appLogger.Error("Server error", "error", err)
		os.Exit(1)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return response.Error(c, code, response.CodeServiceError, message, nil)
}
