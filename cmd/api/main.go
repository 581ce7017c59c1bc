package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/flash-sale-checkout/internal/cache"
	"github.com/fairyhunter13/flash-sale-checkout/internal/config"
	"github.com/fairyhunter13/flash-sale-checkout/internal/handler"
	"github.com/fairyhunter13/flash-sale-checkout/internal/repository"
	"github.com/fairyhunter13/flash-sale-checkout/internal/service"
	"github.com/fairyhunter13/flash-sale-checkout/internal/sweeper"
	"github.com/fairyhunter13/flash-sale-checkout/internal/validator"
	"github.com/fairyhunter13/flash-sale-checkout/pkg/database"
)

func main() {
	// Load configuration first
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Initialize zerolog based on configuration
	initLogger(cfg)

	// Create context for startup
	ctx := context.Background()

	// Initialize database pool with retry
	pool, err := database.NewPool(ctx, cfg.DB.DSN(), 5)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	if err := database.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	// Product cache; nil client degrades to uncached reads
	redisClient := cache.NewRedisClient(cfg.Redis)
	productCache := cache.NewProductCache(redisClient, cfg.Checkout.ProductCacheTTL)

	// Initialize Fiber with production-ready configuration
	app := fiber.New(fiber.Config{
		AppName:      "Flash-Sale Checkout",
		ReadTimeout:  30 * time.Second,  // Max time to read request
		WriteTimeout: 30 * time.Second,  // Max time to write response
		IdleTimeout:  120 * time.Second, // Max time for keep-alive connections
		BodyLimit:    1 * 1024 * 1024,   // 1MB body limit (explicit, prevents large payloads)
	})

	// Middleware
	app.Use(recover.New())
	app.Use(requestid.New()) // Adds X-Request-ID header to all requests
	app.Use(logger.New())

	// Initialize validator
	validate := validator.New()

	// Layered wiring: repositories -> services -> handlers
	productRepo := repository.NewProductRepository(pool)
	holdRepo := repository.NewHoldRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)
	webhookRepo := repository.NewWebhookRepository(pool)

	retries := cfg.Checkout.TxRetries
	productService := service.NewProductService(productRepo, productCache)
	holdService := service.NewHoldService(pool, productRepo, holdRepo, productCache, cfg.Checkout.HoldTTL, retries)
	orderService := service.NewOrderService(pool, productRepo, holdRepo, orderRepo, productCache, retries)
	webhookService := service.NewWebhookService(pool, webhookRepo, orderRepo, orderService, productCache, retries)

	productHandler := handler.NewProductHandler(productService)
	holdHandler := handler.NewHoldHandler(holdService, validate)
	orderHandler := handler.NewOrderHandler(orderService, validate)
	webhookHandler := handler.NewWebhookHandler(webhookService, validate)

	// Health handler; the cache probe is wired only when Redis connected
	var cachePing func(ctx context.Context) error
	if redisClient != nil {
		cachePing = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	healthHandler := handler.NewHealthHandler(pool, cachePing)
	app.Get("/health", healthHandler.Check)

	// Checkout routes
	app.Get("/products/:id", productHandler.GetProduct)
	app.Post("/holds", holdHandler.CreateHold)
	app.Post("/orders", orderHandler.CreateOrder)
	app.Post("/payments/webhook", webhookHandler.ProcessWebhook)

	// Expiry sweeper runs in-process alongside the request path
	sweepCtx, stopSweeper := context.WithCancel(ctx)
	sw := sweeper.New(holdService, cfg.Checkout.SweeperPeriod)
	go sw.Run(sweepCtx)

	// Start server with graceful shutdown
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("starting server")
		if err := app.Listen(":" + cfg.Server.Port); err != nil {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	log.Info().Int("timeout_seconds", cfg.Server.ShutdownTimeout).Msg("shutting down server...")

	stopSweeper()

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second,
	)
	defer shutdownCancel()

	// Shutdown server (waits for in-flight requests)
	log.Info().Msg("waiting for in-flight requests to complete...")
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	// Close database pool AFTER server shutdown (even if shutdown timed out)
	log.Info().Msg("closing database connections...")
	pool.Close()
	if redisClient != nil {
		_ = redisClient.Close()
	}
	log.Info().Msg("database connections closed")
	log.Info().Msg("server stopped")
}

// initLogger configures zerolog based on the application configuration.
func initLogger(cfg *config.Config) {
	// Set log level
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Configure output format
	if cfg.Log.Pretty {
		// Human-readable output for development
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			With().Timestamp().Logger()
	} else {
		// JSON output for production
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
}
