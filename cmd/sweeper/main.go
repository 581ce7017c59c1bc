// Command sweeper runs the expiry sweeper standalone, outside the API
// process. Useful when the API is scaled horizontally and only one sweeper
// should run.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/flash-sale-checkout/internal/cache"
	"github.com/fairyhunter13/flash-sale-checkout/internal/config"
	"github.com/fairyhunter13/flash-sale-checkout/internal/repository"
	"github.com/fairyhunter13/flash-sale-checkout/internal/service"
	"github.com/fairyhunter13/flash-sale-checkout/internal/sweeper"
	"github.com/fairyhunter13/flash-sale-checkout/pkg/database"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

	ctx, stop := context.WithCancel(context.Background())

	pool, err := database.NewPool(ctx, cfg.DB.DSN(), 5)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	redisClient := cache.NewRedisClient(cfg.Redis)
	productCache := cache.NewProductCache(redisClient, cfg.Checkout.ProductCacheTTL)

	productRepo := repository.NewProductRepository(pool)
	holdRepo := repository.NewHoldRepository(pool)
	holdService := service.NewHoldService(pool, productRepo, holdRepo, productCache,
		cfg.Checkout.HoldTTL, cfg.Checkout.TxRetries)

	sw := sweeper.New(holdService, cfg.Checkout.SweeperPeriod)
	go sw.Run(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	stop()
	if redisClient != nil {
		_ = redisClient.Close()
	}
}
