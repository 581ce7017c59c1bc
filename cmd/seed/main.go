// Command seed loads products from a JSON catalogue into the database.
// Products are created externally; the checkout core only mutates stock.
//
// Usage: seed [catalogue.json]   (default seed/products.json)
package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/fairyhunter13/flash-sale-checkout/internal/config"
	"github.com/fairyhunter13/flash-sale-checkout/internal/model"
	"github.com/fairyhunter13/flash-sale-checkout/internal/repository"
	"github.com/fairyhunter13/flash-sale-checkout/pkg/database"
)

type seedProduct struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       string `json:"price"`
	Stock       int    `json:"stock"`
}

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()

	path := "seed/products.json"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("failed to read catalogue")
	}

	var items []seedProduct
	if err := json.Unmarshal(raw, &items); err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("failed to parse catalogue")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx := context.Background()
	pool, err := database.NewPool(ctx, cfg.DB.DSN(), 5)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	repo := repository.NewProductRepository(pool)
	for _, item := range items {
		price, err := decimal.NewFromString(item.Price)
		if err != nil {
			log.Fatal().Err(err).Str("name", item.Name).Msg("invalid price in catalogue")
		}
		if price.IsNegative() || item.Stock < 0 {
			log.Fatal().Str("name", item.Name).Msg("price and stock must be non-negative")
		}

		p := &model.Product{
			Name:        item.Name,
			Description: item.Description,
			Price:       price,
			Stock:       item.Stock,
		}
		if err := repo.Insert(ctx, p); err != nil {
			log.Fatal().Err(err).Str("name", item.Name).Msg("failed to insert product")
		}
		log.Info().
			Int64("id", p.ID).
			Str("name", p.Name).
			Str("price", p.Price.StringFixed(2)).
			Int("stock", p.Stock).
			Msg("product seeded")
	}

	log.Info().Int("count", len(items)).Msg("catalogue seeded")
}
