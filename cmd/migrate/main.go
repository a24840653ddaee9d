package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/order-pricing-engine/internal/config"
	"github.com/fairyhunter13/order-pricing-engine/pkg/database"
)

// migrate applies the embedded schema migrations and exits.
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
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := database.NewPool(ctx, cfg.DB.DSN(), 5)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	applied, err := database.Migrate(ctx, pool)
	if err != nil {
		log.Error().Err(err).Int("applied", applied).Msg("migration failed")
		pool.Close()
		os.Exit(1)
	}
	log.Info().Int("applied", applied).Msg("migrations complete")
}
