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

	"github.com/fairyhunter13/order-pricing-engine/internal/cache"
	"github.com/fairyhunter13/order-pricing-engine/internal/config"
	"github.com/fairyhunter13/order-pricing-engine/internal/handler"
	"github.com/fairyhunter13/order-pricing-engine/internal/repository"
	"github.com/fairyhunter13/order-pricing-engine/internal/service"
	"github.com/fairyhunter13/order-pricing-engine/internal/usage"
	appvalidator "github.com/fairyhunter13/order-pricing-engine/internal/validator"
	"github.com/fairyhunter13/order-pricing-engine/pkg/database"
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

	// Shared cache when REDIS_URL is set, otherwise process-local
	discountCache, cachePinger := newCache(ctx, cfg.Redis)

	// Initialize Fiber with production-ready configuration
	app := fiber.New(fiber.Config{
		AppName:      "Order Pricing Engine",
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
	validate := appvalidator.New()

	// Initialize discount components (layered architecture)
	discountRepo := repository.NewDiscountRepository(pool)
	accountant := usage.NewAccountant(discountRepo, usage.Config{
		BatchSize:  cfg.Usage.BatchSize,
		FlushDelay: cfg.Usage.FlushDelay,
		Retry:      cfg.Usage.RetryPolicy(),
	})
	discountService := service.NewDiscountService(discountRepo, discountCache, accountant, service.DiscountOptions{
		CacheTTL:   cfg.Discount.CacheTTL,
		ReadPolicy: cfg.Discount.ReadPolicy(),
	})
	discountHandler := handler.NewDiscountHandler(discountService, validate)
	quoteHandler := handler.NewQuoteHandler(validate)
	adminHandler := handler.NewAdminHandler(discountService, validate)

	// Health handler
	healthHandler := handler.NewHealthHandler(pool, cachePinger)
	app.Get("/health", healthHandler.Check)

	// Storefront routes
	app.Post("/api/discounts/validate", discountHandler.ValidateDiscount)
	app.Post("/api/orders/quote", quoteHandler.Quote)

	// Back-office routes
	admin := app.Group("/api/admin")
	admin.Post("/discounts", adminHandler.CreateDiscount)
	admin.Get("/discounts", adminHandler.ListDiscounts)
	admin.Get("/discounts/:code", adminHandler.GetDiscount)
	admin.Put("/discounts/:code", adminHandler.UpdateDiscount)
	admin.Delete("/discounts/:code", adminHandler.DeleteDiscount)

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

	// Drain pending usage increments before the pool goes away
	log.Info().Int("pending", accountant.Pending()).Msg("flushing usage increments...")
	if err := accountant.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("usage accountant did not drain before timeout")
	}

	if err := discountCache.Close(); err != nil {
		log.Error().Err(err).Msg("error closing cache")
	}

	// Close database pool AFTER server shutdown (even if shutdown timed out)
	log.Info().Msg("closing database connections...")
	pool.Close()
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

// newCache returns the discount cache and, for a shared cache, the pinger the
// health check uses. The pinger is nil for the in-process cache.
func newCache(ctx context.Context, cfg config.RedisConfig) (cache.Cache, handler.Pinger) {
	if cfg.URL == "" {
		log.Info().Msg("REDIS_URL not set, using in-process discount cache")
		return cache.NewMemoryCache(), nil
	}
	rc, err := cache.NewRedisCache(ctx, cfg.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	log.Info().Msg("redis connection established")
	return rc, rc
}
