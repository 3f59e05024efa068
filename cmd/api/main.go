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
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/bulk-coupon-system/internal/codegen"
	"github.com/fairyhunter13/bulk-coupon-system/internal/config"
	"github.com/fairyhunter13/bulk-coupon-system/internal/handler"
	"github.com/fairyhunter13/bulk-coupon-system/internal/lock"
	"github.com/fairyhunter13/bulk-coupon-system/internal/middleware"
	"github.com/fairyhunter13/bulk-coupon-system/internal/repository"
	"github.com/fairyhunter13/bulk-coupon-system/internal/service"
	"github.com/fairyhunter13/bulk-coupon-system/internal/validator"
	"github.com/fairyhunter13/bulk-coupon-system/pkg/database"
	applog "github.com/fairyhunter13/bulk-coupon-system/pkg/logger"
)

func main() {
	// Load configuration first
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	applog.Init(cfg.Log.Level, cfg.Log.Pretty)

	loc, err := cfg.Redemption.Location()
	if err != nil {
		log.Fatal().Err(err).Str("timezone", cfg.Redemption.Timezone).Msg("invalid redemption timezone")
	}

	ctx := context.Background()

	// Initialize database pool with retry
	pool, err := database.NewPool(ctx, cfg.DB.DSN(), 5)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	// Redis is optional: without it locks and rate limits stay in-process,
	// which is only correct for a single API replica.
	var rdb *redis.Client
	if cfg.Redis.Enabled() {
		rdb, err = database.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
	} else {
		log.Warn().Msg("REDIS_URL not set, using in-process locks and rate limiting")
	}

	// Initialize Fiber with production-ready configuration
	app := fiber.New(fiber.Config{
		AppName:      "Bulk Coupon System",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute, // batch creation and CSV export can run long
		IdleTimeout:  120 * time.Second,
		BodyLimit:    1 * 1024 * 1024,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(requestid.New()) // Adds X-Request-ID header to all requests
	app.Use(logger.New())

	validate := validator.New()

	// Repositories
	campaignRepo := repository.NewCampaignRepository(pool)
	batchRepo := repository.NewBatchRepository(pool)
	couponRepo := repository.NewCouponRepository(pool)

	// Generation pipeline
	allocator := service.NewCodeAllocator(codegen.New(), couponRepo)
	writer := service.NewBatchWriter(couponRepo, cfg.Generation.BatchSize)
	generator := service.NewGenerationOrchestrator(allocator, writer, cfg.Generation.BatchSize, cfg.Generation.MaxRetryAttempts)

	var locker service.Locker = lock.NewLocalLocker()
	var redeemLimit fiber.Handler
	if rdb != nil {
		locker = lock.NewRedisLocker(rdb, "coupon:lock:")
	}
	if cfg.RateLimit.Enabled {
		if rdb != nil {
			redeemLimit = middleware.RedisRateLimit(rdb, cfg.RateLimit.Requests, cfg.RateLimit.Window)
		} else {
			redeemLimit = middleware.NewLocalLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window).Handler()
		}
	}

	// Services
	campaignService := service.NewCampaignService(campaignRepo)
	batchService := service.NewBatchService(pool, batchRepo, campaignRepo, couponRepo, generator, locker, cfg.Generation.LockTTL)
	exportService := service.NewExportService(batchRepo, couponRepo)
	redemptionService := service.NewRedemptionService(couponRepo, loc)
	couponService := service.NewCouponService(couponRepo)

	var cachePing handler.Pinger
	if rdb != nil {
		cachePing = handler.PingFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	}

	handler.Routes{
		Health:      handler.NewHealthHandler(pool, cachePing),
		Campaigns:   handler.NewCampaignHandler(campaignService, validate),
		Batches:     handler.NewBatchHandler(batchService, exportService, validate),
		Redemption:  handler.NewRedemptionHandler(redemptionService, couponService, validate),
		RedeemLimit: redeemLimit,
	}.Register(app)

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

	// Close backing stores AFTER server shutdown (even if shutdown timed out)
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing redis client")
		}
	}
	log.Info().Msg("closing database connections...")
	pool.Close()
	log.Info().Msg("database connections closed")
	log.Info().Msg("server stopped")
}
