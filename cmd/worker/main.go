package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/bulk-coupon-system/internal/config"
	"github.com/fairyhunter13/bulk-coupon-system/internal/lock"
	"github.com/fairyhunter13/bulk-coupon-system/internal/repository"
	"github.com/fairyhunter13/bulk-coupon-system/internal/service"
	"github.com/fairyhunter13/bulk-coupon-system/internal/worker"
	"github.com/fairyhunter13/bulk-coupon-system/pkg/database"
	applog "github.com/fairyhunter13/bulk-coupon-system/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	applog.Init(cfg.Log.Level, cfg.Log.Pretty)

	loc, err := cfg.Redemption.Location()
	if err != nil {
		log.Fatal().Err(err).Str("timezone", cfg.Redemption.Timezone).Msg("invalid redemption timezone")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPool(ctx, cfg.DB.DSN(), 5)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	var locker worker.Locker = lock.NewLocalLocker()
	if cfg.Redis.Enabled() {
		rdb, err := database.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer func() { _ = rdb.Close() }()
		locker = lock.NewRedisLocker(rdb, "coupon:lock:")
	}

	expiry := service.NewExpiryService(repository.NewCouponRepository(pool), loc)
	job := worker.NewExpiryJob(expiry, locker, cfg.Worker.ExpiryInterval)

	log.Info().Str("timezone", loc.String()).Msg("worker started")
	job.Run(ctx)
	log.Info().Msg("worker stopped")
}
