package main

import (
	"os"

	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/bulk-coupon-system/internal/config"
	"github.com/fairyhunter13/bulk-coupon-system/internal/migration"
	applog "github.com/fairyhunter13/bulk-coupon-system/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	applog.Init(cfg.Log.Level, cfg.Log.Pretty)

	cmd := migration.MigrateCommand(func() (migration.Migrator, error) {
		return migration.New(cfg.DB.URL("pgx5"))
	})
	if err := cmd.Execute(); err != nil {
		log.Error().Err(err).Msg("migration failed")
		os.Exit(1)
	}
}
