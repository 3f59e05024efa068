// Package migration applies the embedded SQL schema with golang-migrate.
package migration

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5" // registers the pgx5:// scheme
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// Migrator is the subset of *migrate.Migrate the commands use.
type Migrator interface {
	Up() error
	Steps(n int) error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	Close() (source error, database error)
}

// Factory opens a Migrator. Commands call it lazily so --help works offline.
type Factory func() (Migrator, error)

// New opens a migrator for the embedded schema against databaseURL.
// The URL must use the pgx5:// scheme.
func New(databaseURL string) (Migrator, error) {
	src, err := iofs.New(embeddedMigrations, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("init migrate: %w", err)
	}
	return m, nil
}

// Up applies every pending migration. A database that is already current is not an error.
func Up(databaseURL string) error {
	m, err := New(databaseURL)
	if err != nil {
		return err
	}
	defer closeMigrator(m)
	return up(m)
}

func up(m Migrator) error {
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

func closeMigrator(m Migrator) {
	srcErr, dbErr := m.Close()
	if srcErr != nil || dbErr != nil {
		log.Warn().AnErr("source_error", srcErr).AnErr("database_error", dbErr).Msg("close migrator")
	}
}

// MigrateCommand builds the migrate CLI: up, down [n], version and force <v>.
func MigrateCommand(open Factory) *cobra.Command {
	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Manage the coupon database schema",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	withMigrator := func(fn func(m Migrator, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			m, err := open()
			if err != nil {
				return err
			}
			defer closeMigrator(m)
			return fn(m, args)
		}
	}

	root.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: withMigrator(func(m Migrator, _ []string) error {
			if err := up(m); err != nil {
				return err
			}
			log.Info().Msg("migrations applied")
			return nil
		}),
	})

	root.AddCommand(&cobra.Command{
		Use:   "down [n]",
		Short: "Roll back n migrations (default 1)",
		Args:  cobra.MaximumNArgs(1),
		RunE: withMigrator(func(m Migrator, args []string) error {
			n := 1
			if len(args) == 1 {
				parsed, err := strconv.Atoi(args[0])
				if err != nil || parsed < 1 {
					return fmt.Errorf("invalid step count %q", args[0])
				}
				n = parsed
			}
			if err := m.Steps(-n); err != nil {
				return fmt.Errorf("migrate down %d: %w", n, err)
			}
			log.Info().Int("steps", n).Msg("migrations rolled back")
			return nil
		}),
	})

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: withMigrator(func(m Migrator, _ []string) error {
			v, dirty, err := m.Version()
			if errors.Is(err, migrate.ErrNilVersion) {
				log.Info().Msg("no migrations applied")
				return nil
			}
			if err != nil {
				return fmt.Errorf("read version: %w", err)
			}
			log.Info().Uint("version", v).Bool("dirty", dirty).Msg("schema version")
			return nil
		}),
	})

	root.AddCommand(&cobra.Command{
		Use:   "force <version>",
		Short: "Set the schema version without running migrations",
		Args:  cobra.ExactArgs(1),
		RunE: withMigrator(func(m Migrator, args []string) error {
			v, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version %q", args[0])
			}
			if err := m.Force(v); err != nil {
				return fmt.Errorf("force version %d: %w", v, err)
			}
			log.Info().Int("version", v).Msg("schema version forced")
			return nil
		}),
	})

	return root
}
