package db

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/BogdanDubenets/weather-bot-telegram/internal/config"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrate applies all pending schema migrations embedded in the binary.
// Running against an up-to-date schema is a no-op.
func Migrate(cfg config.DatabaseConfig) error {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("loading embedded migrations: %w", err)
	}

	// The pgx/v5 migrate driver registers itself under the pgx5 scheme.
	url := cfg.URL.Unmask()
	if rest, ok := strings.CutPrefix(url, "postgres://"); ok {
		url = "pgx5://" + rest
	} else if rest, ok := strings.CutPrefix(url, "postgresql://"); ok {
		url = "pgx5://" + rest
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		return fmt.Errorf("initializing migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", err)
	}

	return nil
}
