package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"
)

//go:embed migrations
var migrations embed.FS

// Migrate applies every pending migration for the pool's dialect.  It uses
// goose's Provider so no package-level goose state is touched.
func Migrate(ctx context.Context, db *DB, log *slog.Logger) error {
	fsys, err := fs.Sub(migrations, "migrations/"+string(db.Driver))
	if err != nil {
		return fmt.Errorf("database: migrations for %s: %w", db.Driver, err)
	}
	p, err := goose.NewProvider(db.Driver.GooseDialect(), db.DB, fsys)
	if err != nil {
		return fmt.Errorf("database: goose provider: %w", err)
	}
	results, err := p.Up(ctx)
	if err != nil {
		return fmt.Errorf("database: migrate up: %w", err)
	}
	for _, r := range results {
		log.Info("migration applied", "source", r.Source.Path, "duration", r.Duration)
	}
	return nil
}
