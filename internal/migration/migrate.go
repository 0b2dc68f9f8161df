package migration

import (
	"database/sql"
	"embed"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
)

// Embed SQL files from the local migrations folder
//
//go:embed migrations/*.sql
var embeddedMigrations embed.FS

func RunMigrations(dbURL string, logger zerolog.Logger) error {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return errors.Wrap(err, "failed to connect to the database")
	}
	defer db.Close()

	// Ensure the app schema exists before running migrations
	if _, err := db.Exec("CREATE SCHEMA IF NOT EXISTS app"); err != nil {
		return errors.Wrap(err, "failed to create schema app")
	}

	if _, err := db.Exec("SET search_path TO app"); err != nil {
		return errors.Wrap(err, "failed to set search path")
	}

	goose.SetBaseFS(embeddedMigrations)
	goose.SetTableName("app.goose_db_version")
	goose.SetLogger(NewGooseAdapter(logger))

	if err := goose.Up(db, "migrations"); err != nil {
		return errors.Wrap(err, "failed to run migrations")
	}

	logger.Info().Msg("Migrations completed successfully")
	return nil
}
