package testutil

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bissquit/newsletter/internal/config"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5" // pgx5:// driver
	_ "github.com/golang-migrate/migrate/v4/source/file"     // file:// source
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ConfigureDatabase creates a uniquely named database on the server described
// by db, applies migrations from migrationsDir and returns db pointed at it.
func ConfigureDatabase(ctx context.Context, db config.DatabaseSettings, migrationsDir string) (config.DatabaseSettings, error) {
	db.DatabaseName = "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")

	conn, err := pgx.Connect(ctx, db.WithoutDB().Expose())
	if err != nil {
		return db, fmt.Errorf("connect to postgres: %w", err)
	}
	defer func() { _ = conn.Close(ctx) }()

	if _, err := conn.Exec(ctx, fmt.Sprintf(`CREATE DATABASE %s`, pgx.Identifier{db.DatabaseName}.Sanitize())); err != nil {
		return db, fmt.Errorf("create database %s: %w", db.DatabaseName, err)
	}

	migrationURL := strings.Replace(db.WithDB().Expose(), "postgres://", "pgx5://", 1)
	migrator, err := migrate.New("file://"+migrationsDir, migrationURL)
	if err != nil {
		return db, fmt.Errorf("create migrator: %w", err)
	}
	defer func() { _, _ = migrator.Close() }()

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return db, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}
