package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

const migrationsDir = "migrations"

// goose用に database/sql で開く
func openSQL(dsn string) (*sql.DB, error) {
	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect("postgres"); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return sqlDB, nil
}

func MigrateUp(ctx context.Context, dsn string) error {
	sqlDB, err := openSQL(dsn)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if err := goose.UpContext(ctx, sqlDB, migrationsDir); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// 1つ戻す
func MigrateDown(ctx context.Context, dsn string) error {
	sqlDB, err := openSQL(dsn)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if err := goose.DownContext(ctx, sqlDB, migrationsDir); err != nil {
		return fmt.Errorf("goose down: %w", err)
	}
	return nil
}

func MigrateStatus(ctx context.Context, dsn string) error {
	sqlDB, err := openSQL(dsn)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	return goose.StatusContext(ctx, sqlDB, migrationsDir)
}

func MigrateVersion(ctx context.Context, dsn string) (int64, error) {
	sqlDB, err := openSQL(dsn)
	if err != nil {
		return 0, err
	}
	defer sqlDB.Close()

	return goose.GetDBVersionContext(ctx, sqlDB)
}
