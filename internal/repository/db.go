package repository

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

//go:embed migrations
var migrations embed.FS

// gooseUp is a seam for tests.
var gooseUp = func(ctx context.Context, db *sql.DB, dir string) error {
	return goose.UpContext(ctx, db, dir)
}

// NewDB opens a connection pool for driver ("mysql" or "postgres") and
// verifies it with a ping.
func NewDB(driver, dsn string) (*sqlx.DB, error) {
	if _, err := dialect(driver); err != nil {
		return nil, err
	}
	if dsn == "" {
		return nil, fmt.Errorf("empty %s DSN", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	return db, nil
}

// Migrate applies the embedded schema migrations for the pool's driver.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	d, err := dialect(db.DriverName())
	if err != nil {
		return err
	}

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect(d); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := gooseUp(ctx, db.DB, "migrations/"+d); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

func dialect(driver string) (string, error) {
	switch driver {
	case "mysql", "postgres":
		return driver, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

// isPostgres decides the SQL flavor for statements that differ between the
// supported engines. Anything else, including sqlmock in tests, gets MySQL.
func isPostgres(db *sqlx.DB) bool {
	return db.DriverName() == "postgres"
}
