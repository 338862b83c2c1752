package repository

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubGooseUp(t *testing.T, fn func(ctx context.Context, db *sql.DB, dir string) error) {
	t.Helper()
	orig := gooseUp
	gooseUp = fn
	t.Cleanup(func() { gooseUp = orig })
}

func TestMigrateUsesDialectDirectory(t *testing.T) {
	for _, driver := range []string{"mysql", "postgres"} {
		t.Run(driver, func(t *testing.T) {
			db, _ := newMockDB(t, driver)

			var gotDir string
			stubGooseUp(t, func(_ context.Context, _ *sql.DB, dir string) error {
				gotDir = dir
				return nil
			})

			require.NoError(t, Migrate(context.Background(), db))
			assert.Equal(t, "migrations/"+driver, gotDir)
		})
	}
}

func TestMigrateWrapsFailure(t *testing.T) {
	db, _ := newMockDB(t, "mysql")
	boom := errors.New("boom")
	stubGooseUp(t, func(context.Context, *sql.DB, string) error { return boom })

	err := Migrate(context.Background(), db)
	assert.ErrorIs(t, err, boom)
}

func TestMigrateRejectsUnknownDriver(t *testing.T) {
	db, _ := newMockDB(t, "sqlite3")
	stubGooseUp(t, func(context.Context, *sql.DB, string) error {
		t.Fatal("goose must not run")
		return nil
	})

	assert.Error(t, Migrate(context.Background(), db))
}

func TestNewDBValidation(t *testing.T) {
	_, err := NewDB("oracle", "dsn")
	assert.Error(t, err)

	_, err = NewDB("mysql", "")
	assert.Error(t, err)
}

func TestEmbeddedMigrations(t *testing.T) {
	for _, d := range []string{"mysql", "postgres"} {
		entries, err := fs.ReadDir(migrations, "migrations/"+d)
		require.NoError(t, err)
		assert.NotEmpty(t, entries, d)
	}
}
