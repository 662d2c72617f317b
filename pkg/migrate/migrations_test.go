package migrate_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/migrate"
)

func TestEmbeddedMigrationsAreValid(t *testing.T) {
	require.NoError(t, migrate.Validate(migrate.Embedded()))
}

func TestEmbeddedMatchesSourceDir(t *testing.T) {
	onDisk, err := fs.Glob(os.DirFS("migrations"), "*.sql")
	require.NoError(t, err)
	embedded, err := fs.Glob(migrate.Embedded(), "*.sql")
	require.NoError(t, err)
	assert.Equal(t, onDisk, embedded)
}

func TestStorefrontMigrationsContainSchemas(t *testing.T) {
	expectations := map[string][]string{
		"*_create_cart_snapshots.sql": {
			"CREATE TABLE IF NOT EXISTS cart_snapshots",
			"session_id   TEXT PRIMARY KEY",
			"payload      JSONB NOT NULL",
		},
		"*_create_order_bumps.sql": {
			"CREATE TABLE IF NOT EXISTS order_bumps",
			"min_cart_value",
			"required_product_ids",
		},
		"*_create_upsell_products.sql": {
			"CREATE TABLE IF NOT EXISTS upsell_products",
			"checkout_url",
		},
	}

	fsys := migrate.Embedded()
	for pattern, checks := range expectations {
		matches, err := fs.Glob(fsys, pattern)
		require.NoError(t, err)
		require.Len(t, matches, 1, pattern)

		data, err := fs.ReadFile(fsys, matches[0])
		require.NoError(t, err)
		for _, sub := range checks {
			assert.Contains(t, string(data), sub, matches[0])
		}
	}
}

func TestCreateWritesValidMigration(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 10, 1, 12, 30, 0, 0, time.UTC)

	path, err := migrate.Create(dir, "Add Cart Index!", now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "20261001123000_add_cart_index.sql"), path)
	require.NoError(t, migrate.Validate(os.DirFS(dir)))

	_, err = migrate.Create(dir, "add cart index", now)
	assert.Error(t, err, "same version and name must not overwrite")

	_, err = migrate.Create(dir, "!!!", now)
	assert.Error(t, err)
}

func TestValidateRejectsBadFiles(t *testing.T) {
	up := "-- +goose Up\nSELECT 1;\n-- +goose Down\nSELECT 1;\n"
	tests := map[string]fstest.MapFS{
		"bad name": {"create_carts.sql": {Data: []byte(up)}},
		"duplicate version": {
			"20260901090000_a.sql": {Data: []byte(up)},
			"20260901090000_b.sql": {Data: []byte(up)},
		},
		"missing down": {"20260901090000_a.sql": {Data: []byte("-- +goose Up\nSELECT 1;\n")}},
	}
	for name, fsys := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, migrate.Validate(fsys))
		})
	}

	ok := fstest.MapFS{
		"20260901090000_a.sql": {Data: []byte(up)},
		"README.md":            {Data: []byte("notes")},
	}
	assert.NoError(t, migrate.Validate(ok))
}

func TestNewRequiresDB(t *testing.T) {
	_, err := migrate.New(nil, nil)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "db is required"))
}
