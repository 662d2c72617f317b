package migrate_test

import (
	"context"
	"fmt"
	"io"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
)

func openSQLite(t *testing.T) *db.Client {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return db.NewFromConn(conn)
}

func TestMaybeRunDevMigratesSQLiteModels(t *testing.T) {
	client := openSQLite(t)
	cfg := &config.Config{
		App:          config.AppConfig{Env: config.AppEnvDev},
		DB:           config.DBConfig{Driver: db.DriverSQLite},
		FeatureFlags: config.FeatureFlagsConfig{AutoMigrate: true},
	}
	logg := logger.New(logger.Options{ServiceName: "migrate-test", Output: io.Discard})

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, client); err != nil {
		t.Fatalf("MaybeRunDev: %v", err)
	}
	for _, table := range []string{"cart_snapshots", "order_bumps", "upsell_products"} {
		if !client.DB().Migrator().HasTable(table) {
			t.Fatalf("expected table %s", table)
		}
	}
}

func TestMaybeRunDevSkipsOutsideDev(t *testing.T) {
	client := openSQLite(t)
	cfg := &config.Config{
		App:          config.AppConfig{Env: config.AppEnvProd},
		DB:           config.DBConfig{Driver: db.DriverSQLite},
		FeatureFlags: config.FeatureFlagsConfig{AutoMigrate: true},
	}
	logg := logger.New(logger.Options{ServiceName: "migrate-test", Output: io.Discard})

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, client); err != nil {
		t.Fatalf("MaybeRunDev: %v", err)
	}
	if client.DB().Migrator().HasTable("cart_snapshots") {
		t.Fatal("expected no tables outside dev")
	}
}
