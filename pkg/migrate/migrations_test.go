package migrate_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/orderflow-backend/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected one %s migration, found %d", suffix, len(matches))
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func assertContains(t *testing.T, content string, checks []string) {
	t.Helper()
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestMigrationsDirValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
}

func TestEmbeddedMatchesDisk(t *testing.T) {
	require.NoError(t, migrate.ValidateFS(migrate.Embedded()))

	embedded, err := fs.Glob(migrate.Embedded(), "*.sql")
	require.NoError(t, err)
	onDisk, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	require.NoError(t, err)
	require.Len(t, embedded, len(onDisk))
	for i, p := range onDisk {
		assert.Equal(t, filepath.Base(p), embedded[i])
	}
}

func TestValidateFSRejectsBadFiles(t *testing.T) {
	good := "-- +goose Up\nSELECT 1;\n-- +goose Down\nSELECT 1;\n"
	cases := map[string]fstest.MapFS{
		"bad name": {"create_things.sql": {Data: []byte(good)}},
		"duplicate": {
			"20260101000000_a.sql": {Data: []byte(good)},
			"20260101000000_b.sql": {Data: []byte(good)},
		},
		"missing down":   {"20260101000000_a.sql": {Data: []byte("-- +goose Up\nSELECT 1;\n")}},
		"down before up": {"20260101000000_a.sql": {Data: []byte("-- +goose Down\n-- +goose Up\n")}},
	}
	for name, fsys := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, migrate.ValidateFS(fsys))
		})
	}
}

func TestCatalogMigrationGuardsStock(t *testing.T) {
	assertContains(t, readMigration(t, "create_catalog"), []string{
		"CREATE TABLE IF NOT EXISTS inventory_sizes",
		"CONSTRAINT chk_inventory_sizes_quantity CHECK (quantity >= 0)",
		"FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE CASCADE",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_inventory_sizes_product_size ON inventory_sizes (product_id, size)",
		"DROP TABLE IF EXISTS inventory_sizes",
	})
}

func TestOrdersMigrationUniqueTransaction(t *testing.T) {
	assertContains(t, readMigration(t, "create_orders"), []string{
		"status order_status NOT NULL DEFAULT 'pending'",
		"payment_method payment_method NOT NULL DEFAULT 'cod'",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_payment_details_transaction_id ON payment_details (transaction_id)",
		"DROP TABLE IF EXISTS orders",
	})
}

func TestEnumMigrationListsOutboxEvents(t *testing.T) {
	assertContains(t, readMigration(t, "create_enums"), []string{
		"'order_created'",
		"'order_status_changed'",
		"'payment_completed'",
		"'payment_failed'",
		"'notification_requested'",
		"CREATE TYPE aggregate_type_enum AS ENUM ('checkout', 'order', 'payment_detail', 'notification')",
	})
}

func TestCreateSQLMigrationSanitizesName(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Refund Column!")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_refund_column.sql") {
		t.Fatalf("unexpected filename %s", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("created migration should validate: %v", err)
	}

	_, err = migrate.CreateSQLMigration(dir, "!!!")
	assert.Error(t, err)
}
