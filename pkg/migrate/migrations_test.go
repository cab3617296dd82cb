package migrate_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/assetledger/pkg/db/dbtest"
	"github.com/angelmondragon/assetledger/pkg/migrate"
)

const migrationsDir = "migrations"

func migrated(t *testing.T) *gorm.DB {
	t.Helper()
	conn := dbtest.Empty(t)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	require.NoError(t, migrate.Run(context.Background(), sqlDB, "sqlite3", migrationsDir, "up"))
	return conn
}

func TestMigrationsDirIsValid(t *testing.T) {
	require.NoError(t, migrate.ValidateDir(migrationsDir))
}

func TestUpAppliesEmbeddedMigrations(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Empty(t)
	sqlDB, err := conn.DB()
	require.NoError(t, err)

	applied, err := migrate.Up(ctx, sqlDB, "sqlite3")
	require.NoError(t, err)

	entries, err := os.ReadDir(migrationsDir)
	require.NoError(t, err)
	require.Len(t, applied, len(entries))
	require.True(t, conn.Migrator().HasTable("active_inventory"))

	again, err := migrate.Up(ctx, sqlDB, "sqlite3")
	require.NoError(t, err)
	require.Empty(t, again)
}

func TestMigrationsSeedStatusCatalog(t *testing.T) {
	conn := migrated(t)

	var names []string
	require.NoError(t, conn.Raw("SELECT name FROM statuses ORDER BY sort_order").Scan(&names).Error)
	require.Len(t, names, 8)
	require.Equal(t, "Active", names[0])
	require.Equal(t, "Retired", names[7])

	var terminal int64
	require.NoError(t, conn.Raw("SELECT COUNT(*) FROM statuses WHERE terminal").Scan(&terminal).Error)
	require.EqualValues(t, 1, terminal)
}

func TestMigrationsEnforceQuantityConstraints(t *testing.T) {
	conn := migrated(t)

	err := conn.Exec(`INSERT INTO active_inventory (part_id, location_id, qty, status_name) VALUES ('P1', 'BAY-1', -1, 'Available')`).Error
	require.Error(t, err)
	require.NoError(t, conn.Exec(`INSERT INTO active_inventory (part_id, location_id, qty, status_name) VALUES ('P1', 'BAY-1', 0, 'Available')`).Error)

	headerID := uuid.NewString()
	require.NoError(t, conn.Exec(`INSERT INTO purchase_order_headers (id, vendor) VALUES (?, 'acme')`, headerID).Error)

	err = conn.Exec(`INSERT INTO purchase_order_lines (id, header_id, part_id, ordered_qty) VALUES (?, ?, 'P1', 0)`, uuid.NewString(), headerID).Error
	require.Error(t, err)

	err = conn.Exec(`INSERT INTO purchase_order_lines (id, header_id, part_id, ordered_qty, linked_qty) VALUES (?, ?, 'P1', 5, 6)`, uuid.NewString(), headerID).Error
	require.Error(t, err)

	err = conn.Exec(`INSERT INTO purchase_order_lines (id, header_id, part_id, ordered_qty, received_qty) VALUES (?, ?, 'P1', 5, -1)`, uuid.NewString(), headerID).Error
	require.Error(t, err)

	err = conn.Exec(`INSERT INTO purchase_order_headers (id, vendor, status) VALUES (?, 'acme', 'cancelled')`, uuid.NewString()).Error
	require.Error(t, err)
}

func TestMigrationsRejectDuplicateArrival(t *testing.T) {
	conn := migrated(t)

	headerID := uuid.NewString()
	lineID := uuid.NewString()
	require.NoError(t, conn.Exec(`INSERT INTO purchase_order_headers (id, vendor) VALUES (?, 'acme')`, headerID).Error)
	require.NoError(t, conn.Exec(`INSERT INTO purchase_order_lines (id, header_id, part_id, ordered_qty) VALUES (?, ?, 'P1', 5)`, lineID, headerID).Error)
	require.NoError(t, conn.Exec(`INSERT INTO package_headers (id, received_at) VALUES ('PKG-1', CURRENT_TIMESTAMP)`).Error)

	insert := `INSERT INTO part_arrivals (id, package_id, line_id, part_id, location_id, qty, posted_at) VALUES (?, 'PKG-1', ?, 'P1', 'RECEIVING', 2, CURRENT_TIMESTAMP)`
	require.NoError(t, conn.Exec(insert, uuid.NewString(), lineID).Error)

	err := conn.Exec(insert, uuid.NewString(), lineID).Error
	require.Error(t, err)
	require.True(t, strings.Contains(strings.ToLower(err.Error()), "unique"))
}

func TestMigrationsRejectUnknownStatus(t *testing.T) {
	conn := migrated(t)
	err := conn.Exec(`INSERT INTO active_inventory (part_id, location_id, qty, status_name) VALUES ('P1', 'BAY-1', 1, 'Quarantined')`).Error
	require.Error(t, err)
}

func TestMigrationsRollBack(t *testing.T) {
	conn := migrated(t)
	sqlDB, err := conn.DB()
	require.NoError(t, err)

	require.NoError(t, migrate.Run(context.Background(), sqlDB, "sqlite3", migrationsDir, "reset"))
	require.False(t, conn.Migrator().HasTable("active_inventory"))
	require.False(t, conn.Migrator().HasTable("statuses"))
}

func TestCreateSQLMigrationWritesGooseTemplate(t *testing.T) {
	dir := t.TempDir()

	path, err := migrate.CreateSQLMigration(dir, "Add Bin Labels")
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(path, "_add_bin_labels.sql"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "-- +goose Up")
	require.Contains(t, string(data), "-- +goose Down")
	require.NoError(t, migrate.ValidateDir(dir))
}

func TestValidateDirRejectsMalformedFiles(t *testing.T) {
	cases := map[string]struct {
		file string
		body string
	}{
		"short version":      {"001_init.sql", "-- +goose Up\n-- +goose Down\n"},
		"not a timestamp":    {"20261399000000_init.sql", "-- +goose Up\n-- +goose Down\n"},
		"missing down":       {"20260101000000_init.sql", "-- +goose Up\nSELECT 1;\n"},
		"down before up":     {"20260101000000_init.sql", "-- +goose Down\n-- +goose Up\n"},
		"open statement":     {"20260101000000_init.sql", "-- +goose Up\n-- +goose StatementBegin\n-- +goose Down\n"},
		"stray statementend": {"20260101000000_init.sql", "-- +goose Up\n-- +goose StatementEnd\n-- +goose Down\n"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, tc.file), []byte(tc.body), 0o644))
			require.Error(t, migrate.ValidateDir(dir))
		})
	}
}

func TestValidateDirRejectsDuplicateVersions(t *testing.T) {
	dir := t.TempDir()
	body := []byte("-- +goose Up\n-- +goose Down\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260101000000_a.sql"), body, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260101000000_b.sql"), body, 0o644))
	require.ErrorContains(t, migrate.ValidateDir(dir), "already used")
}
