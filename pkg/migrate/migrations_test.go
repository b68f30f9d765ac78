package migrate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestEmbeddedMigrationsAreValid(t *testing.T) {
	require.NoError(t, ValidateDir("migrations"))
	require.NoError(t, ValidateEmbedded())

	names, err := Embedded()
	require.NoError(t, err)
	assert.Len(t, names, 7)
}

func TestOrdersMigrationContainsGuards(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_orders_tables.sql"))
	require.NoError(t, err)
	require.NotEmpty(t, matches)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	content := string(data)

	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS orders",
		"CREATE TABLE IF NOT EXISTS order_items",
		"CHECK (total >= 0)",
		"CHECK (quantity >= 1)",
		"trg_orders_no_delete",
	} {
		assert.True(t, strings.Contains(content, sub), "missing expected statement %q", sub)
	}
}

func TestCatalogMigrationGuardsStock(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_catalog_tables.sql"))
	require.NoError(t, err)
	require.NotEmpty(t, matches)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "CHECK (stock >= 0)")
	assert.Contains(t, string(data), "CONSTRAINT products_slug_key UNIQUE (slug)")
}

func TestCreateSQLMigrationSanitizesName(t *testing.T) {
	dir := t.TempDir()
	path, err := CreateSQLMigration(dir, "Add Reels Index!")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "_add_reels_index.sql"))
	require.NoError(t, ValidateDir(dir))

	_, err = CreateSQLMigration(dir, "!!!")
	assert.Error(t, err)
}

func TestCreateSQLMigrationRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 5, 14, 9, 30, 0, 0, time.UTC)
	path, err := createSQLMigration(dir, "reels sort", now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "20260514093000_reels_sort.sql"), path)

	_, err = createSQLMigration(dir, "reels sort", now)
	assert.Error(t, err)
}

func TestValidateFSCollectsEveryProblem(t *testing.T) {
	fsys := fstest.MapFS{
		"20260101000001_ok.sql":      {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		"20260101000001_again.sql":   {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		"bad-name.sql":               {Data: []byte("")},
		"20260101000002_no_down.sql": {Data: []byte("-- +goose Up\n")},
		"README.md":                  {Data: []byte("ignored")},
	}
	err := ValidateFS(fsys, ".")
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 3)
}
