package persistence

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMigrationFiles_sortedSQLOnly(t *testing.T) {
	fs := afero.NewMemMapFs()
	for _, name := range []string{"002_indexes.sql", "001_init.sql", "README.md"} {
		require.NoError(t, afero.WriteFile(fs, filepath.Join("migrations", name), []byte("SELECT 1;"), 0o644))
	}
	require.NoError(t, fs.MkdirAll(filepath.Join("migrations", "archive"), 0o755))

	files, err := migrationFiles(fs, "migrations")
	require.NoError(t, err)
	assert.Equal(t, []string{"001_init.sql", "002_indexes.sql"}, files)
}

func TestMigrationFiles_missingDir(t *testing.T) {
	_, err := migrationFiles(afero.NewMemMapFs(), "nope")
	assert.Error(t, err)
}

func TestMigrationFiles_repositorySchema(t *testing.T) {
	files, err := migrationFiles(afero.NewOsFs(), filepath.Join("..", "..", "migrations"))
	require.NoError(t, err)
	assert.Contains(t, files, "001_workflow_schema.sql")
}

func TestRunMigrations_withoutPool(t *testing.T) {
	err := RunMigrations(context.Background(), nil, afero.NewMemMapFs(), "missing", zap.NewNop())
	assert.NoError(t, err)
}
