package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/stylebot/core/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{
		Host: "db", Port: "5432", User: "bot", Password: "p@ss word", Name: "stylebot", SSLMode: "disable",
	})
	assert.Equal(t, "postgres://bot:p%40ss%20word@db:5432/stylebot?sslmode=disable", dsn)
}

func TestListMigrationFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"000002_b.up.sql", "000002_b.down.sql", "000001_a.up.sql", "README.md",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "000003_dir.up.sql"), 0o700))

	assert.Equal(t, []string{"000001_a.up.sql", "000002_b.up.sql"}, listMigrationFiles(dir))
	assert.Nil(t, listMigrationFiles(filepath.Join(dir, "missing")))
}

func TestSelectApplied(t *testing.T) {
	files := []string{"000001_a.up.sql", "000002_b.up.sql", "000003_c.up.sql"}
	assert.Equal(t, []string{"000002_b.up.sql", "000003_c.up.sql"}, selectApplied(files, 1, 3))
	assert.Nil(t, selectApplied(files, 3, 3))
	assert.Equal(t, uint64(12), parseVersion("000012_x.up.sql"))
	assert.Zero(t, parseVersion("bad.up.sql"))
}
