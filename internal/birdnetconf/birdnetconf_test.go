package birdnetconf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/birdnet-api2ha/internal/errors"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

const sqliteConfig = `
output:
  sqlite:
    enabled: true
    path: birdnet.db
realtime:
  audio:
    export:
      path: clips/
`

func TestLoadResolvesSQLiteUnderDataDir(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	cfgPath := filepath.Join(root, "config", "config.yaml")
	writeFile(t, cfgPath, sqliteConfig)
	writeFile(t, filepath.Join(root, "data", "birdnet.db"), "")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "data", "clips"), 0o755))

	info, err := Load(cfgPath)
	require.NoError(t, err)

	assert.Equal(t, DatabaseSQLite, info.DatabaseType)
	assert.Equal(t, "birdnet.db", info.SQLitePath)
	assert.Equal(t, filepath.Join(root, "data", "birdnet.db"), info.SQLiteResolved)
	assert.Equal(t, filepath.Join(root, "data", "clips"), info.ClipsPath)
}

func TestLoadResolvesRelativeToAppRoot(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	cfgPath := filepath.Join(root, "config.yaml")
	writeFile(t, cfgPath, sqliteConfig)
	writeFile(t, filepath.Join(root, "birdnet.db"), "")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "clips"), 0o755))

	info, err := Load(cfgPath)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "birdnet.db"), info.SQLiteResolved)
	assert.Equal(t, filepath.Join(root, "clips"), info.ClipsPath)
}

func TestLoadMissingDatabaseLeavesResolvedEmpty(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	cfgPath := filepath.Join(root, "config.yaml")
	writeFile(t, cfgPath, sqliteConfig)

	info, err := Load(cfgPath)
	require.NoError(t, err)

	assert.Equal(t, DatabaseSQLite, info.DatabaseType)
	assert.Empty(t, info.SQLiteResolved)
	assert.Empty(t, info.ClipsPath)
}

func TestLoadMySQL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
		want MySQLInfo
	}{
		{
			name: "explicit values",
			yaml: `
output:
  mysql:
    enabled: true
    host: db.lan
    port: 3307
    database: birds
    username: reader
    password: secret
`,
			want: MySQLInfo{Host: "db.lan", Port: 3307, Database: "birds", Username: "reader", Password: "secret"},
		},
		{
			name: "defaults",
			yaml: `
output:
  sqlite:
    enabled: true
    path: birdnet.db
  mysql:
    enabled: true
    port: ""
`,
			want: MySQLInfo{Host: "localhost", Port: 3306, Database: "birdnet"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfgPath := filepath.Join(t.TempDir(), "config.yaml")
			writeFile(t, cfgPath, tt.yaml)

			info, err := Load(cfgPath)
			require.NoError(t, err)
			assert.Equal(t, DatabaseMySQL, info.DatabaseType)
			assert.Equal(t, tt.want, info.MySQL)
		})
	}
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileIO))

	bad := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, bad, "output: [unterminated")
	_, err = Load(bad)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestFindPrefersDatabaseNeighbourhood(t *testing.T) {
	t.Parallel()

	appDir := t.TempDir()
	dbPath := filepath.Join(appDir, "data", "birdnet.db")
	writeFile(t, dbPath, "")
	cfgPath := filepath.Join(appDir, "config", "config.yml")
	writeFile(t, cfgPath, sqliteConfig)

	other := t.TempDir()
	writeFile(t, filepath.Join(other, "config.yaml"), sqliteConfig)

	got, ok := Find(dbPath, []string{other})
	require.True(t, ok)
	assert.Equal(t, cfgPath, got)
}

func TestFindSearchDirs(t *testing.T) {
	t.Parallel()

	missing := filepath.Join(t.TempDir(), "nope")
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config", "config.yaml")
	writeFile(t, cfgPath, sqliteConfig)

	got, ok := Find("", []string{missing, dir})
	require.True(t, ok)
	assert.Equal(t, cfgPath, got)

	_, ok = Find("", []string{missing})
	assert.False(t, ok)
}

func TestDiscover(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	override := filepath.Join(dir, "custom.yaml")
	writeFile(t, override, sqliteConfig)

	info, err := Discover(override, "", nil)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, DatabaseSQLite, info.DatabaseType)

	info, err = Discover(filepath.Join(dir, "absent.yaml"), "", []string{t.TempDir()})
	require.NoError(t, err)
	assert.Nil(t, info)
}
