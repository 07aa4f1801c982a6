package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dues-dev/dues/internal/importer"
)

func TestRoundTrip(t *testing.T) {
	cfg := Default("Metalab")
	cfg.Store = StoreConfig{Driver: DriverPostgres, DSN: "postgres://dues@localhost/dues"}
	cfg.Import.Bulk.DefaultMethod = "cash"
	cfg.Telemetry.Endpoint = "localhost:4318"

	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, cfg.Organization, got.Organization)
	assert.Equal(t, cfg.Store, got.Store)
	assert.Equal(t, cfg.Import, got.Import)
	assert.Equal(t, cfg.Logging, got.Logging)
	assert.Equal(t, cfg.Telemetry, got.Telemetry)
}

func TestDefaults(t *testing.T) {
	cfg := Default("Metalab")

	assert.Equal(t, "Metalab", cfg.Organization.Name)
	assert.Equal(t, "EUR", cfg.Organization.Currency)
	assert.Equal(t, DriverFiles, cfg.Store.Driver)
	assert.Equal(t, "import", cfg.Import.Dir)
	assert.Equal(t, "bank collection", cfg.Import.SmallFileMethod)
	assert.Equal(t, []string{"280"}, cfg.Import.Bulk.Sentinels)
	assert.Equal(t, "bank collection", cfg.Import.Bulk.Aliases["sammler"])
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Empty(t, cfg.Telemetry.Endpoint)
	assert.NoError(t, cfg.Validate())
}

func TestLoadNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		doc  string
		want string
	}{
		{"store:\n  driver: mysql\n", "store.driver"},
		{"logging:\n  format: xml\n", "logging.format"},
		{"store: [", "parsing config"},
	}
	for _, tt := range tests {
		path := filepath.Join(t.TempDir(), FileName)
		require.NoError(t, os.WriteFile(path, []byte(tt.doc), 0o644))
		_, err := Load(path)
		require.Error(t, err, tt.doc)
		assert.Contains(t, err.Error(), tt.want)
	}
}

func TestYAMLFormat(t *testing.T) {
	cfg := Default("Metalab")
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, Save(path, cfg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	contents := string(data)

	assert.Contains(t, contents, "name: Metalab")
	assert.Contains(t, contents, "driver: files")
	assert.Contains(t, contents, "small_file_method: bank collection")
	assert.Contains(t, contents, "format: text")
	assert.NotContains(t, contents, "dsn:")
}

func TestDatabaseURL(t *testing.T) {
	cfg := Default("x")
	cfg.Store.DSN = "postgres://a"
	got, err := cfg.DatabaseURL()
	require.NoError(t, err)
	assert.Equal(t, "postgres://a", got)

	cfg.Store.DSN = ""
	t.Setenv("DATABASE_URL", "postgres://from-env")
	got, err = cfg.DatabaseURL()
	require.NoError(t, err)
	assert.Equal(t, "postgres://from-env", got)

	t.Setenv("DATABASE_URL", "")
	_, err = cfg.DatabaseURL()
	assert.Error(t, err)
}

func TestDirs(t *testing.T) {
	cfg := Default("x")
	assert.Equal(t, filepath.Join("/srv/dues", "import"), cfg.ImportDir("/srv/dues"))
	assert.Equal(t, "/srv/dues", cfg.StoreDir("/srv/dues"))

	cfg.Import.Dir = "/var/spool/dues"
	assert.Equal(t, "/var/spool/dues", cfg.ImportDir("/srv/dues"))
}

func TestImporter(t *testing.T) {
	root := t.TempDir()
	cfg := Default("x")
	cfg.Import.SmallFileMethod = "cash"
	cfg.Import.Bulk.DefaultMethod = "transfer"

	got, err := cfg.Importer(root)
	require.NoError(t, err)
	assert.Equal(t, "cash", got.SmallFileMethod)
	assert.Equal(t, "transfer", got.Bulk.DefaultMethod)
	assert.Equal(t, importer.DefaultCorrections(), got.Bulk.Corrections)

	table := &importer.CorrectionTable{Version: 7, Rules: []importer.Rule{
		{Op: importer.OpReplace, At: 1, Equals: []string{"Mayr"}, With: "Maier"},
	}}
	require.NoError(t, importer.SaveCorrections(filepath.Join(root, "corrections.yaml"), table))
	cfg.Import.Bulk.CorrectionsFile = "corrections.yaml"

	got, err = cfg.Importer(root)
	require.NoError(t, err)
	assert.Equal(t, 7, got.Bulk.Corrections.Version)

	cfg.Import.Bulk.CorrectionsFile = "missing.yaml"
	_, err = cfg.Importer(root)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
