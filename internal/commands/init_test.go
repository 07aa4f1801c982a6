package commands_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dues-dev/dues/internal/commands"
	"github.com/dues-dev/dues/internal/config"
	"github.com/dues-dev/dues/internal/importer"
	"github.com/dues-dev/dues/internal/model"
	"github.com/dues-dev/dues/internal/store"
)

// runDues runs the CLI in-process and returns stdout.
func runDues(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := commands.NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.Execute()
	return out.String(), err
}

var janeID = uuid.MustParse("5b0f5d3e-7c7e-4c55-9a59-0c1f3b8e2a11")

// newProject initializes a project with one member, Jane Doe, who has been
// paying 25 a month since 2024-01-15.
func newProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	_, err := runDues(t, "init", dir, "--name", "Test Club")
	require.NoError(t, err)

	reg := store.DefaultRegistry()
	reg.Fees = []model.FeeRecord{{KindID: 1, Start: time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC), Amount: 25}}
	reg.Members = []model.Member{
		{ID: janeID, Username: "jane", FirstName: "Jane", LastName: "Doe"},
		{ID: uuid.New(), Username: "john", FirstName: "John", LastName: "Smith"},
	}
	reg.Periods = []model.MembershipPeriod{
		{ID: 1, MemberID: janeID, KindID: 1, Begin: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
	}
	require.NoError(t, store.SaveRegistry(filepath.Join(dir, store.RegistryFile), reg))
	return dir
}

func writeFile(t *testing.T, path, contents string) string {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestInit_CreatesStructure(t *testing.T) {
	dir := t.TempDir()
	out, err := runDues(t, "init", dir, "--name", "Test Club")
	require.NoError(t, err)
	assert.Contains(t, out, "Initialized dues project at")

	for _, d := range []string{"logs", "import", filepath.Join("import", "processed")} {
		info, err := os.Stat(filepath.Join(dir, d))
		require.NoError(t, err, "directory %s should exist", d)
		assert.True(t, info.IsDir(), "%s should be a directory", d)
	}

	_, err = os.Stat(filepath.Join(dir, "import", ".gitkeep"))
	assert.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "import/processed/")
}

func TestInit_Config(t *testing.T) {
	dir := t.TempDir()
	_, err := runDues(t, "init", dir, "--name", "My Club")
	require.NoError(t, err)

	cfg, err := config.Load(filepath.Join(dir, config.FileName))
	require.NoError(t, err)
	assert.Equal(t, "My Club", cfg.Organization.Name)
	assert.Equal(t, config.DriverFiles, cfg.Store.Driver)
	assert.Equal(t, model.MethodBankCollection, cfg.Import.SmallFileMethod)
	assert.Equal(t, "corrections.yaml", cfg.Import.Bulk.CorrectionsFile)
}

func TestInit_Corrections(t *testing.T) {
	dir := t.TempDir()
	_, err := runDues(t, "init", dir, "--name", "Test Club")
	require.NoError(t, err)

	table, err := importer.LoadCorrections(filepath.Join(dir, "corrections.yaml"))
	require.NoError(t, err)
	assert.Equal(t, importer.DefaultCorrections(), table)

	cfg, err := config.Load(filepath.Join(dir, config.FileName))
	require.NoError(t, err)
	icfg, err := cfg.Importer(dir)
	require.NoError(t, err)
	assert.Equal(t, importer.DefaultCorrections().Version, icfg.Bulk.Corrections.Version)
}

func TestInit_Registry(t *testing.T) {
	dir := t.TempDir()
	_, err := runDues(t, "init", dir, "--name", "Test Club")
	require.NoError(t, err)

	reg, err := store.LoadRegistry(filepath.Join(dir, store.RegistryFile))
	require.NoError(t, err)
	assert.Equal(t, store.DefaultRegistry().PaymentMethods, reg.PaymentMethods)
}

func TestInit_KeepsExistingRegistry(t *testing.T) {
	dir := t.TempDir()
	reg := store.DefaultRegistry()
	reg.Members = []model.Member{{ID: janeID, Username: "jane", FirstName: "Jane", LastName: "Doe"}}
	require.NoError(t, store.SaveRegistry(filepath.Join(dir, store.RegistryFile), reg))

	_, err := runDues(t, "init", dir, "--name", "Test Club")
	require.NoError(t, err)

	got, err := store.LoadRegistry(filepath.Join(dir, store.RegistryFile))
	require.NoError(t, err)
	require.Len(t, got.Members, 1)
	assert.Equal(t, "jane", got.Members[0].Username)
}

func TestInit_AlreadyInitialized(t *testing.T) {
	dir := t.TempDir()
	_, err := runDues(t, "init", dir, "--name", "Test Club")
	require.NoError(t, err)

	_, err = runDues(t, "init", dir, "--name", "Test Club")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestInit_RequiresName(t *testing.T) {
	_, err := runDues(t, "init", t.TempDir())
	require.Error(t, err)
}

func TestCommands_NeedProject(t *testing.T) {
	_, err := runDues(t, "-C", t.TempDir(), "balance")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dues init")
}
