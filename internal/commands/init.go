package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dues-dev/dues/internal/config"
	"github.com/dues-dev/dues/internal/gitops"
	"github.com/dues-dev/dues/internal/importer"
	"github.com/dues-dev/dues/internal/store"
)

func newInitCommand() *cobra.Command {
	var name string
	var useGit bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new dues project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			if err := runInit(absDir, name); err != nil {
				return err
			}
			if useGit {
				if err := gitops.Init(cmd.Context(), absDir); err != nil {
					return err
				}
				if _, err := gitops.Commit(cmd.Context(), absDir, "init: "+name, gitops.DefaultAuthor); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized dues project at %s\n", absDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "organization name (required)")
	_ = cmd.MarkFlagRequired("name")
	cmd.Flags().BoolVar(&useGit, "git", false, "initialize a git repository and commit the new project")

	return cmd
}

const correctionsFile = "corrections.yaml"

func runInit(dir, name string) error {
	cfgPath := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(cfgPath); err == nil {
		return fmt.Errorf("%s already exists", cfgPath)
	}

	// Create directory structure.
	dirs := []string{
		"logs",
		"import",
		filepath.Join("import", "processed"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	// Write the name correction table for bulk imports, unless one is
	// being reused.
	corrPath := filepath.Join(dir, correctionsFile)
	if _, err := os.Stat(corrPath); os.IsNotExist(err) {
		if err := importer.SaveCorrections(corrPath, importer.DefaultCorrections()); err != nil {
			return err
		}
	}

	// Write dues.yaml.
	cfg := config.Default(name)
	cfg.Import.Bulk.CorrectionsFile = correctionsFile
	if err := config.Save(cfgPath, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	// Write the registry unless one is being reused.
	regPath := filepath.Join(dir, store.RegistryFile)
	if _, err := os.Stat(regPath); os.IsNotExist(err) {
		if err := store.SaveRegistry(regPath, store.DefaultRegistry()); err != nil {
			return err
		}
	}

	// Write .gitignore.
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte("import/processed/\n"), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}

	// Write import/.gitkeep.
	if err := os.WriteFile(filepath.Join(dir, "import", ".gitkeep"), []byte{}, 0o644); err != nil {
		return fmt.Errorf("writing .gitkeep: %w", err)
	}

	return nil
}
