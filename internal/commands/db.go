package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dues-dev/dues/internal/model"
	"github.com/dues-dev/dues/internal/store"
)

func newDBCommand() *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Manage the Postgres store",
	}
	dbCmd.AddCommand(newDBMigrateCommand())
	return dbCmd
}

func newDBMigrateCommand() *cobra.Command {
	var importFiles string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the schema, optionally loading a files-driver project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd, func(ctx context.Context, p *project) error {
				pg, ok := p.store.(*store.Postgres)
				if !ok {
					return fmt.Errorf("db migrate needs store.driver %q, have %q", "postgres", p.cfg.Store.Driver)
				}
				if err := pg.Migrate(ctx); err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, "Schema up to date")

				if importFiles == "" {
					return nil
				}
				n, err := loadFilesProject(ctx, pg, importFiles)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Imported registry and %d payments from %s\n", n, importFiles)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&importFiles, "import-files", "", "directory holding registry.yaml and payments.csv to load")

	return cmd
}

// loadFilesProject copies a files-driver directory into pg. It returns the
// number of payments copied.
func loadFilesProject(ctx context.Context, pg *store.Postgres, dir string) (int, error) {
	reg, err := store.LoadRegistry(filepath.Join(dir, store.RegistryFile))
	if err != nil {
		return 0, err
	}
	if err := pg.ImportRegistry(ctx, reg); err != nil {
		return 0, fmt.Errorf("importing registry: %w", err)
	}

	f, err := os.Open(filepath.Join(dir, store.PaymentsFile))
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("opening payments: %w", err)
	}
	defer f.Close()

	methods := make(map[string]model.PaymentMethod, len(reg.PaymentMethods))
	for _, pm := range reg.PaymentMethods {
		methods[pm.Name] = pm
	}
	payments, err := store.ReadPayments(f, func(name string) (model.PaymentMethod, bool) {
		pm, ok := methods[name]
		return pm, ok
	})
	if err != nil {
		return 0, err
	}
	for i := range payments {
		if err := pg.CreatePayment(ctx, &payments[i]); err != nil {
			return i, fmt.Errorf("payment %s: %w", payments[i].ID, err)
		}
	}
	return len(payments), nil
}
