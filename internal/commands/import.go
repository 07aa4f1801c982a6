package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dues-dev/dues/internal/gitops"
	"github.com/dues-dev/dues/internal/importer"
	"github.com/dues-dev/dues/internal/importlog"
	"github.com/dues-dev/dues/internal/store"
)

func newImportCommand() *cobra.Command {
	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Import payments from exports",
	}
	importCmd.PersistentFlags().Bool("commit", false, "commit the payments and import log to git afterwards")
	importCmd.AddCommand(
		newImportSmallCommand(),
		newImportFormatCommand("generic", "Import rows carrying their own date and method"),
		newImportFormatCommand("bulk", "Import a historical accounting export"),
		newImportPendingCommand(),
		newImportUnresolvedCommand(),
	)
	return importCmd
}

func newImportSmallCommand() *cobra.Command {
	var date string
	var method string

	cmd := &cobra.Command{
		Use:   "small <file>...",
		Short: "Import collection lists paid on one date",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paid, err := time.Parse(dateFormat, date)
			if err != nil {
				return fmt.Errorf("invalid --date %q, want YYYY-MM-DD", date)
			}
			return withProject(cmd, func(ctx context.Context, p *project) error {
				if method != "" {
					p.cfg.Import.SmallFileMethod = method
				}
				reg, err := p.registry()
				if err != nil {
					return err
				}
				for _, path := range args {
					if _, err := p.importFile(ctx, cmd.OutOrStdout(), reg.Get("small"), path, paid); err != nil {
						return err
					}
				}
				return p.commitImport(cmd, args)
			})
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "payment date, YYYY-MM-DD (required)")
	_ = cmd.MarkFlagRequired("date")
	cmd.Flags().StringVar(&method, "method", "", "payment method (default from config)")

	return cmd
}

func newImportFormatCommand(format, short string) *cobra.Command {
	return &cobra.Command{
		Use:   format + " <file>...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd, func(ctx context.Context, p *project) error {
				reg, err := p.registry()
				if err != nil {
					return err
				}
				for _, path := range args {
					if _, err := p.importFile(ctx, cmd.OutOrStdout(), reg.Get(format), path, time.Time{}); err != nil {
						return err
					}
				}
				return p.commitImport(cmd, args)
			})
		},
	}
}

func newImportPendingCommand() *cobra.Command {
	var format string
	var date string

	cmd := &cobra.Command{
		Use:   "pending",
		Short: "Import every CSV waiting in the import directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var paid time.Time
			if date != "" {
				var err error
				if paid, err = time.Parse(dateFormat, date); err != nil {
					return fmt.Errorf("invalid --date %q, want YYYY-MM-DD", date)
				}
			}
			return withProject(cmd, func(ctx context.Context, p *project) error {
				reg, err := p.registry()
				if err != nil {
					return err
				}
				imp := reg.Get(format)
				if imp == nil {
					return fmt.Errorf("unknown format %q (have %v)", format, reg.Formats())
				}

				dir := p.cfg.ImportDir(p.root)
				files, err := importer.Scan(dir)
				if err != nil {
					return err
				}
				if len(files) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "No files waiting in %s\n", dir)
					return nil
				}

				paths := make([]string, 0, len(files))
				for _, f := range files {
					if _, err := p.importFile(ctx, cmd.OutOrStdout(), imp, f.Path, paid); err != nil {
						return err
					}
					if err := importer.MarkProcessed(dir, f.Name); err != nil {
						return err
					}
					paths = append(paths, f.Path)
				}
				return p.commitImport(cmd, paths)
			})
		},
	}

	cmd.Flags().StringVar(&format, "format", "generic", "file format: small, generic or bulk")
	cmd.Flags().StringVar(&date, "date", "", "payment date for small files, YYYY-MM-DD")

	return cmd
}

func newImportUnresolvedCommand() *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "unresolved",
		Short: "List logged import rows that still need manual follow-up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd, func(ctx context.Context, p *project) error {
				entries, err := importlog.Read(p.root)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				n := 0
				for _, e := range importlog.Unresolved(entries) {
					if source != "" && e.Source != source {
						continue
					}
					n++
					fmt.Fprintf(out, "%s %s:%d %s: %s\n  %s\n",
						e.Timestamp.Format(dateFormat), e.Source, e.Line, e.Status, e.Reason, e.Raw)
				}
				fmt.Fprintf(out, "%d unresolved rows\n", n)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "only rows from this file name")

	return cmd
}

// registry builds the importers from the project config.
func (p *project) registry() (*importer.Registry, error) {
	cfg, err := p.cfg.Importer(p.root)
	if err != nil {
		return nil, err
	}
	return importer.DefaultRegistry(p.store, cfg, importer.WithLogger(p.logger)), nil
}

// importFile runs imp over path, appends the rows to the import log and
// prints a summary with every row that needs follow-up.
func (p *project) importFile(ctx context.Context, out io.Writer, imp importer.Importer, path string, date time.Time) (*importer.Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	rep, err := imp.Import(ctx, importer.Source{
		Name:   filepath.Base(path),
		Reader: f,
		Date:   date,
	})
	if rep != nil {
		if lerr := importlog.Append(p.root, importlog.FromReport(rep, time.Now().UTC())); lerr != nil {
			p.logger.Warn("writing import log", "err", lerr)
		}
		printReport(out, rep)
	}
	if err != nil {
		return rep, fmt.Errorf("importing %s: %w", path, err)
	}
	return rep, nil
}

func printReport(out io.Writer, rep *importer.Report) {
	s := rep.Summary()
	fmt.Fprintf(out, "%s (%s): %d created, %d duplicate, %d unresolved, %d malformed, %d skipped; total %s\n",
		rep.Source, rep.Format, s.Created, s.Duplicate, s.Unresolved, s.Malformed, s.Skipped, rep.Total().StringFixed(2))
	for _, row := range rep.Unresolved() {
		fmt.Fprintf(out, "  line %d: %s: %s\n", row.Line, row.Status, row.Reason)
	}
}

// commitImport commits the payment journal and import log when --commit
// is set.
func (p *project) commitImport(cmd *cobra.Command, sources []string) error {
	commit, err := cmd.Flags().GetBool("commit")
	if err != nil || !commit {
		return err
	}
	if !gitops.IsRepo(p.root) {
		return fmt.Errorf("--commit: %s is not a git repository", p.root)
	}

	var paths []string
	for _, path := range []string{
		filepath.Join(p.cfg.StoreDir(p.root), store.PaymentsFile),
		filepath.Join(p.root, importlog.Path),
	} {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if rel, err := filepath.Rel(p.root, path); err == nil && !strings.HasPrefix(rel, "..") {
			paths = append(paths, rel)
		}
	}
	if len(paths) == 0 {
		return nil
	}

	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = filepath.Base(s)
	}
	hash, err := gitops.Commit(cmd.Context(), p.root, "import: "+strings.Join(names, ", "), gitops.DefaultAuthor, paths...)
	if err != nil {
		return err
	}
	if hash != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Committed %s\n", hash)
	}
	return nil
}
