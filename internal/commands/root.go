package commands

import (
	"github.com/spf13/cobra"

	"github.com/dues-dev/dues/internal/buildinfo"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "dues",
		Short:   "Membership dues ledger and payment import",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringP("project", "C", ".", "project directory")

	rootCmd.AddCommand(
		newInitCommand(),
		newIBANCommand(),
		newImportCommand(),
		newLedgerCommand(),
		newBalanceCommand(),
		newFeesCommand(),
		newMembersCommand(),
		newDBCommand(),
	)

	return rootCmd
}
