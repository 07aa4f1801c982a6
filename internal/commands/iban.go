package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dues-dev/dues/internal/iban"
)

func newIBANCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "iban <code>...",
		Short: "Validate IBANs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			invalid := 0
			for _, arg := range args {
				code := iban.Normalize(arg)
				if err := iban.Validate(code); err != nil {
					invalid++
					fmt.Fprintf(out, "%s: %v\n", arg, err)
					continue
				}
				fmt.Fprintf(out, "%s: valid\n", code)
			}
			if invalid > 0 {
				return fmt.Errorf("%d of %d IBANs invalid", invalid, len(args))
			}
			return nil
		},
	}
}
