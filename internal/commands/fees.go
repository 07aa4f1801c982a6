package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dues-dev/dues/internal/fees"
)

func newFeesCommand() *cobra.Command {
	feesCmd := &cobra.Command{
		Use:   "fees",
		Short: "Inspect the fee schedule",
	}

	feesCmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Report fee records of one kind whose date ranges overlap",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd, func(ctx context.Context, p *project) error {
				records, err := p.store.FindAllFeeRecords(ctx)
				if err != nil {
					return err
				}
				overlaps := fees.Schedule(records).Overlaps()
				out := cmd.OutOrStdout()
				for _, o := range overlaps {
					fmt.Fprintln(out, o.String())
				}
				if len(overlaps) > 0 {
					return fmt.Errorf("%d overlapping fee records", len(overlaps))
				}
				fmt.Fprintf(out, "%d fee records, no overlaps\n", len(records))
				return nil
			})
		},
	})

	return feesCmd
}
