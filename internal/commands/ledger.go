package commands

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/dues-dev/dues/internal/ledger"
)

func newLedgerCommand() *cobra.Command {
	var asOf string
	var asCSV bool

	cmd := &cobra.Command{
		Use:   "ledger <username>",
		Short: "Show a member's fees and payments, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			today, err := dateFlag(asOf)
			if err != nil {
				return err
			}
			return withProject(cmd, func(ctx context.Context, p *project) error {
				m, err := p.member(ctx, args[0])
				if err != nil {
					return err
				}
				movements, err := p.ledgerAsOf(today, asOf).Ledger(ctx, m.ID)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if asCSV {
					return ledger.WriteMovements(out, movements)
				}
				fmt.Fprintf(out, "%s (%s)\n", m.FullName(), m.Username)
				for _, mv := range movements {
					fmt.Fprintf(out, "  %s  %-16s %10s %10s\n",
						mv.Date.Format(dateFormat), mv.Kind, mv.Amount.StringFixed(2), mv.Balance.StringFixed(2))
				}
				if len(movements) == 0 {
					fmt.Fprintln(out, "  no movements")
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&asOf, "as-of", "", "compute the ledger as of this date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&asCSV, "csv", false, "write the ledger as CSV")

	return cmd
}

func newBalanceCommand() *cobra.Command {
	var asOf string

	cmd := &cobra.Command{
		Use:   "balance [username...]",
		Short: "Show balances (payments minus fees)",
		Long:  "Show balances for the given members, or for every member that ever held a membership.",
		RunE: func(cmd *cobra.Command, args []string) error {
			today, err := dateFlag(asOf)
			if err != nil {
				return err
			}
			return withProject(cmd, func(ctx context.Context, p *project) error {
				usernames := args
				if len(usernames) == 0 {
					if usernames, err = p.usernamesWithPeriods(ctx); err != nil {
						return err
					}
				}

				svc := p.ledgerAsOf(today, asOf)
				out := cmd.OutOrStdout()
				for _, username := range usernames {
					m, err := p.member(ctx, username)
					if err != nil {
						return err
					}
					balance, err := svc.Balance(ctx, m.ID)
					if err != nil {
						return fmt.Errorf("%s: %w", username, err)
					}
					fmt.Fprintf(out, "%-20s %10s\n", m.Username, balance.StringFixed(2))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&asOf, "as-of", "", "compute balances as of this date (YYYY-MM-DD)")

	return cmd
}

// usernamesWithPeriods lists, sorted, the members that have at least one
// membership period.
func (p *project) usernamesWithPeriods(ctx context.Context) ([]string, error) {
	periods, err := p.store.FindAllMembershipPeriods(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var names []string
	for _, per := range periods {
		m, err := p.store.FindMember(ctx, per.MemberID)
		if err != nil {
			return nil, fmt.Errorf("period %d: %w", per.ID, err)
		}
		if !seen[m.Username] {
			seen[m.Username] = true
			names = append(names, m.Username)
		}
	}
	sort.Strings(names)
	return names, nil
}
