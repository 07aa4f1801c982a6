package commands

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/dues-dev/dues/internal/monthkey"
	"github.com/dues-dev/dues/internal/period"
)

func newMembersCommand() *cobra.Command {
	membersCmd := &cobra.Command{
		Use:   "members",
		Short: "Membership reports",
	}
	membersCmd.AddCommand(
		newMembersActiveCommand(),
		newMembersMonthsCommand(),
		newMembersShowCommand(),
		newMembersMandatesCommand(),
	)
	return membersCmd
}

func newMembersActiveCommand() *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "active",
		Short: "List members with a membership covering a date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := dateFlag(date)
			if err != nil {
				return err
			}
			return withProject(cmd, func(ctx context.Context, p *project) error {
				periods, err := p.store.FindAllMembershipPeriods(ctx)
				if err != nil {
					return err
				}
				ids := period.ActiveMembers(periods, day)
				out := cmd.OutOrStdout()
				for _, id := range ids {
					m, err := p.store.FindMember(ctx, id)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "%-20s %s\n", m.Username, m.FullName())
				}
				fmt.Fprintf(out, "%d active on %s\n", len(ids), day.Format(dateFormat))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "date to check (YYYY-MM-DD, default today)")

	return cmd
}

func newMembersMonthsCommand() *cobra.Command {
	var until string

	cmd := &cobra.Command{
		Use:   "months",
		Short: "Sum membership months per membership kind",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := dateFlag(until)
			if err != nil {
				return err
			}
			return withProject(cmd, func(ctx context.Context, p *project) error {
				periods, err := p.store.FindAllMembershipPeriods(ctx)
				if err != nil {
					return err
				}
				kinds, err := p.store.FindMembershipKinds(ctx)
				if err != nil {
					return err
				}
				names := make(map[int64]string, len(kinds))
				for _, k := range kinds {
					names[k.ID] = k.Name
				}

				counts := period.ActiveMonthsByKind(periods, names, day)
				keys := make([]string, 0, len(counts))
				for k := range counts {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				out := cmd.OutOrStdout()
				for _, k := range keys {
					fmt.Fprintf(out, "%-20s %6d\n", k, counts[k])
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&until, "until", "", "count months up to this date (YYYY-MM-DD, default today)")

	return cmd
}

func newMembersShowCommand() *cobra.Command {
	var asOf string
	var month string

	cmd := &cobra.Command{
		Use:   "show <username>",
		Short: "Show a member's membership and payment summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			today, err := dateFlag(asOf)
			if err != nil {
				return err
			}
			var dueDay time.Time
			if month != "" {
				start, err := monthkey.Parse(month)
				if err != nil {
					return err
				}
				dueDay = period.AddMonths(start, 1).AddDate(0, 0, -1)
			}
			return withProject(cmd, func(ctx context.Context, p *project) error {
				m, err := p.member(ctx, args[0])
				if err != nil {
					return err
				}
				svc := p.ledgerAsOf(today, asOf)
				out := cmd.OutOrStdout()

				fmt.Fprintf(out, "%s (%s)\n", m.FullName(), m.Username)

				first, ok, err := svc.FirstJoined(ctx, m.ID)
				if err != nil {
					return err
				}
				if ok {
					fmt.Fprintf(out, "  joined:         %s\n", first.Format(dateFormat))
				} else {
					fmt.Fprintln(out, "  joined:         never")
				}

				cur, ok, err := svc.CurrentPeriod(ctx, m.ID)
				if err != nil {
					return err
				}
				if ok {
					fmt.Fprintf(out, "  current:        kind %d since %s (%d months)\n",
						cur.KindID, cur.Begin.Format(dateFormat), period.DurationInMonths(cur, today))
				}

				paid, err := svc.TotalPayments(ctx, m.ID)
				if err != nil {
					return err
				}
				balance, err := svc.Balance(ctx, m.ID)
				if err != nil {
					return err
				}
				var due decimal.Decimal
				if dueDay.IsZero() {
					dueDay = today
					due, err = svc.DebtThisMonth(ctx, m.ID)
				} else {
					due, err = svc.DebtForMonth(ctx, m.ID, dueDay)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "  paid:           %s\n", paid.StringFixed(2))
				fmt.Fprintf(out, "  balance:        %s\n", balance.StringFixed(2))
				fmt.Fprintf(out, "  %-16s%s\n", "due "+monthkey.Format(dueDay)+":", due.StringFixed(2))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&asOf, "as-of", "", "report as of this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&month, "month", "", "show the fee due for this month (YYYY-MM, default the as-of month)")

	return cmd
}

func newMembersMandatesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mandates",
		Short: "Check the bank details of members paying by direct debit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd, func(ctx context.Context, p *project) error {
				infos, err := p.store.FindPaymentInfos(ctx)
				if err != nil {
					return err
				}

				type row struct {
					username string
					line     string
				}
				var rows []row
				checked, invalid := 0, 0
				for _, info := range infos {
					if !info.CollectionAllowed {
						continue
					}
					m, err := p.store.FindMember(ctx, info.MemberID)
					if err != nil {
						return fmt.Errorf("payment info for %s: %w", info.MemberID, err)
					}
					checked++
					line := info.IBAN + " ok"
					if err := info.Validate(); err != nil {
						invalid++
						line = err.Error()
					}
					rows = append(rows, row{m.Username, line})
				}
				sort.Slice(rows, func(i, j int) bool { return rows[i].username < rows[j].username })

				out := cmd.OutOrStdout()
				for _, r := range rows {
					fmt.Fprintf(out, "%-20s %s\n", r.username, r.line)
				}
				if invalid > 0 {
					return fmt.Errorf("%d of %d mandates invalid", invalid, checked)
				}
				fmt.Fprintf(out, "%d mandates ok\n", checked)
				return nil
			})
		},
	}
}
