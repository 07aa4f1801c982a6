package importer

import (
	"context"
	"fmt"
	"strings"

	"github.com/dues-dev/dues/internal/model"
)

const (
	genericColFirst  = 0
	genericColLast   = 1
	genericColAmount = 5
	genericColDate   = 7
	genericColMethod = 8
	genericMinFields = 9
)

// Generic imports rows that carry their own date and method:
// [first, last, ..., amount@5, ..., date@7, method@8]. A payment already
// recorded for the same member, date and amount is a duplicate, so
// re-importing a file creates nothing.
type Generic struct {
	base
}

// NewGeneric creates a generic importer.
func NewGeneric(s Store, opts ...Option) *Generic {
	return &Generic{base: newBase(s, opts)}
}

// Format returns the importer name.
func (imp *Generic) Format() string { return "generic" }

// Import reads src.
func (imp *Generic) Import(ctx context.Context, src Source) (*Report, error) {
	methods := make(map[string]*model.PaymentMethod)

	return imp.run(ctx, imp.Format(), src, func(ctx context.Context, rep *Report, l line) error {
		res := RowResult{Line: l.No, Raw: l.Raw}

		switch {
		case l.Fields == nil && l.Err == nil:
			res.Status, res.Reason = StatusSkipped, "blank line"
		case l.Err != nil:
			res.Status, res.Reason = StatusMalformed, l.Err.Error()
		case len(l.Fields) < genericMinFields:
			res.Status, res.Reason = StatusMalformed, fmt.Sprintf("expected at least %d fields, got %d", genericMinFields, len(l.Fields))
		}
		if res.Status != "" {
			imp.record(ctx, rep, res)
			return nil
		}

		first, last := l.Fields[genericColFirst], l.Fields[genericColLast]
		res.Payer = strings.TrimSpace(first + " " + last)

		member, status, err := imp.resolveMember(ctx, first, last, true)
		if err != nil {
			return err
		}
		if status != "" {
			res.Status = status
			res.Reason = fmt.Sprintf("%s: %q %q", status, first, last)
			imp.record(ctx, rep, res)
			return nil
		}
		res.MemberID = member.ID

		amount, err := parseAmount(l.Fields[genericColAmount])
		if err != nil {
			res.Status, res.Reason = StatusMalformed, err.Error()
			imp.record(ctx, rep, res)
			return nil
		}
		res.Amount = amount
		date, err := parseDate(l.Fields[genericColDate])
		if err != nil {
			res.Status, res.Reason = StatusMalformed, err.Error()
			imp.record(ctx, rep, res)
			return nil
		}

		exists, err := imp.store.PaymentExists(ctx, member.ID, date, amount)
		if err != nil {
			return fmt.Errorf("line %d: checking for duplicate: %w", l.No, err)
		}
		if exists {
			res.Status = StatusDuplicate
			res.Reason = fmt.Sprintf("payment of %s on %s already recorded", amount, date.Format("2006-01-02"))
			imp.record(ctx, rep, res)
			return nil
		}

		name := l.Fields[genericColMethod]
		pm, cached := methods[name]
		if !cached {
			found, ok, err := imp.lookupMethod(ctx, name)
			if err != nil {
				return err
			}
			if ok {
				pm = &found
			}
			methods[name] = pm
		}
		if pm == nil {
			res.Status = StatusUnknownMethod
			res.Reason = fmt.Sprintf("unknown payment method %q", name)
			imp.record(ctx, rep, res)
			return nil
		}

		return imp.create(ctx, rep, res, &model.Payment{
			MemberID:       member.ID,
			Amount:         amount,
			Date:           date,
			Method:         *pm,
			OriginalFile:   src.Name,
			OriginalLine:   l.Raw,
			OriginalLineNo: l.No,
		})
	})
}
