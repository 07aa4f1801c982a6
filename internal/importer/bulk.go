package importer

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dues-dev/dues/internal/model"
)

const (
	bulkColDate    = 0
	bulkColSubject = 2
	bulkColMethod  = 3
	bulkColDebit   = 4
	bulkColCredit  = 5
	bulkMinFields  = 6
)

// BulkConfig configures the accounting-export importer.
type BulkConfig struct {
	// Aliases maps export labels to payment method names.
	Aliases map[string]string
	// Sentinels are parenthesized subject values that mean "one payer,
	// ignore the parentheses", e.g. an account number.
	Sentinels []string
	// DefaultMethod is used for labels that name no method. Empty means
	// the first stored method.
	DefaultMethod string
	// Corrections normalizes payer names.
	Corrections *CorrectionTable
}

// DefaultBulkConfig returns the settings for the association's legacy
// accounting export.
func DefaultBulkConfig() BulkConfig {
	return BulkConfig{
		Aliases: map[string]string{
			"sammler":                  model.MethodBankCollection,
			"Umlaufvermögen:2810 Bank": model.MethodBankCollection,
		},
		Sentinels:   []string{"280"},
		Corrections: DefaultCorrections(),
	}
}

// Bulk imports historical accounting exports, one ledger transaction per
// row: [date, _, subject, method label, debit, credit]. A subject may name
// several payers in parentheses, who then share the amount equally.
type Bulk struct {
	base
	cfg BulkConfig
}

// NewBulk creates a bulk importer.
func NewBulk(s Store, cfg BulkConfig, opts ...Option) *Bulk {
	return &Bulk{base: newBase(s, opts), cfg: cfg}
}

// Format returns the importer name.
func (imp *Bulk) Format() string { return "bulk" }

// Import reads src.
func (imp *Bulk) Import(ctx context.Context, src Source) (*Report, error) {
	methods := make(map[string]model.PaymentMethod)

	return imp.run(ctx, imp.Format(), src, func(ctx context.Context, rep *Report, l line) error {
		res := RowResult{Line: l.No, Raw: l.Raw}

		switch {
		case l.Fields == nil && l.Err == nil:
			res.Status, res.Reason = StatusSkipped, "blank line"
		case l.Err != nil:
			res.Status, res.Reason = StatusMalformed, l.Err.Error()
		case strings.TrimSpace(l.Fields[bulkColDate]) == "":
			res.Status, res.Reason = StatusSkipped, "no date"
		case len(l.Fields) < bulkMinFields:
			res.Status, res.Reason = StatusMalformed, fmt.Sprintf("expected at least %d fields, got %d", bulkMinFields, len(l.Fields))
		}
		if res.Status != "" {
			imp.record(ctx, rep, res)
			return nil
		}

		date, err := parseDate(l.Fields[bulkColDate])
		if err != nil {
			res.Status, res.Reason = StatusMalformed, err.Error()
			imp.record(ctx, rep, res)
			return nil
		}

		label := l.Fields[bulkColMethod]
		pm, cached := methods[label]
		if !cached {
			pm, err = imp.method(ctx, label)
			if err != nil {
				return err
			}
			methods[label] = pm
		}

		payers := imp.payers(l.Fields[bulkColSubject])
		total, err := bulkAmount(l.Fields[bulkColDebit], l.Fields[bulkColCredit])
		if err != nil {
			res.Status, res.Reason = StatusMalformed, err.Error()
			imp.record(ctx, rep, res)
			return nil
		}
		share := total.Div(decimal.NewFromInt(int64(len(payers))))

		for _, payer := range payers {
			res := RowResult{Line: l.No, Raw: l.Raw, Payer: strings.TrimSpace(payer), Amount: share}

			fragments := imp.cfg.Corrections.Apply(strings.Split(payer, " "))
			if len(fragments) < 2 {
				res.Status = StatusUserNotFound
				res.Reason = fmt.Sprintf("no first and last name in %q", payer)
				imp.record(ctx, rep, res)
				continue
			}

			member, status, err := imp.resolveMember(ctx, fragments[0], fragments[1], false)
			if err != nil {
				return err
			}
			if status != "" {
				res.Status = status
				res.Reason = fmt.Sprintf("%s: %q %q", status, fragments[0], fragments[1])
				imp.record(ctx, rep, res)
				continue
			}

			err = imp.create(ctx, rep, res, &model.Payment{
				MemberID:       member.ID,
				Amount:         share,
				Date:           date,
				Method:         pm,
				OriginalFile:   src.Name,
				OriginalLine:   l.Raw,
				OriginalLineNo: l.No,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// method maps an export label to a stored payment method: aliases first,
// then the label itself, then the configured default, then the first
// stored method.
func (imp *Bulk) method(ctx context.Context, label string) (model.PaymentMethod, error) {
	name := label
	if alias, ok := imp.cfg.Aliases[label]; ok {
		name = alias
	}
	if pm, ok, err := imp.lookupMethod(ctx, name); err != nil || ok {
		return pm, err
	}

	if imp.cfg.DefaultMethod != "" {
		pm, ok, err := imp.lookupMethod(ctx, imp.cfg.DefaultMethod)
		if err != nil {
			return model.PaymentMethod{}, err
		}
		if ok {
			imp.logger.Debug("unknown method label, using default", "label", label, "method", pm.Name)
			return pm, nil
		}
	}

	all, err := imp.store.FindPaymentMethods(ctx)
	if err != nil {
		return model.PaymentMethod{}, fmt.Errorf("listing payment methods: %w", err)
	}
	if len(all) == 0 {
		return model.PaymentMethod{}, fmt.Errorf("no payment methods defined, cannot map label %q", label)
	}
	imp.logger.Debug("unknown method label, using first method", "label", label, "method", all[0].Name)
	return all[0], nil
}

// payers splits a subject into payer names. "A (B, C)" names B and C;
// "A (280)" with a sentinel names A; anything else is a single payer.
func (imp *Bulk) payers(subject string) []string {
	open := strings.Index(subject, "(")
	if open < 0 || !strings.Contains(subject, ")") {
		return []string{subject}
	}
	inner := subject[open+1:]
	if end := strings.Index(inner, ")"); end >= 0 {
		inner = inner[:end]
	}
	if slices.Contains(imp.cfg.Sentinels, inner) {
		return []string{subject[:open]}
	}
	return strings.Split(inner, ",")
}

// bulkAmount prefers credit, else the negated debit, else zero. Amounts use
// a decimal comma.
func bulkAmount(debit, credit string) (decimal.Decimal, error) {
	raw := "0"
	switch {
	case credit != "":
		raw = credit
	case debit != "":
		raw = "-" + debit
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", "."))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", raw)
	}
	return d, nil
}
