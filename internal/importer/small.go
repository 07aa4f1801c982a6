package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dues-dev/dues/internal/model"
)

const (
	smallColFirst  = 0
	smallColLast   = 1
	smallColAmount = 5
	smallMinFields = 2
)

// SmallFile imports collection lists: [first, last, ..., amount@5]. Every
// payment gets the same method and the caller-supplied date.
type SmallFile struct {
	base
	method string
}

// NewSmallFile creates a small-file importer paying with the method named
// method (default "bank collection").
func NewSmallFile(s Store, method string, opts ...Option) *SmallFile {
	if method == "" {
		method = model.MethodBankCollection
	}
	return &SmallFile{base: newBase(s, opts), method: method}
}

// Format returns the importer name.
func (imp *SmallFile) Format() string { return "small" }

// Import reads src. src.Date is required. The payment method is looked up
// once; if it does not exist nothing is imported.
func (imp *SmallFile) Import(ctx context.Context, src Source) (*Report, error) {
	if src.Date.IsZero() {
		return nil, errors.New("small-file import needs a payment date")
	}
	pm, ok, err := imp.lookupMethod(ctx, imp.method)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("payment method %q does not exist", imp.method)
	}
	date := src.Date.UTC()

	return imp.run(ctx, imp.Format(), src, func(ctx context.Context, rep *Report, l line) error {
		res := RowResult{Line: l.No, Raw: l.Raw}

		switch {
		case l.Fields == nil && l.Err == nil:
			res.Status, res.Reason = StatusSkipped, "blank line"
		case l.Err != nil:
			res.Status, res.Reason = StatusMalformed, l.Err.Error()
		case len(l.Fields) < smallMinFields:
			res.Status, res.Reason = StatusMalformed, fmt.Sprintf("expected at least %d fields, got %d", smallMinFields, len(l.Fields))
		}
		if res.Status != "" {
			imp.record(ctx, rep, res)
			return nil
		}

		first, last := l.Fields[smallColFirst], l.Fields[smallColLast]
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

		if len(l.Fields) <= smallColAmount {
			res.Status, res.Reason = StatusMalformed, "missing amount"
			imp.record(ctx, rep, res)
			return nil
		}
		amount, err := parseAmount(l.Fields[smallColAmount])
		if err != nil {
			res.Status, res.Reason = StatusMalformed, err.Error()
			imp.record(ctx, rep, res)
			return nil
		}

		return imp.create(ctx, rep, res, &model.Payment{
			MemberID:       member.ID,
			Amount:         amount,
			Date:           date,
			Method:         pm,
			OriginalFile:   src.Name,
			OriginalLine:   l.Raw,
			OriginalLineNo: l.No,
		})
	})
}
