package importer

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the outcome of importing one row (or one payer of a row).
type Status string

const (
	StatusCreated       Status = "created"
	StatusDuplicate     Status = "duplicate"
	StatusUserNotFound  Status = "user-not-found"
	StatusAmbiguous     Status = "ambiguous-name"
	StatusMalformed     Status = "malformed"
	StatusUnknownMethod Status = "unknown-method"
	StatusSkipped       Status = "skipped"
)

// Unresolved reports whether the row names someone (or something) that
// could not be matched and needs manual follow-up.
func (s Status) Unresolved() bool {
	return s == StatusUserNotFound || s == StatusAmbiguous || s == StatusUnknownMethod
}

// RowResult records what happened to one input row. A bulk row shared by
// several payers produces one result per payer, all with the same Line.
type RowResult struct {
	Line      int
	Raw       string
	Payer     string
	Status    Status
	Reason    string
	MemberID  uuid.UUID
	PaymentID uuid.UUID
	Amount    decimal.Decimal
}

// Report is the outcome of one import run.
type Report struct {
	Format string
	Source string
	Rows   []RowResult
}

// Summary counts row results by outcome.
type Summary struct {
	Created    int
	Duplicate  int
	Unresolved int
	Malformed  int
	Skipped    int
}

// Summary tallies the report's rows.
func (r *Report) Summary() Summary {
	var s Summary
	for _, row := range r.Rows {
		switch {
		case row.Status == StatusCreated:
			s.Created++
		case row.Status == StatusDuplicate:
			s.Duplicate++
		case row.Status == StatusMalformed:
			s.Malformed++
		case row.Status == StatusSkipped:
			s.Skipped++
		case row.Status.Unresolved():
			s.Unresolved++
		}
	}
	return s
}

// Unresolved returns the rows that need manual follow-up: unmatched or
// ambiguous payers, unknown methods and malformed rows.
func (r *Report) Unresolved() []RowResult {
	var out []RowResult
	for _, row := range r.Rows {
		if row.Status.Unresolved() || row.Status == StatusMalformed {
			out = append(out, row)
		}
	}
	return out
}

// Total returns the sum of all created payments.
func (r *Report) Total() decimal.Decimal {
	total := decimal.Zero
	for _, row := range r.Rows {
		if row.Status == StatusCreated {
			total = total.Add(row.Amount)
		}
	}
	return total
}
