package model

import (
	"time"

	"github.com/google/uuid"
)

// FeeCategory classifies membership kinds for reporting.
type FeeCategory string

const (
	FeeCategoryStandard  FeeCategory = "standard"
	FeeCategoryFree      FeeCategory = "free"
	FeeCategoryDecreased FeeCategory = "decreased"
	FeeCategoryIncreased FeeCategory = "increased"
)

// Member is a person who owes dues.
type Member struct {
	ID        uuid.UUID `yaml:"id"`
	Username  string    `yaml:"username"`
	FirstName string    `yaml:"first_name"`
	LastName  string    `yaml:"last_name"`
	Email     string    `yaml:"email,omitempty"`
}

// FullName returns "First Last".
func (m Member) FullName() string {
	return m.FirstName + " " + m.LastName
}

// MembershipKind is a class of membership (regular, student, supporting, ...).
// Fee records reference it, so it must not change once fees exist.
type MembershipKind struct {
	ID          int64       `yaml:"id"`
	Name        string      `yaml:"name"`
	FeeCategory FeeCategory `yaml:"fee_category"`
}

// FeeRecord is the fee of a membership kind over a date range.
type FeeRecord struct {
	KindID int64     `yaml:"kind_id"`
	Start  time.Time `yaml:"start"`
	End    time.Time `yaml:"end,omitempty"` // zero = open-ended
	Amount int64     `yaml:"amount"`        // whole currency units
}

// IsOpen reports whether the fee has no end date.
func (f FeeRecord) IsOpen() bool { return f.End.IsZero() }

// Covers reports whether the fee applies on day.
func (f FeeRecord) Covers(day time.Time) bool {
	return !f.Start.After(day) && (f.IsOpen() || !f.End.Before(day))
}

// MembershipPeriod is a stretch of time during which a member held one kind
// of membership. Periods are closed by setting End, never deleted.
type MembershipPeriod struct {
	ID       int64     `yaml:"id"`
	MemberID uuid.UUID `yaml:"member_id"`
	KindID   int64     `yaml:"kind_id"`
	Begin    time.Time `yaml:"begin"`
	End      time.Time `yaml:"end,omitempty"` // zero = currently active
}

// IsOpen reports whether the period is still running.
func (p MembershipPeriod) IsOpen() bool { return p.End.IsZero() }
