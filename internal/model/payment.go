package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Well-known payment method names.
const (
	MethodBankCollection = "bank collection"
	MethodCash           = "cash"
	MethodTransfer       = "transfer"
)

// PaymentMethod is a named way of paying.
type PaymentMethod struct {
	ID   int64  `yaml:"id"`
	Name string `yaml:"name"`
}

// Payment is money received from (or refunded to) a member.
type Payment struct {
	ID       uuid.UUID
	MemberID uuid.UUID // uuid.Nil = unresolved
	Amount   decimal.Decimal
	Date     time.Time
	Method   PaymentMethod
	Comment  string

	// Provenance of imported payments.
	OriginalFile   string
	OriginalLine   string
	OriginalLineNo int // 0 = unknown
}

// MovementKindFee labels fee obligations in a ledger.
const MovementKindFee = "membership fee"

// Movement is one ledger line: a fee obligation (negative) or a payment
// (positive), with the balance after applying it.
type Movement struct {
	Date    time.Time
	Amount  decimal.Decimal
	Kind    string
	Balance decimal.Decimal
}
