package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dues-dev/dues/internal/iban"
)

// BankCollectionMode says how often dues are collected by direct debit.
type BankCollectionMode struct {
	Name      string `yaml:"name"`
	NumMonths int    `yaml:"num_months"`
}

// PaymentInfo holds a member's bank details for direct debit.
type PaymentInfo struct {
	MemberID          uuid.UUID          `yaml:"member_id"`
	CollectionAllowed bool               `yaml:"collection_allowed"`
	CollectionMode    BankCollectionMode `yaml:"collection_mode,omitempty"`
	AccountOwner      string             `yaml:"account_owner,omitempty"`
	BankName          string             `yaml:"bank_name,omitempty"`
	IBAN              string             `yaml:"iban,omitempty"`
	BIC               string             `yaml:"bic,omitempty"`
	MandateReference  string             `yaml:"mandate_reference,omitempty"`
	DateOfSigning     time.Time          `yaml:"date_of_signing,omitempty"`
}

// Validate checks the fields that have format rules. An empty IBAN is allowed.
func (p PaymentInfo) Validate() error {
	if p.IBAN != "" {
		if err := iban.Validate(p.IBAN); err != nil {
			return fmt.Errorf("iban: %w", err)
		}
	}
	if len(p.BIC) > 11 {
		return fmt.Errorf("bic %q longer than 11 characters", p.BIC)
	}
	if len(p.MandateReference) > 35 {
		return fmt.Errorf("mandate reference longer than 35 characters")
	}
	return nil
}
