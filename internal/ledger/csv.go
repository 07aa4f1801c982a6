package ledger

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/dues-dev/dues/internal/model"
)

// Header is the CSV header written by WriteMovements.
const Header = "date,kind,amount,balance"

// WriteMovements writes a ledger as CSV, in the order given.
func WriteMovements(w io.Writer, movements []model.Movement) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, m := range movements {
		row := []string{
			m.Date.Format("2006-01-02"),
			m.Kind,
			m.Amount.StringFixed(2),
			m.Balance.StringFixed(2),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
