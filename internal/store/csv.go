package store

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dues-dev/dues/internal/model"
)

// PaymentsHeader is the CSV header for payments.csv.
const PaymentsHeader = "id,member_id,date,amount,method,comment,original_file,original_lineno,original_line"

const (
	numFields     = 9
	dateFormat    = "2006-01-02"
	colID         = 0
	colMemberID   = 1
	colDate       = 2
	colAmount     = 3
	colMethod     = 4
	colComment    = 5
	colOrigFile   = 6
	colOrigLineNo = 7
	colOrigLine   = 8
)

// MethodLookup resolves a payment method name read from CSV.
type MethodLookup func(name string) (model.PaymentMethod, bool)

// ReadPayments reads all payments from a payments.csv reader.
func ReadPayments(r io.Reader, methods MethodLookup) ([]model.Payment, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading payments CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	// Skip header row.
	var payments []model.Payment
	for i, rec := range records[1:] {
		p, err := UnmarshalPayment(rec, methods)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		payments = append(payments, p)
	}
	return payments, nil
}

// AppendPayments appends payments to an existing payments.csv writer (no header).
func AppendPayments(w io.Writer, payments []model.Payment) error {
	cw := csv.NewWriter(w)

	for i, p := range payments {
		if err := cw.Write(MarshalPayment(p)); err != nil {
			return fmt.Errorf("writing row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WritePayments writes payments including the header.
func WritePayments(w io.Writer, payments []model.Payment) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(strings.Split(PaymentsHeader, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	return AppendPayments(w, payments)
}

// MarshalPayment converts a Payment to a CSV row.
func MarshalPayment(p model.Payment) []string {
	row := make([]string, numFields)
	row[colID] = p.ID.String()
	if p.MemberID != uuid.Nil {
		row[colMemberID] = p.MemberID.String()
	}
	row[colDate] = p.Date.Format(dateFormat)
	row[colAmount] = p.Amount.String()
	row[colMethod] = p.Method.Name
	row[colComment] = p.Comment
	row[colOrigFile] = p.OriginalFile
	if p.OriginalLineNo != 0 {
		row[colOrigLineNo] = strconv.Itoa(p.OriginalLineNo)
	}
	row[colOrigLine] = p.OriginalLine
	return row
}

// UnmarshalPayment converts a CSV row to a Payment.
func UnmarshalPayment(record []string, methods MethodLookup) (model.Payment, error) {
	if len(record) != numFields {
		return model.Payment{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	id, err := uuid.Parse(record[colID])
	if err != nil {
		return model.Payment{}, fmt.Errorf("parsing id %q: %w", record[colID], err)
	}

	var memberID uuid.UUID
	if record[colMemberID] != "" {
		memberID, err = uuid.Parse(record[colMemberID])
		if err != nil {
			return model.Payment{}, fmt.Errorf("parsing member_id %q: %w", record[colMemberID], err)
		}
	}

	date, err := time.Parse(dateFormat, record[colDate])
	if err != nil {
		return model.Payment{}, fmt.Errorf("parsing date %q: %w", record[colDate], err)
	}

	amount, err := decimal.NewFromString(record[colAmount])
	if err != nil {
		return model.Payment{}, fmt.Errorf("parsing amount %q: %w", record[colAmount], err)
	}

	method, ok := methods(record[colMethod])
	if !ok {
		return model.Payment{}, fmt.Errorf("unknown payment method %q", record[colMethod])
	}

	var lineNo int
	if record[colOrigLineNo] != "" {
		lineNo, err = strconv.Atoi(record[colOrigLineNo])
		if err != nil {
			return model.Payment{}, fmt.Errorf("parsing original_lineno %q: %w", record[colOrigLineNo], err)
		}
	}

	return model.Payment{
		ID:             id,
		MemberID:       memberID,
		Amount:         amount,
		Date:           date,
		Method:         method,
		Comment:        record[colComment],
		OriginalFile:   record[colOrigFile],
		OriginalLineNo: lineNo,
		OriginalLine:   record[colOrigLine],
	}, nil
}
