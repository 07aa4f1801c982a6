package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/dues-dev/dues/internal/model"
)

//go:embed schema.sql
var schema string

// Postgres is a store backed by a PostgreSQL database.
type Postgres struct {
	db *sql.DB
}

// OpenPostgres connects to the database at dsn and verifies the connection.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Postgres{db: db}, nil
}

// NewPostgres wraps an existing connection pool.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Close releases the connection pool.
func (s *Postgres) Close() error {
	return s.db.Close()
}

// Migrate creates missing tables and indexes.
func (s *Postgres) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// FindMembershipPeriods returns a member's periods ordered by begin date.
func (s *Postgres) FindMembershipPeriods(ctx context.Context, memberID uuid.UUID) ([]model.MembershipPeriod, error) {
	return s.queryPeriods(ctx, `
		SELECT id, member_id, kind_id, begin_date, end_date
		FROM membership_periods
		WHERE member_id = $1
		ORDER BY begin_date, id
	`, memberID)
}

// FindAllMembershipPeriods returns every period ordered by begin date.
func (s *Postgres) FindAllMembershipPeriods(ctx context.Context) ([]model.MembershipPeriod, error) {
	return s.queryPeriods(ctx, `
		SELECT id, member_id, kind_id, begin_date, end_date
		FROM membership_periods
		ORDER BY begin_date, id
	`)
}

func (s *Postgres) queryPeriods(ctx context.Context, query string, args ...any) ([]model.MembershipPeriod, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query membership periods: %w", err)
	}
	defer rows.Close()

	var out []model.MembershipPeriod
	for rows.Next() {
		var p model.MembershipPeriod
		var end sql.NullTime
		if err := rows.Scan(&p.ID, &p.MemberID, &p.KindID, &p.Begin, &end); err != nil {
			return nil, fmt.Errorf("scan membership period: %w", err)
		}
		p.Begin = day(p.Begin)
		if end.Valid {
			p.End = day(end.Time)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// FindAllFeeRecords returns the fee schedule in definition order.
func (s *Postgres) FindAllFeeRecords(ctx context.Context) ([]model.FeeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind_id, start_date, end_date, amount
		FROM fee_records
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query fee records: %w", err)
	}
	defer rows.Close()

	var out []model.FeeRecord
	for rows.Next() {
		var f model.FeeRecord
		var end sql.NullTime
		if err := rows.Scan(&f.KindID, &f.Start, &end, &f.Amount); err != nil {
			return nil, fmt.Errorf("scan fee record: %w", err)
		}
		f.Start = day(f.Start)
		if end.Valid {
			f.End = day(end.Time)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// FindMembershipKinds returns all membership kinds ordered by ID.
func (s *Postgres) FindMembershipKinds(ctx context.Context) ([]model.MembershipKind, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, fee_category FROM membership_kinds ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query membership kinds: %w", err)
	}
	defer rows.Close()

	var out []model.MembershipKind
	for rows.Next() {
		var k model.MembershipKind
		if err := rows.Scan(&k.ID, &k.Name, &k.FeeCategory); err != nil {
			return nil, fmt.Errorf("scan membership kind: %w", err)
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// FindPayments returns a member's payments ordered by date, then by
// insertion order.
func (s *Postgres) FindPayments(ctx context.Context, memberID uuid.UUID) ([]model.Payment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.member_id, p.amount, p.date, m.id, m.name, p.comment,
		       p.original_file, p.original_line, p.original_lineno
		FROM payments p
		JOIN payment_methods m ON m.id = p.method_id
		WHERE p.member_id = $1
		ORDER BY p.date, p.seq
	`, memberID)
	if err != nil {
		return nil, fmt.Errorf("query payments: %w", err)
	}
	defer rows.Close()

	var out []model.Payment
	for rows.Next() {
		var (
			p      model.Payment
			member uuid.NullUUID
			file   sql.NullString
			lineNo sql.NullInt64
		)
		err := rows.Scan(&p.ID, &member, &p.Amount, &p.Date, &p.Method.ID, &p.Method.Name,
			&p.Comment, &file, &p.OriginalLine, &lineNo)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		if member.Valid {
			p.MemberID = member.UUID
		}
		p.Date = day(p.Date)
		p.OriginalFile = file.String
		p.OriginalLineNo = int(lineNo.Int64)
		out = append(out, p)
	}
	return out, rows.Err()
}

// FindPaymentMethodByName returns the method with exactly this name.
func (s *Postgres) FindPaymentMethodByName(ctx context.Context, name string) (model.PaymentMethod, error) {
	var pm model.PaymentMethod
	err := s.db.QueryRowContext(ctx, `SELECT id, name FROM payment_methods WHERE name = $1`, name).
		Scan(&pm.ID, &pm.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PaymentMethod{}, fmt.Errorf("payment method %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return model.PaymentMethod{}, fmt.Errorf("query payment method %q: %w", name, err)
	}
	return pm, nil
}

// FindPaymentMethods returns all payment methods ordered by ID.
func (s *Postgres) FindPaymentMethods(ctx context.Context) ([]model.PaymentMethod, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM payment_methods ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query payment methods: %w", err)
	}
	defer rows.Close()

	var out []model.PaymentMethod
	for rows.Next() {
		var pm model.PaymentMethod
		if err := rows.Scan(&pm.ID, &pm.Name); err != nil {
			return nil, fmt.Errorf("scan payment method: %w", err)
		}
		out = append(out, pm)
	}
	return out, rows.Err()
}

// FindMembersByName returns members whose first and last name match,
// optionally ignoring case.
func (s *Postgres) FindMembersByName(ctx context.Context, first, last string, caseSensitive bool) ([]model.Member, error) {
	query := `
		SELECT id, username, first_name, last_name, email
		FROM members
		WHERE lower(first_name) = lower($1) AND lower(last_name) = lower($2)
		ORDER BY username
	`
	if caseSensitive {
		query = `
			SELECT id, username, first_name, last_name, email
			FROM members
			WHERE first_name = $1 AND last_name = $2
			ORDER BY username
		`
	}
	rows, err := s.db.QueryContext(ctx, query, first, last)
	if err != nil {
		return nil, fmt.Errorf("query members by name: %w", err)
	}
	defer rows.Close()

	var out []model.Member
	for rows.Next() {
		var m model.Member
		if err := rows.Scan(&m.ID, &m.Username, &m.FirstName, &m.LastName, &m.Email); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// FindMemberByUsername returns the member with the given username.
func (s *Postgres) FindMemberByUsername(ctx context.Context, username string) (model.Member, error) {
	return s.findMember(ctx, `WHERE username = $1`, username)
}

// FindMember returns the member with the given ID.
func (s *Postgres) FindMember(ctx context.Context, id uuid.UUID) (model.Member, error) {
	return s.findMember(ctx, `WHERE id = $1`, id)
}

func (s *Postgres) findMember(ctx context.Context, where string, arg any) (model.Member, error) {
	var m model.Member
	err := s.db.QueryRowContext(ctx, `SELECT id, username, first_name, last_name, email FROM members `+where, arg).
		Scan(&m.ID, &m.Username, &m.FirstName, &m.LastName, &m.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Member{}, fmt.Errorf("member %v: %w", arg, ErrNotFound)
	}
	if err != nil {
		return model.Member{}, fmt.Errorf("query member %v: %w", arg, err)
	}
	return m, nil
}

// PaymentExists reports whether the member already has a payment of amount
// on date.
func (s *Postgres) PaymentExists(ctx context.Context, memberID uuid.UUID, date time.Time, amount decimal.Decimal) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM payments
			WHERE member_id = $1 AND date = $2 AND amount = $3
		)
	`, memberID, day(date), amount).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query payment exists: %w", err)
	}
	return exists, nil
}

// CreatePayment inserts p, assigning an ID if it has none. A method without
// an ID is looked up by name.
func (s *Postgres) CreatePayment(ctx context.Context, p *model.Payment) error {
	if p.Method.ID == 0 {
		pm, err := s.FindPaymentMethodByName(ctx, p.Method.Name)
		if err != nil {
			return err
		}
		p.Method = pm
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.Date = day(p.Date)

	member := uuid.NullUUID{UUID: p.MemberID, Valid: p.MemberID != uuid.Nil}
	file := sql.NullString{String: p.OriginalFile, Valid: p.OriginalFile != ""}
	lineNo := sql.NullInt64{Int64: int64(p.OriginalLineNo), Valid: p.OriginalLineNo != 0}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payments (id, member_id, amount, date, method_id, comment, original_file, original_line, original_lineno)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, p.ID, member, p.Amount, p.Date, p.Method.ID, p.Comment, file, p.OriginalLine, lineNo)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// AddMember inserts a member. Used to seed databases.
func (s *Postgres) AddMember(ctx context.Context, m model.Member) (model.Member, error) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO members (id, username, first_name, last_name, email)
		VALUES ($1, $2, $3, $4, $5)
	`, m.ID, m.Username, m.FirstName, m.LastName, m.Email)
	if err != nil {
		return model.Member{}, fmt.Errorf("insert member: %w", err)
	}
	return m, nil
}

// ImportRegistry loads a file registry into the database, keeping the
// registry's IDs. Used to move a project from files to Postgres.
func (s *Postgres) ImportRegistry(ctx context.Context, reg *Registry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, pm := range reg.PaymentMethods {
		if _, err := tx.ExecContext(ctx, `INSERT INTO payment_methods (id, name) VALUES ($1, $2)`, pm.ID, pm.Name); err != nil {
			return fmt.Errorf("insert payment method %q: %w", pm.Name, err)
		}
	}
	for _, k := range reg.Kinds {
		if _, err := tx.ExecContext(ctx, `INSERT INTO membership_kinds (id, name, fee_category) VALUES ($1, $2, $3)`,
			k.ID, k.Name, string(k.FeeCategory)); err != nil {
			return fmt.Errorf("insert membership kind %q: %w", k.Name, err)
		}
	}
	for _, f := range reg.Fees {
		if _, err := tx.ExecContext(ctx, `INSERT INTO fee_records (kind_id, start_date, end_date, amount) VALUES ($1, $2, $3, $4)`,
			f.KindID, day(f.Start), nullDate(f.End), f.Amount); err != nil {
			return fmt.Errorf("insert fee record: %w", err)
		}
	}
	for _, m := range reg.Members {
		if _, err := tx.ExecContext(ctx, `INSERT INTO members (id, username, first_name, last_name, email) VALUES ($1, $2, $3, $4, $5)`,
			m.ID, m.Username, m.FirstName, m.LastName, m.Email); err != nil {
			return fmt.Errorf("insert member %q: %w", m.Username, err)
		}
	}
	for _, p := range reg.Periods {
		if _, err := tx.ExecContext(ctx, `INSERT INTO membership_periods (member_id, kind_id, begin_date, end_date) VALUES ($1, $2, $3, $4)`,
			p.MemberID, p.KindID, day(p.Begin), nullDate(p.End)); err != nil {
			return fmt.Errorf("insert membership period: %w", err)
		}
	}

	for _, info := range reg.PaymentInfo {
		if err := insertPaymentInfo(ctx, tx, info); err != nil {
			return err
		}
	}

	// Explicit IDs leave the sequences behind.
	for _, table := range []string{"payment_methods", "membership_kinds"} {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(
			`SELECT setval(pg_get_serial_sequence('%s', 'id'), COALESCE((SELECT MAX(id) FROM %s), 1))`, table, table)); err != nil {
			return fmt.Errorf("reset %s sequence: %w", table, err)
		}
	}

	return tx.Commit()
}

// FindPaymentInfos returns the bank details of every member that has some.
func (s *Postgres) FindPaymentInfos(ctx context.Context) ([]model.PaymentInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT member_id, collection_allowed, collection_mode, collection_months, account_owner,
		       bank_name, iban, bic, mandate_reference, date_of_signing
		FROM payment_info
		ORDER BY member_id
	`)
	if err != nil {
		return nil, fmt.Errorf("query payment info: %w", err)
	}
	defer rows.Close()

	var out []model.PaymentInfo
	for rows.Next() {
		var (
			p      model.PaymentInfo
			signed sql.NullTime
		)
		err := rows.Scan(&p.MemberID, &p.CollectionAllowed, &p.CollectionMode.Name, &p.CollectionMode.NumMonths,
			&p.AccountOwner, &p.BankName, &p.IBAN, &p.BIC, &p.MandateReference, &signed)
		if err != nil {
			return nil, fmt.Errorf("scan payment info: %w", err)
		}
		if signed.Valid {
			p.DateOfSigning = day(signed.Time)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func insertPaymentInfo(ctx context.Context, tx *sql.Tx, p model.PaymentInfo) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("payment info for %s: %w", p.MemberID, err)
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO payment_info (member_id, collection_allowed, collection_mode, collection_months, account_owner,
		                          bank_name, iban, bic, mandate_reference, date_of_signing)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, p.MemberID, p.CollectionAllowed, p.CollectionMode.Name, p.CollectionMode.NumMonths, p.AccountOwner,
		p.BankName, p.IBAN, p.BIC, p.MandateReference, nullDate(p.DateOfSigning))
	if err != nil {
		return fmt.Errorf("insert payment info for %s: %w", p.MemberID, err)
	}
	return nil
}

func nullDate(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: day(t), Valid: true}
}
