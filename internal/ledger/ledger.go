// Package ledger derives a member's dues ledger from membership periods,
// the fee schedule and recorded payments. Nothing is cached: every call
// reads a fresh snapshot from the store.
package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dues-dev/dues/internal/fees"
	"github.com/dues-dev/dues/internal/model"
	"github.com/dues-dev/dues/internal/period"
)

// Reader is the part of the store the ledger needs.
type Reader interface {
	FindMembershipPeriods(ctx context.Context, memberID uuid.UUID) ([]model.MembershipPeriod, error)
	FindAllFeeRecords(ctx context.Context) ([]model.FeeRecord, error)
	FindPayments(ctx context.Context, memberID uuid.UUID) ([]model.Payment, error)
}

// Obligation is the fee owed for one billed month of a period.
type Obligation struct {
	Month  time.Time
	KindID int64
	Amount int64
}

// Service computes ledgers and balances.
type Service struct {
	store  Reader
	now    func() time.Time
	until  time.Time
	tracer trace.Tracer
}

// NewService creates a ledger Service. now supplies "today" for open
// periods; nil means time.Now.
func NewService(store Reader, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:  store,
		now:    now,
		tracer: otel.Tracer("github.com/dues-dev/dues/internal/ledger"),
	}
}

// Until returns a copy of s that ignores payments dated after day. The
// zero day means no cutoff.
func (s *Service) Until(day time.Time) *Service {
	c := *s
	c.until = day
	if !day.IsZero() {
		c.until = period.Day(day)
	}
	return &c
}

// payments loads the member's payments, dropping those after the cutoff.
func (s *Service) payments(ctx context.Context, memberID uuid.UUID) ([]model.Payment, error) {
	payments, err := s.store.FindPayments(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("loading payments: %w", err)
	}
	if s.until.IsZero() {
		return payments, nil
	}
	kept := payments[:0:0]
	for _, p := range payments {
		if !period.Day(p.Date).After(s.until) {
			kept = append(kept, p)
		}
	}
	return kept, nil
}

// Obligations returns every billed month with a non-zero fee, in period
// order. A month with no fee record fails the whole computation with a
// *fees.IntegrityError.
func (s *Service) Obligations(ctx context.Context, memberID uuid.UUID) ([]Obligation, error) {
	periods, err := s.store.FindMembershipPeriods(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("loading membership periods: %w", err)
	}
	records, err := s.store.FindAllFeeRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading fee records: %w", err)
	}
	return obligations(periods, fees.Schedule(records), s.now())
}

func obligations(periods []model.MembershipPeriod, schedule fees.Schedule, today time.Time) ([]Obligation, error) {
	var out []Obligation
	for _, p := range periods {
		for _, month := range period.Months(p, today) {
			fee, err := schedule.Resolve(p.KindID, month)
			if err != nil {
				return nil, err
			}
			if fee.Amount > 0 {
				out = append(out, Obligation{Month: month, KindID: p.KindID, Amount: fee.Amount})
			}
		}
	}
	return out, nil
}

// Ledger returns the member's movements, most recent first. Each movement
// carries the balance (payments minus fees) after it was applied in
// chronological order.
func (s *Service) Ledger(ctx context.Context, memberID uuid.UUID) ([]model.Movement, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.compute",
		trace.WithAttributes(attribute.String("member.id", memberID.String())),
	)
	defer span.End()

	obs, err := s.Obligations(ctx, memberID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	payments, err := s.payments(ctx, memberID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	movements := Build(obs, payments)
	span.SetAttributes(
		attribute.Int("ledger.obligations", len(obs)),
		attribute.Int("ledger.payments", len(payments)),
	)
	return movements, nil
}

// Build merges obligations and payments into a ledger, most recent first.
// Fees are listed before payments of the same day.
func Build(obs []Obligation, payments []model.Payment) []model.Movement {
	movements := make([]model.Movement, 0, len(obs)+len(payments))
	for _, o := range obs {
		movements = append(movements, model.Movement{
			Date:   o.Month,
			Amount: decimal.NewFromInt(o.Amount).Neg(),
			Kind:   model.MovementKindFee,
		})
	}
	for _, p := range payments {
		movements = append(movements, model.Movement{
			Date:   period.Day(p.Date),
			Amount: p.Amount,
			Kind:   p.Method.Name,
		})
	}

	sort.SliceStable(movements, func(i, j int) bool {
		return movements[i].Date.Before(movements[j].Date)
	})

	balance := decimal.Zero
	for i := range movements {
		balance = balance.Add(movements[i].Amount)
		movements[i].Balance = balance
	}

	for i, j := 0, len(movements)-1; i < j; i, j = i+1, j-1 {
		movements[i], movements[j] = movements[j], movements[i]
	}
	return movements
}

// Balance returns payments minus fees. Negative means the member owes money.
func (s *Service) Balance(ctx context.Context, memberID uuid.UUID) (decimal.Decimal, error) {
	movements, err := s.Ledger(ctx, memberID)
	if err != nil {
		return decimal.Zero, err
	}
	if len(movements) == 0 {
		return decimal.Zero, nil
	}
	return movements[0].Balance, nil
}

// Debt returns fees minus payments: what the member still owes.
func (s *Service) Debt(ctx context.Context, memberID uuid.UUID) (decimal.Decimal, error) {
	balance, err := s.Balance(ctx, memberID)
	if err != nil {
		return decimal.Zero, err
	}
	return balance.Neg(), nil
}

// TotalPayments sums every payment recorded for the member, up to the
// cutoff if one is set.
func (s *Service) TotalPayments(ctx context.Context, memberID uuid.UUID) (decimal.Decimal, error) {
	payments, err := s.payments(ctx, memberID)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(p.Amount)
	}
	return total, nil
}

// DebtForMonth returns the fee due for the month containing day, taken
// from the first period (by begin date) active on that day. Zero if the
// member was not active.
func (s *Service) DebtForMonth(ctx context.Context, memberID uuid.UUID, day time.Time) (decimal.Decimal, error) {
	periods, err := s.store.FindMembershipPeriods(ctx, memberID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("loading membership periods: %w", err)
	}
	day = period.Day(day)

	for _, p := range periods {
		if !period.ActiveOn(p, day) {
			continue
		}
		records, err := s.store.FindAllFeeRecords(ctx)
		if err != nil {
			return decimal.Zero, fmt.Errorf("loading fee records: %w", err)
		}
		fee, err := fees.Schedule(records).Resolve(p.KindID, day)
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromInt(fee.Amount), nil
	}
	return decimal.Zero, nil
}

// DebtThisMonth is DebtForMonth for today.
func (s *Service) DebtThisMonth(ctx context.Context, memberID uuid.UUID) (decimal.Decimal, error) {
	return s.DebtForMonth(ctx, memberID, s.now())
}

// FirstJoined returns the begin date of the member's earliest period.
// ok is false if the member never had one.
func (s *Service) FirstJoined(ctx context.Context, memberID uuid.UUID) (first time.Time, ok bool, err error) {
	periods, err := s.store.FindMembershipPeriods(ctx, memberID)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("loading membership periods: %w", err)
	}
	for _, p := range periods {
		if !ok || p.Begin.Before(first) {
			first, ok = p.Begin, true
		}
	}
	return first, ok, nil
}

// CurrentPeriod returns the open period with the latest begin date.
func (s *Service) CurrentPeriod(ctx context.Context, memberID uuid.UUID) (model.MembershipPeriod, bool, error) {
	periods, err := s.store.FindMembershipPeriods(ctx, memberID)
	if err != nil {
		return model.MembershipPeriod{}, false, fmt.Errorf("loading membership periods: %w", err)
	}
	var cur model.MembershipPeriod
	found := false
	for _, p := range periods {
		if !p.IsOpen() {
			continue
		}
		if !found || p.Begin.After(cur.Begin) {
			cur, found = p, true
		}
	}
	return cur, found, nil
}
