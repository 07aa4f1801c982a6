package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dues-dev/dues/internal/model"
)

// Memory is an in-process store. It is safe for concurrent use.
type Memory struct {
	mu       sync.RWMutex
	members  []model.Member
	kinds    []model.MembershipKind
	fees     []model.FeeRecord
	periods  []model.MembershipPeriod
	methods  []model.PaymentMethod
	payments []model.Payment
	bank     []model.PaymentInfo
}

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// AddMember stores a member, assigning an ID if it has none.
func (m *Memory) AddMember(mem model.Member) model.Member {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mem.ID == uuid.Nil {
		mem.ID = uuid.New()
	}
	m.members = append(m.members, mem)
	return mem
}

// AddKind stores a membership kind, assigning the next ID if it has none.
func (m *Memory) AddKind(k model.MembershipKind) model.MembershipKind {
	m.mu.Lock()
	defer m.mu.Unlock()
	if k.ID == 0 {
		k.ID = int64(len(m.kinds) + 1)
	}
	m.kinds = append(m.kinds, k)
	return k
}

// AddFee appends a fee record. Order matters: the resolver takes the first match.
func (m *Memory) AddFee(f model.FeeRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f.Start = day(f.Start)
	if !f.End.IsZero() {
		f.End = day(f.End)
	}
	m.fees = append(m.fees, f)
}

// AddPeriod stores a membership period, assigning the next ID if it has none.
func (m *Memory) AddPeriod(p model.MembershipPeriod) model.MembershipPeriod {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == 0 {
		p.ID = int64(len(m.periods) + 1)
	}
	p.Begin = day(p.Begin)
	if !p.End.IsZero() {
		p.End = day(p.End)
	}
	m.periods = append(m.periods, p)
	return p
}

// AddMethod stores a payment method, assigning the next ID if it has none.
func (m *Memory) AddMethod(pm model.PaymentMethod) model.PaymentMethod {
	m.mu.Lock()
	defer m.mu.Unlock()
	if pm.ID == 0 {
		pm.ID = int64(len(m.methods) + 1)
	}
	m.methods = append(m.methods, pm)
	return pm
}

// FindMembershipPeriods returns a member's periods ordered by begin date.
func (m *Memory) FindMembershipPeriods(_ context.Context, memberID uuid.UUID) ([]model.MembershipPeriod, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.MembershipPeriod
	for _, p := range m.periods {
		if p.MemberID == memberID {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Begin.Before(out[j].Begin) })
	return out, nil
}

// FindAllMembershipPeriods returns every period ordered by begin date.
func (m *Memory) FindAllMembershipPeriods(_ context.Context) ([]model.MembershipPeriod, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := append([]model.MembershipPeriod(nil), m.periods...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Begin.Before(out[j].Begin) })
	return out, nil
}

// FindAllFeeRecords returns the fee schedule in definition order.
func (m *Memory) FindAllFeeRecords(_ context.Context) ([]model.FeeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]model.FeeRecord(nil), m.fees...), nil
}

// FindMembershipKinds returns all membership kinds ordered by ID.
func (m *Memory) FindMembershipKinds(_ context.Context) ([]model.MembershipKind, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := append([]model.MembershipKind(nil), m.kinds...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// FindPayments returns a member's payments ordered by date.
func (m *Memory) FindPayments(_ context.Context, memberID uuid.UUID) ([]model.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Payment
	for _, p := range m.payments {
		if p.MemberID == memberID {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// AllPayments returns every stored payment in insertion order.
func (m *Memory) AllPayments() []model.Payment {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]model.Payment(nil), m.payments...)
}

// FindPaymentMethodByName returns the method with exactly this name.
func (m *Memory) FindPaymentMethodByName(_ context.Context, name string) (model.PaymentMethod, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, pm := range m.methods {
		if pm.Name == name {
			return pm, nil
		}
	}
	return model.PaymentMethod{}, fmt.Errorf("payment method %q: %w", name, ErrNotFound)
}

// FindPaymentMethods returns all payment methods ordered by ID.
func (m *Memory) FindPaymentMethods(_ context.Context) ([]model.PaymentMethod, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := append([]model.PaymentMethod(nil), m.methods...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// FindMembersByName returns members whose first and last name match.
func (m *Memory) FindMembersByName(_ context.Context, first, last string, caseSensitive bool) ([]model.Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	eq := strings.EqualFold
	if caseSensitive {
		eq = func(a, b string) bool { return a == b }
	}
	var out []model.Member
	for _, mem := range m.members {
		if eq(mem.FirstName, first) && eq(mem.LastName, last) {
			out = append(out, mem)
		}
	}
	return out, nil
}

// FindMemberByUsername returns the member with the given username.
func (m *Memory) FindMemberByUsername(_ context.Context, username string) (model.Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, mem := range m.members {
		if mem.Username == username {
			return mem, nil
		}
	}
	return model.Member{}, fmt.Errorf("member %q: %w", username, ErrNotFound)
}

// FindMember returns the member with the given ID.
func (m *Memory) FindMember(_ context.Context, id uuid.UUID) (model.Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, mem := range m.members {
		if mem.ID == id {
			return mem, nil
		}
	}
	return model.Member{}, fmt.Errorf("member %s: %w", id, ErrNotFound)
}

// PaymentExists reports whether the member already has a payment of amount
// on date.
func (m *Memory) PaymentExists(_ context.Context, memberID uuid.UUID, date time.Time, amount decimal.Decimal) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	date = day(date)
	for _, p := range m.payments {
		if p.MemberID == memberID && p.Date.Equal(date) && p.Amount.Equal(amount) {
			return true, nil
		}
	}
	return false, nil
}

// CreatePayment stores p, assigning an ID if it has none.
func (m *Memory) CreatePayment(_ context.Context, p *model.Payment) error {
	if p.Method.Name == "" {
		return fmt.Errorf("payment on %s has no method", p.Date.Format("2006-01-02"))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.Date = day(p.Date)
	m.payments = append(m.payments, *p)
	return nil
}

// AddPaymentInfo stores a member's bank details, replacing earlier ones.
// Details that fail validation are rejected.
func (m *Memory) AddPaymentInfo(info model.PaymentInfo) error {
	if err := info.Validate(); err != nil {
		return fmt.Errorf("payment info for %s: %w", info.MemberID, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.bank {
		if m.bank[i].MemberID == info.MemberID {
			m.bank[i] = info
			return nil
		}
	}
	m.bank = append(m.bank, info)
	return nil
}

// FindPaymentInfos returns the bank details of every member that has some.
func (m *Memory) FindPaymentInfos(_ context.Context) ([]model.PaymentInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]model.PaymentInfo(nil), m.bank...), nil
}
