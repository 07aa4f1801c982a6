package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/dues-dev/dues/internal/model"
)

const (
	// RegistryFile holds members, kinds, fees, periods and payment methods.
	RegistryFile = "registry.yaml"
	// PaymentsFile is the append-only payment journal.
	PaymentsFile = "payments.csv"
)

// Registry is the YAML document describing everything except payments.
type Registry struct {
	PaymentMethods []model.PaymentMethod    `yaml:"payment_methods"`
	Kinds          []model.MembershipKind   `yaml:"membership_kinds"`
	Fees           []model.FeeRecord        `yaml:"fees"`
	Members        []model.Member           `yaml:"members"`
	Periods        []model.MembershipPeriod `yaml:"periods"`
	PaymentInfo    []model.PaymentInfo      `yaml:"payment_info,omitempty"`
}

// DefaultRegistry returns a registry with the standard payment methods and
// a single regular membership kind without fees.
func DefaultRegistry() *Registry {
	return &Registry{
		PaymentMethods: []model.PaymentMethod{
			{ID: 1, Name: model.MethodBankCollection},
			{ID: 2, Name: model.MethodCash},
			{ID: 3, Name: model.MethodTransfer},
		},
		Kinds: []model.MembershipKind{
			{ID: 1, Name: "regular", FeeCategory: model.FeeCategoryStandard},
		},
	}
}

// LoadRegistry reads a registry.yaml file.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading registry: %w", err)
	}
	var reg Registry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parsing registry: %w", err)
	}
	return &reg, nil
}

// SaveRegistry writes a registry.yaml file.
func SaveRegistry(path string, reg *Registry) error {
	data, err := yaml.Marshal(reg)
	if err != nil {
		return fmt.Errorf("marshaling registry: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing registry: %w", err)
	}
	return nil
}

// Files is a Memory store loaded from a project directory. New payments are
// appended to payments.csv as they are created.
type Files struct {
	*Memory
	root string
}

// OpenFiles loads <root>/registry.yaml and <root>/payments.csv.
func OpenFiles(root string) (*Files, error) {
	reg, err := LoadRegistry(filepath.Join(root, RegistryFile))
	if err != nil {
		return nil, err
	}

	mem := NewMemory()
	for _, pm := range reg.PaymentMethods {
		mem.AddMethod(pm)
	}
	for _, k := range reg.Kinds {
		mem.AddKind(k)
	}
	for _, f := range reg.Fees {
		mem.AddFee(f)
	}
	for _, m := range reg.Members {
		mem.AddMember(m)
	}
	for _, p := range reg.Periods {
		mem.AddPeriod(p)
	}
	for _, info := range reg.PaymentInfo {
		if err := mem.AddPaymentInfo(info); err != nil {
			return nil, err
		}
	}

	path := filepath.Join(root, PaymentsFile)
	f, err := os.Open(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("opening payments %s: %w", path, err)
	default:
		defer f.Close()
		lookup := func(name string) (model.PaymentMethod, bool) {
			pm, err := mem.FindPaymentMethodByName(context.Background(), name)
			return pm, err == nil
		}
		payments, err := ReadPayments(f, lookup)
		if err != nil {
			return nil, fmt.Errorf("reading payments %s: %w", path, err)
		}
		mem.payments = append(mem.payments, payments...)
	}

	return &Files{Memory: mem, root: root}, nil
}

// CreatePayment appends p to payments.csv, creating the file and header if
// needed, and only then adds it to memory. A payment that fails to reach
// the file is not visible to later lookups.
func (s *Files) CreatePayment(ctx context.Context, p *model.Payment) error {
	if p.Method.Name == "" {
		return fmt.Errorf("payment on %s has no method", p.Date.Format("2006-01-02"))
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.Date = day(p.Date)

	path := filepath.Join(s.root, PaymentsFile)
	isNew := false
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		isNew = true
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening payments: %w", err)
	}
	defer f.Close()

	write := AppendPayments
	if isNew {
		write = WritePayments
	}
	if err := write(f, []model.Payment{*p}); err != nil {
		return fmt.Errorf("appending payment: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing payments: %w", err)
	}

	return s.Memory.CreatePayment(ctx, p)
}
