package importer

import (
	"context"
	"errors"

	"github.com/dues-dev/dues/internal/model"
	"github.com/dues-dev/dues/internal/store"
)

var errDiskFull = errors.New("disk full")

// failAfter lets n payments through, then fails every CreatePayment.
type failAfter struct {
	*store.Memory
	n int
}

func (f *failAfter) CreatePayment(ctx context.Context, p *model.Payment) error {
	if f.n <= 0 {
		return errDiskFull
	}
	f.n--
	return f.Memory.CreatePayment(ctx, p)
}

// noMethods is a store without payment methods.
type noMethods struct {
	*store.Memory
}

func (noMethods) FindPaymentMethodByName(_ context.Context, name string) (model.PaymentMethod, error) {
	return model.PaymentMethod{}, store.ErrNotFound
}

func (noMethods) FindPaymentMethods(context.Context) ([]model.PaymentMethod, error) {
	return nil, nil
}
