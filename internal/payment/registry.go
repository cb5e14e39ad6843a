package payment

import (
	"fmt"
	"sort"

	"github.com/ridloal/e-commerce-go-checkout/internal/order/domain"
)

// Registry memetakan metode pembayaran ke adapter-nya. Dibangun sekali di main, read-only setelahnya.
type Registry struct {
	adapters map[domain.PaymentMethod]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[domain.PaymentMethod]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Method()] = a
	}
	return r
}

func (r *Registry) For(method domain.PaymentMethod) (Adapter, error) {
	a, ok := r.adapters[method]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMethod, method)
	}
	return a, nil
}

// Methods mengembalikan metode yang terdaftar, terurut.
func (r *Registry) Methods() []domain.PaymentMethod {
	out := make([]domain.PaymentMethod, 0, len(r.adapters))
	for m := range r.adapters {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
