package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ridloal/e-commerce-go-checkout/internal/order/domain"
)

type notificationKey struct {
	orderID, ref, status string
}

// memoryOrderRepository dipakai untuk test dan ORDER_STORE=memory. Semua mutasi di bawah satu mutex,
// sehingga CAS-nya setara dengan UPDATE ... WHERE payment_state = $from.
type memoryOrderRepository struct {
	mu            sync.Mutex
	orders        map[string]domain.Order
	notifications []domain.PaymentNotification
	seen          map[notificationKey]bool
	now           func() time.Time
}

func NewMemoryOrderRepository() OrderRepository {
	return &memoryOrderRepository{
		orders: make(map[string]domain.Order),
		seen:   make(map[notificationKey]bool),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// cloneOrder memastikan pemanggil tidak bisa mengubah data di store lewat slice/pointer.
func cloneOrder(o domain.Order) domain.Order {
	o.Items = append([]domain.OrderItem(nil), o.Items...)
	if o.GatewayReference != nil {
		ref := *o.GatewayReference
		o.GatewayReference = &ref
	}
	return o
}

func (r *memoryOrderRepository) CreateOrder(_ context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[order.ID]; exists {
		return ErrDuplicateOrder
	}
	now := r.now()
	order.CreatedAt = now
	order.UpdatedAt = now
	if order.PaymentState == "" {
		order.PaymentState = domain.StatePending
	}
	r.orders[order.ID] = cloneOrder(*order)
	return nil
}

func (r *memoryOrderRepository) GetOrderByID(_ context.Context, orderID string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	c := cloneOrder(o)
	return &c, nil
}

func (r *memoryOrderRepository) CompareAndSwapState(_ context.Context, orderID string, from, to domain.PaymentState, gatewayRef *string) (bool, domain.PaymentState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[orderID]
	if !ok {
		return false, "", ErrOrderNotFound
	}
	if o.PaymentState != from {
		return false, o.PaymentState, nil
	}
	o.PaymentState = to
	if gatewayRef != nil {
		ref := *gatewayRef
		o.GatewayReference = &ref
	}
	o.UpdatedAt = r.now()
	r.orders[orderID] = o
	return true, to, nil
}

func (r *memoryOrderRepository) DeleteIfState(_ context.Context, orderID string, state domain.PaymentState) (bool, domain.PaymentState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[orderID]
	if !ok {
		return false, "", ErrOrderNotFound
	}
	if o.PaymentState != state {
		return false, o.PaymentState, nil
	}
	delete(r.orders, orderID)
	return true, state, nil
}

func (r *memoryOrderRepository) SetGatewayReference(_ context.Context, orderID, ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[orderID]
	if !ok || o.PaymentState != domain.StatePending {
		return ErrOrderNotFound
	}
	o.GatewayReference = &ref
	o.UpdatedAt = r.now()
	r.orders[orderID] = o
	return nil
}

func (r *memoryOrderRepository) FillPaidGatewayReference(_ context.Context, orderID, ref string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[orderID]
	if !ok || o.PaymentState != domain.StatePaid || o.GatewayReference != nil {
		return false, nil
	}
	o.GatewayReference = &ref
	o.UpdatedAt = r.now()
	r.orders[orderID] = o
	return true, nil
}

func (r *memoryOrderRepository) collect(match func(domain.Order) bool) []domain.Order {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := []domain.Order{}
	for _, o := range r.orders {
		if match(o) {
			out = append(out, cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (r *memoryOrderRepository) ListOrders(_ context.Context, filter domain.ListOrdersFilter) ([]domain.Order, error) {
	wanted := make(map[domain.PaymentState]bool, len(filter.States))
	for _, s := range filter.States {
		wanted[s] = true
	}
	return r.collect(func(o domain.Order) bool {
		return len(wanted) == 0 || wanted[o.PaymentState]
	}), nil
}

func (r *memoryOrderRepository) ListOrdersByUser(_ context.Context, userID string) ([]domain.Order, error) {
	return r.collect(func(o domain.Order) bool { return o.UserID == userID }), nil
}

func (r *memoryOrderRepository) RecordNotification(_ context.Context, n *domain.PaymentNotification) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := notificationKey{n.OrderID, n.GatewayReference, n.GatewayStatus}
	if r.seen[key] {
		return false, nil
	}
	r.seen[key] = true
	if n.ReceivedAt.IsZero() {
		n.ReceivedAt = r.now()
	}
	n.ID = int64(len(r.notifications) + 1)
	r.notifications = append(r.notifications, *n)
	return true, nil
}
