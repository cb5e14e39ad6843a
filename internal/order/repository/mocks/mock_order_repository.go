package mocks

import (
	"context"

	"github.com/ridloal/e-commerce-go-checkout/internal/order/domain"
	"github.com/stretchr/testify/mock"
)

type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) CreateOrder(ctx context.Context, order *domain.Order) error {
	args := m.Called(ctx, order)
	if order != nil && args.Error(0) == nil && order.PaymentState == "" {
		order.PaymentState = domain.StatePending
	}
	return args.Error(0)
}

func (m *MockOrderRepository) GetOrderByID(ctx context.Context, orderID string) (*domain.Order, error) {
	args := m.Called(ctx, orderID)
	if o := args.Get(0); o != nil {
		return o.(*domain.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockOrderRepository) CompareAndSwapState(ctx context.Context, orderID string, from, to domain.PaymentState, gatewayRef *string) (bool, domain.PaymentState, error) {
	args := m.Called(ctx, orderID, from, to, gatewayRef)
	return args.Bool(0), args.Get(1).(domain.PaymentState), args.Error(2)
}

func (m *MockOrderRepository) DeleteIfState(ctx context.Context, orderID string, state domain.PaymentState) (bool, domain.PaymentState, error) {
	args := m.Called(ctx, orderID, state)
	return args.Bool(0), args.Get(1).(domain.PaymentState), args.Error(2)
}

func (m *MockOrderRepository) SetGatewayReference(ctx context.Context, orderID, ref string) error {
	args := m.Called(ctx, orderID, ref)
	return args.Error(0)
}

func (m *MockOrderRepository) FillPaidGatewayReference(ctx context.Context, orderID, ref string) (bool, error) {
	args := m.Called(ctx, orderID, ref)
	return args.Bool(0), args.Error(1)
}

func (m *MockOrderRepository) ListOrders(ctx context.Context, filter domain.ListOrdersFilter) ([]domain.Order, error) {
	args := m.Called(ctx, filter)
	if o := args.Get(0); o != nil {
		return o.([]domain.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockOrderRepository) ListOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	args := m.Called(ctx, userID)
	if o := args.Get(0); o != nil {
		return o.([]domain.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockOrderRepository) RecordNotification(ctx context.Context, n *domain.PaymentNotification) (bool, error) {
	args := m.Called(ctx, n)
	return args.Bool(0), args.Error(1)
}
