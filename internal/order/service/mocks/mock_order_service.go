package mocks

import (
	"context"
	"net/url"

	"github.com/ridloal/e-commerce-go-checkout/internal/order/domain"
	"github.com/ridloal/e-commerce-go-checkout/internal/payment"
	"github.com/stretchr/testify/mock"
)

type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) PlaceOrder(ctx context.Context, req domain.PlaceOrderRequest) (*domain.PlaceOrderResponse, error) {
	args := m.Called(ctx, req)
	if r := args.Get(0); r != nil {
		return r.(*domain.PlaceOrderResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockOrderService) CreateOrder(ctx context.Context, req domain.PlaceOrderRequest) (*domain.Order, error) {
	args := m.Called(ctx, req)
	if o := args.Get(0); o != nil {
		return o.(*domain.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockOrderService) InitiatePayment(ctx context.Context, order *domain.Order) (*payment.Target, error) {
	args := m.Called(ctx, order)
	if t := args.Get(0); t != nil {
		return t.(*payment.Target), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockOrderService) VerifyPayment(ctx context.Context, userID string, params url.Values) (*domain.VerificationResult, error) {
	args := m.Called(ctx, userID, params)
	if r := args.Get(0); r != nil {
		return r.(*domain.VerificationResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockOrderService) ConfirmVerification(ctx context.Context, orderID, userID string, success bool) (*domain.VerificationResult, error) {
	args := m.Called(ctx, orderID, userID, success)
	if r := args.Get(0); r != nil {
		return r.(*domain.VerificationResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockOrderService) ApplyNotification(ctx context.Context, method domain.PaymentMethod, payload url.Values) (*domain.NotificationResult, error) {
	args := m.Called(ctx, method, payload)
	if r := args.Get(0); r != nil {
		return r.(*domain.NotificationResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockOrderService) ListOrders(ctx context.Context, filter domain.ListOrdersFilter) ([]domain.Order, error) {
	args := m.Called(ctx, filter)
	if o := args.Get(0); o != nil {
		return o.([]domain.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockOrderService) ListUserOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	args := m.Called(ctx, userID)
	if o := args.Get(0); o != nil {
		return o.([]domain.Order), args.Error(1)
	}
	return nil, args.Error(1)
}
