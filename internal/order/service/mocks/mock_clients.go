package mocks

import (
	"context"

	"github.com/ridloal/e-commerce-go-checkout/internal/order/domain"
	"github.com/stretchr/testify/mock"
)

type MockCatalogClient struct {
	mock.Mock
}

func (m *MockCatalogClient) GetProduct(ctx context.Context, productID string) (*domain.ProductSnapshot, error) {
	args := m.Called(ctx, productID)
	if p := args.Get(0); p != nil {
		return p.(*domain.ProductSnapshot), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockUserClient struct {
	mock.Mock
}

func (m *MockUserClient) ClearCart(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

type MockNotificationGuard struct {
	mock.Mock
}

func (m *MockNotificationGuard) Seen(ctx context.Context, method, id string) (bool, error) {
	args := m.Called(ctx, method, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockNotificationGuard) Remember(ctx context.Context, method, id string) error {
	args := m.Called(ctx, method, id)
	return args.Error(0)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, topic, eventType, key string, payload any) error {
	args := m.Called(ctx, topic, eventType, key, payload)
	return args.Error(0)
}
