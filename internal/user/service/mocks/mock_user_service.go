package mocks

import (
	"context"

	"github.com/ridloal/e-commerce-go-checkout/internal/user/domain"
	"github.com/stretchr/testify/mock"
)

type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) Register(ctx context.Context, req domain.RegisterRequest) (*domain.User, error) {
	args := m.Called(ctx, req)
	if u := args.Get(0); u != nil {
		return u.(*domain.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserService) Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResponse, error) {
	args := m.Called(ctx, req)
	if r := args.Get(0); r != nil {
		return r.(*domain.LoginResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserService) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	args := m.Called(ctx, userID)
	if c := args.Get(0); c != nil {
		return c.(domain.Cart), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserService) AddToCart(ctx context.Context, userID string, req domain.CartItemRequest) (domain.Cart, error) {
	args := m.Called(ctx, userID, req)
	if c := args.Get(0); c != nil {
		return c.(domain.Cart), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserService) UpdateCart(ctx context.Context, userID string, req domain.CartItemRequest) (domain.Cart, error) {
	args := m.Called(ctx, userID, req)
	if c := args.Get(0); c != nil {
		return c.(domain.Cart), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserService) ClearCart(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}
