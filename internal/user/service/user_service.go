package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/ridloal/e-commerce-go-checkout/internal/platform/auth"
	"github.com/ridloal/e-commerce-go-checkout/internal/platform/config"
	"github.com/ridloal/e-commerce-go-checkout/internal/platform/logger"
	"github.com/ridloal/e-commerce-go-checkout/internal/user/domain"
	"github.com/ridloal/e-commerce-go-checkout/internal/user/repository"
)

var (
	ErrInvalidCredentials = errors.New("invalid email/phone or password")
	ErrUserAlreadyExists  = errors.New("user with this email or phone number already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCartItem    = errors.New("invalid cart item")
)

type UserService interface {
	Register(ctx context.Context, req domain.RegisterRequest) (*domain.User, error)
	Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResponse, error)
	GetCart(ctx context.Context, userID string) (domain.Cart, error)
	AddToCart(ctx context.Context, userID string, req domain.CartItemRequest) (domain.Cart, error)
	UpdateCart(ctx context.Context, userID string, req domain.CartItemRequest) (domain.Cart, error)
	ClearCart(ctx context.Context, userID string) error
}

type userService struct {
	repo repository.UserRepository
	cfg  config.AuthConfig
}

func NewUserService(repo repository.UserRepository, cfg config.AuthConfig) UserService {
	return &userService{repo: repo, cfg: cfg}
}

func (s *userService) roleFor(email string) string {
	for _, admin := range s.cfg.AdminEmails {
		if admin == email {
			return auth.RoleAdmin
		}
	}
	return auth.RoleCustomer
}

func (s *userService) Register(ctx context.Context, req domain.RegisterRequest) (*domain.User, error) {
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.PhoneNumber != nil {
		*req.PhoneNumber = strings.TrimSpace(*req.PhoneNumber)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("Register: failed to hash password", err)
		return nil, fmt.Errorf("could not process registration: %w", err)
	}

	user := &domain.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        req.Email,
		PhoneNumber:  req.PhoneNumber,
		Role:         s.roleFor(req.Email),
		PasswordHash: string(hashedPassword),
	}

	err = s.repo.CreateUser(ctx, user)
	if err != nil {
		if errors.Is(err, repository.ErrUserConflict) {
			return nil, ErrUserAlreadyExists
		}
		logger.Error("Register: failed to create user in repo", err)
		return nil, fmt.Errorf("could not save user: %w", err)
	}

	user.PasswordHash = "" // Hapus sebelum dikembalikan
	return user, nil
}

func (s *userService) Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResponse, error) {
	req.Identifier = strings.TrimSpace(req.Identifier)

	user, err := s.repo.GetUserByIdentifier(ctx, req.Identifier)
	if err != nil {
		if !errors.Is(err, repository.ErrUserNotFound) {
			logger.Error("Login: failed to get user by identifier", err)
		}
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	role := user.Role
	if role == "" {
		role = auth.RoleCustomer
	}
	tokenString, err := auth.GenerateToken(s.cfg.JWTSecret, user.ID, user.Email, role, s.cfg.TokenTTL)
	if err != nil {
		logger.Error("Login: failed to sign token", err)
		return nil, fmt.Errorf("could not generate token: %w", err)
	}

	user.PasswordHash = "" // Hapus sebelum dikembalikan
	return &domain.LoginResponse{
		User:  *user,
		Token: tokenString,
	}, nil
}

func (s *userService) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	cart, err := s.repo.GetCart(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return cart, nil
}

func (s *userService) mutateCart(ctx context.Context, userID string, req domain.CartItemRequest, apply func(domain.Cart)) (domain.Cart, error) {
	if strings.TrimSpace(req.ProductID) == "" {
		return nil, fmt.Errorf("%w: product_id is required", ErrInvalidCartItem)
	}
	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	apply(cart)
	if err := s.repo.SaveCart(ctx, userID, cart); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return cart, nil
}

func (s *userService) AddToCart(ctx context.Context, userID string, req domain.CartItemRequest) (domain.Cart, error) {
	if req.Quantity <= 0 {
		req.Quantity = 1
	}
	return s.mutateCart(ctx, userID, req, func(c domain.Cart) { c.Add(req.ProductID, req.Size, req.Quantity) })
}

func (s *userService) UpdateCart(ctx context.Context, userID string, req domain.CartItemRequest) (domain.Cart, error) {
	if req.Quantity < 0 {
		return nil, fmt.Errorf("%w: quantity must not be negative", ErrInvalidCartItem)
	}
	return s.mutateCart(ctx, userID, req, func(c domain.Cart) { c.Set(req.ProductID, req.Size, req.Quantity) })
}

// ClearCart idempoten: keranjang yang sudah kosong tetap sukses.
func (s *userService) ClearCart(ctx context.Context, userID string) error {
	if err := s.repo.SaveCart(ctx, userID, domain.Cart{}); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		logger.Error("ClearCart: failed to save cart", err, logger.Fields{"user_id": userID})
		return err
	}
	return nil
}
