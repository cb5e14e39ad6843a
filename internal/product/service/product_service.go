package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ridloal/e-commerce-go-checkout/internal/platform/logger"
	"github.com/ridloal/e-commerce-go-checkout/internal/product/domain"
	"github.com/ridloal/e-commerce-go-checkout/internal/product/repository"
)

var ErrInvalidProduct = errors.New("invalid product")

type ProductService interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProductDetails(ctx context.Context, productID string) (*domain.Product, error)
	CreateProduct(ctx context.Context, req domain.CreateProductRequest) (*domain.Product, error)
}

type productServiceImpl struct {
	repo repository.ProductRepository
}

func NewProductService(repo repository.ProductRepository) ProductService {
	return &productServiceImpl{repo: repo}
}

func (s *productServiceImpl) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *productServiceImpl) GetProductDetails(ctx context.Context, productID string) (*domain.Product, error) {
	if strings.TrimSpace(productID) == "" {
		return nil, repository.ErrProductNotFound
	}
	return s.repo.GetProductByID(ctx, productID)
}

// cleanList membuang entri kosong dan duplikat, urutan dipertahankan.
func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func (s *productServiceImpl) CreateProduct(ctx context.Context, req domain.CreateProductRequest) (*domain.Product, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidProduct)
	}
	if !req.Price.IsPositive() {
		return nil, fmt.Errorf("%w: price must be positive", ErrInvalidProduct)
	}

	product := &domain.Product{
		ID:          uuid.NewString(),
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Price:       req.Price.Round(2),
		Images:      cleanList(req.Images),
		Sizes:       cleanList(req.Sizes),
		Category:    strings.TrimSpace(req.Category),
		Bestseller:  req.Bestseller,
	}
	if err := s.repo.CreateProduct(ctx, product); err != nil {
		return nil, fmt.Errorf("could not save product: %w", err)
	}
	logger.Info("CreateProduct: product created", logger.Fields{"product_id": product.ID})
	return product, nil
}
