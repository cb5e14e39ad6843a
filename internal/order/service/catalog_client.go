package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ridloal/e-commerce-go-checkout/internal/order/domain"
	"github.com/ridloal/e-commerce-go-checkout/internal/platform/logger"
)

var ErrProductNotFound = errors.New("product not found in catalog")

// CatalogClient mengambil harga dan nama produk terbaru dari product service.
type CatalogClient interface {
	GetProduct(ctx context.Context, productID string) (*domain.ProductSnapshot, error)
}

type httpCatalogClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewHTTPCatalogClient(baseURL string) CatalogClient {
	return &httpCatalogClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func (c *httpCatalogClient) GetProduct(ctx context.Context, productID string) (*domain.ProductSnapshot, error) {
	reqURL := fmt.Sprintf("%s/api/v1/products/%s", c.BaseURL, url.PathEscape(productID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create product request: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		logger.Error("CatalogClient.GetProduct: HTTPClient.Do failed", err, logger.Fields{"product_id": productID})
		return nil, fmt.Errorf("failed to call product service: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("product service returned status %d for product %s", resp.StatusCode, productID)
	}

	var p domain.ProductSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		logger.Error("CatalogClient.GetProduct: decode failed", err, logger.Fields{"product_id": productID})
		return nil, fmt.Errorf("failed to decode product %s: %w", productID, err)
	}
	return &p, nil
}
