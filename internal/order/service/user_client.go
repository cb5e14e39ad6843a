package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ridloal/e-commerce-go-checkout/internal/platform/auth"
)

// UserClient adalah kolaborator pemilik keranjang. ClearCart idempoten.
type UserClient interface {
	ClearCart(ctx context.Context, userID string) error
}

type httpUserClient struct {
	BaseURL       string
	InternalToken string
	HTTPClient    *http.Client
}

func NewHTTPUserClient(baseURL, internalToken string) UserClient {
	return &httpUserClient{
		BaseURL:       strings.TrimRight(baseURL, "/"),
		InternalToken: internalToken,
		HTTPClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func (c *httpUserClient) ClearCart(ctx context.Context, userID string) error {
	reqURL := fmt.Sprintf("%s/internal/users/%s/cart", c.BaseURL, url.PathEscape(userID))

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create clear cart request: %w", err)
	}
	req.Header.Set(auth.InternalTokenHeader, c.InternalToken)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call user service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("user service clear cart returned status %d", resp.StatusCode)
	}
	return nil
}
