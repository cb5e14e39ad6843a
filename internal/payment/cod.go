package payment

import (
	"context"
	"net/url"

	"github.com/ridloal/e-commerce-go-checkout/internal/order/domain"
)

// CODAdapter: pembayaran diterima fisik saat pengiriman, tidak ada callback elektronik.
type CODAdapter struct{}

func NewCODAdapter() *CODAdapter { return &CODAdapter{} }

func (a *CODAdapter) Method() domain.PaymentMethod { return domain.PaymentMethodCOD }

func (a *CODAdapter) CheckConfig() error { return nil }

func (a *CODAdapter) Initiate(_ context.Context, _ *domain.Order) (*Target, error) {
	return &Target{Kind: TargetImmediate, Accepted: true}, nil
}

func (a *CODAdapter) ParseCallback(Channel, url.Values) (*Callback, error) {
	return nil, ErrCallbackUnsupported
}
