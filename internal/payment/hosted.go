package payment

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"

	"github.com/ridloal/e-commerce-go-checkout/internal/order/domain"
	"github.com/ridloal/e-commerce-go-checkout/internal/platform/config"
	"github.com/ridloal/e-commerce-go-checkout/internal/platform/logger"
)

const deliveryLineItemName = "Delivery Charges"

var minorUnits = decimal.NewFromInt(100)

// CheckoutSessionCreator dipenuhi oleh client.API.CheckoutSessions dari stripe-go.
type CheckoutSessionCreator interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type HostedRedirectAdapter struct {
	sessions    CheckoutSessionCreator
	secretKey   string
	frontendURL string
	currency    string
}

func NewHostedRedirectAdapter(sessions CheckoutSessionCreator, cfg config.PaymentConfig) *HostedRedirectAdapter {
	return &HostedRedirectAdapter{
		sessions:    sessions,
		secretKey:   cfg.Stripe.SecretKey,
		frontendURL: strings.TrimRight(cfg.FrontendURL, "/"),
		currency:    strings.ToLower(cfg.Currency),
	}
}

func (a *HostedRedirectAdapter) Method() domain.PaymentMethod {
	return domain.PaymentMethodHostedRedirect
}

func (a *HostedRedirectAdapter) CheckConfig() error {
	if a.sessions == nil || a.secretKey == "" {
		return fmt.Errorf("%w: stripe secret key missing", ErrNotConfigured)
	}
	if a.frontendURL == "" {
		return fmt.Errorf("%w: frontend url missing", ErrNotConfigured)
	}
	return nil
}

func (a *HostedRedirectAdapter) returnURL(orderID string, success bool) string {
	return fmt.Sprintf("%s/verify?success=%t&orderId=%s&payment_method=%s",
		a.frontendURL, success, url.QueryEscape(orderID), domain.PaymentMethodHostedRedirect)
}

func toMinorUnits(d decimal.Decimal) int64 {
	return d.Mul(minorUnits).Round(0).IntPart()
}

func (a *HostedRedirectAdapter) sessionParams(order *domain.Order) *stripe.CheckoutSessionParams {
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(order.Items)+1)
	for _, item := range order.Items {
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(a.currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Name),
				},
				UnitAmount: stripe.Int64(toMinorUnits(item.Price)),
			},
			Quantity: stripe.Int64(int64(item.Quantity)),
		})
	}
	lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
		PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency: stripe.String(a.currency),
			ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
				Name: stripe.String(deliveryLineItemName),
			},
			UnitAmount: stripe.Int64(toMinorUnits(order.DeliveryCharge)),
		},
		Quantity: stripe.Int64(1),
	})

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:         lineItems,
		SuccessURL:        stripe.String(a.returnURL(order.ID, true)),
		CancelURL:         stripe.String(a.returnURL(order.ID, false)),
		ClientReferenceID: stripe.String(order.ID),
	}
	if order.Address.Email != "" {
		params.CustomerEmail = stripe.String(order.Address.Email)
	}
	params.AddMetadata("order_id", order.ID)
	params.AddMetadata("user_id", order.UserID)
	return params
}

func (a *HostedRedirectAdapter) Initiate(ctx context.Context, order *domain.Order) (*Target, error) {
	if err := a.CheckConfig(); err != nil {
		return nil, err
	}
	params := a.sessionParams(order)
	params.Context = ctx

	session, err := a.sessions.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			logger.Error("Stripe rejected checkout session", err, logger.Fields{
				"order_id": order.ID, "code": string(stripeErr.Code), "status": stripeErr.HTTPStatusCode,
			})
		}
		return nil, fmt.Errorf("%w: create checkout session: %v", ErrGatewayUnavailable, err)
	}
	if session == nil || session.URL == "" {
		return nil, fmt.Errorf("%w: checkout session without url", ErrGatewayUnavailable)
	}

	return &Target{
		Kind:             TargetRedirect,
		RedirectURL:      session.URL,
		GatewayReference: session.ID,
	}, nil
}

// ParseCallback: hosted checkout hanya punya channel redirect (flag success dari browser).
func (a *HostedRedirectAdapter) ParseCallback(channel Channel, payload url.Values) (*Callback, error) {
	if channel != ChannelRedirect {
		return nil, ErrCallbackUnsupported
	}
	return parseRedirectFlag(payload)
}
