package payment

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ridloal/e-commerce-go-checkout/internal/order/domain"
	"github.com/ridloal/e-commerce-go-checkout/internal/payment/signature"
	"github.com/ridloal/e-commerce-go-checkout/internal/platform/config"
)

const (
	NotifyPath = "/api/v1/orders/payfast/notify"

	regionalItemName        = "Order Payment"
	regionalItemDescription = "Purchase from our store"
	regionalCardMethod      = "cc"
)

// Status yang dikirim gateway regional di field payment_status.
const (
	RegionalStatusComplete  = "COMPLETE"
	RegionalStatusFailed    = "FAILED"
	RegionalStatusCancelled = "CANCELLED"
)

type RegionalRedirectAdapter struct {
	cfg         config.PayFastConfig
	frontendURL string
	backendURL  string
}

func NewRegionalRedirectAdapter(cfg config.PaymentConfig) *RegionalRedirectAdapter {
	return &RegionalRedirectAdapter{
		cfg:         cfg.PayFast,
		frontendURL: strings.TrimRight(cfg.FrontendURL, "/"),
		backendURL:  strings.TrimRight(cfg.BackendURL, "/"),
	}
}

func (a *RegionalRedirectAdapter) Method() domain.PaymentMethod {
	return domain.PaymentMethodRegionalRedirect
}

func (a *RegionalRedirectAdapter) CheckConfig() error {
	var missing []string
	if a.cfg.MerchantID == "" {
		missing = append(missing, "merchant id")
	}
	if a.cfg.MerchantKey == "" {
		missing = append(missing, "merchant key")
	}
	if a.cfg.ProcessURL == "" {
		missing = append(missing, "process url")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: payfast %s missing", ErrNotConfigured, strings.Join(missing, ", "))
	}
	return nil
}

// Params merangkai parameter outbound (belum ditandatangani).
func (a *RegionalRedirectAdapter) Params(order *domain.Order) map[string]string {
	return map[string]string{
		"merchant_id":      a.cfg.MerchantID,
		"merchant_key":     a.cfg.MerchantKey,
		"amount":           order.Amount.StringFixed(2),
		"item_name":        regionalItemName,
		"item_description": regionalItemDescription,
		"payment_method":   regionalCardMethod,
		"m_payment_id":     order.ID,
		"email_address":    order.Address.Email,
		"cell_number":      signature.NormalizePhone(order.Address.Phone),
		"return_url": fmt.Sprintf("%s/verify?success=true&orderId=%s&payment_method=%s",
			a.frontendURL, order.ID, domain.PaymentMethodRegionalRedirect),
		"cancel_url":  a.frontendURL + "/cart",
		"notify_url":  a.backendURL + NotifyPath,
		"name_first":  order.Address.FirstName,
		"name_last":   order.Address.LastName,
		"custom_str1": order.UserID,
	}
}

// Initiate tidak memanggil jaringan; URL deterministik untuk order dan kredensial yang sama.
func (a *RegionalRedirectAdapter) Initiate(_ context.Context, order *domain.Order) (*Target, error) {
	if err := a.CheckConfig(); err != nil {
		return nil, err
	}
	params := a.Params(order)
	sig := signature.Sign(params, a.cfg.Passphrase)

	return &Target{
		Kind:        TargetRedirect,
		RedirectURL: a.cfg.ProcessURL + "?" + signature.QueryString(params, sig),
	}, nil
}

func (a *RegionalRedirectAdapter) ParseCallback(channel Channel, payload url.Values) (*Callback, error) {
	switch channel {
	case ChannelRedirect:
		return parseRedirectFlag(payload)
	case ChannelNotification:
		return a.parseNotification(payload)
	}
	return nil, ErrCallbackUnsupported
}

func (a *RegionalRedirectAdapter) parseNotification(payload url.Values) (*Callback, error) {
	params := signature.FromValues(payload)
	if !signature.Verify(params, a.cfg.Passphrase, params[signature.Field]) {
		return nil, ErrInvalidSignature
	}
	// Signature valid tapi untuk merchant lain tetap ditolak.
	if a.cfg.MerchantID != "" && params["merchant_id"] != a.cfg.MerchantID {
		return nil, fmt.Errorf("%w: merchant_id mismatch", ErrInvalidSignature)
	}

	ref := strings.TrimSpace(params["m_payment_id"])
	if ref == "" {
		return nil, fmt.Errorf("%w: m_payment_id missing", ErrMalformedCallback)
	}

	cb := &Callback{
		MerchantRef:      ref,
		GatewayReference: strings.TrimSpace(params["pf_payment_id"]),
		RawStatus:        params["payment_status"],
		Outcome:          mapRegionalStatus(params["payment_status"]),
	}
	if raw := strings.TrimSpace(params["amount_gross"]); raw != "" {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: amount_gross %q", ErrMalformedCallback, raw)
		}
		cb.Amount = &amount
	}
	return cb, nil
}

func mapRegionalStatus(status string) Outcome {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case RegionalStatusComplete:
		return OutcomeCompleted
	case RegionalStatusFailed, RegionalStatusCancelled:
		return OutcomeFailed
	default:
		return OutcomePending
	}
}
