package payment

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ridloal/e-commerce-go-checkout/internal/order/domain"
)

var (
	ErrInvalidSignature    = errors.New("invalid gateway signature")
	ErrNotConfigured       = errors.New("payment gateway is not configured")
	ErrGatewayUnavailable  = errors.New("payment gateway unavailable")
	ErrUnsupportedMethod   = errors.New("unsupported payment method")
	ErrCallbackUnsupported = errors.New("callback channel not supported for this payment method")
	ErrMalformedCallback   = errors.New("malformed callback payload")
)

type TargetKind string

const (
	TargetImmediate TargetKind = "IMMEDIATE"
	TargetRedirect  TargetKind = "REDIRECT"
)

// Target adalah hasil inisiasi pembayaran: diterima langsung (COD) atau URL redirect.
type Target struct {
	Kind             TargetKind
	Accepted         bool
	RedirectURL      string
	GatewayReference string // session id dari gateway, kosong jika tidak ada
}

// Channel membedakan redirect yang dibawa browser user dan notifikasi server-to-server.
type Channel string

const (
	ChannelRedirect     Channel = "redirect"
	ChannelNotification Channel = "notification"
)

type Outcome string

const (
	OutcomeCompleted Outcome = "COMPLETED"
	OutcomeFailed    Outcome = "FAILED"
	OutcomePending   Outcome = "PENDING"
)

type Callback struct {
	MerchantRef      string
	GatewayReference string
	RawStatus        string
	Outcome          Outcome
	Amount           *decimal.Decimal // diisi jika gateway meng-echo nominal
}

// Adapter adalah kapabilitas per metode pembayaran. Service memilih adapter sekali
// berdasarkan order.PaymentMethod.
type Adapter interface {
	Method() domain.PaymentMethod
	// CheckConfig dipanggil sebelum order disimpan; error di sini tidak boleh
	// menghasilkan order setengah jadi.
	CheckConfig() error
	Initiate(ctx context.Context, order *domain.Order) (*Target, error)
	ParseCallback(channel Channel, payload url.Values) (*Callback, error)
}

// parseRedirectFlag membaca parameter orderId + success dari redirect user.
func parseRedirectFlag(payload url.Values) (*Callback, error) {
	orderID := strings.TrimSpace(payload.Get("orderId"))
	if orderID == "" {
		orderID = strings.TrimSpace(payload.Get("order_id"))
	}
	if orderID == "" {
		return nil, ErrMalformedCallback
	}
	// Hanya "true"/"false" eksplisit yang diterima; flag lain tidak boleh membatalkan order.
	flag := strings.ToLower(strings.TrimSpace(payload.Get("success")))
	var outcome Outcome
	switch flag {
	case "true":
		outcome = OutcomeCompleted
	case "false":
		outcome = OutcomeFailed
	case "":
		return nil, fmt.Errorf("%w: success flag is required", ErrMalformedCallback)
	default:
		return nil, fmt.Errorf("%w: success flag %q is not true or false", ErrMalformedCallback, flag)
	}
	return &Callback{
		MerchantRef: orderID,
		RawStatus:   flag,
		Outcome:     outcome,
	}, nil
}
