package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentMethodCOD              PaymentMethod = "cod"
	PaymentMethodHostedRedirect   PaymentMethod = "stripe"
	PaymentMethodRegionalRedirect PaymentMethod = "payfast"
)

// ParsePaymentMethod menerima nilai dari client tanpa peduli huruf besar/kecil.
func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch m := PaymentMethod(strings.ToLower(strings.TrimSpace(s))); m {
	case PaymentMethodCOD, PaymentMethodHostedRedirect, PaymentMethodRegionalRedirect:
		return m, true
	}
	return "", false
}

// IsRedirect true untuk metode yang mengarahkan user ke halaman gateway.
func (m PaymentMethod) IsRedirect() bool {
	return m == PaymentMethodHostedRedirect || m == PaymentMethodRegionalRedirect
}

type Address struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Street    string `json:"street"`
	City      string `json:"city"`
	State     string `json:"state"`
	Zipcode   string `json:"zipcode"`
	Country   string `json:"country"`
	Phone     string `json:"phone"`
}

// OrderItem adalah snapshot produk saat order dibuat; tidak mengikuti perubahan katalog.
type OrderItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Size      string          `json:"size,omitempty"`
	Image     string          `json:"image,omitempty"`
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Order struct {
	ID               string          `json:"id"`
	UserID           string          `json:"user_id"`
	Items            []OrderItem     `json:"items"`
	Address          Address         `json:"address"`
	Amount           decimal.Decimal `json:"amount"`
	DeliveryCharge   decimal.Decimal `json:"delivery_charge"`
	PaymentMethod    PaymentMethod   `json:"payment_method"`
	PaymentState     PaymentState    `json:"payment_state"`
	GatewayReference *string         `json:"gateway_reference,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// ItemsTotal menjumlahkan subtotal semua item, tanpa ongkos kirim.
func ItemsTotal(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	return total
}

// ExpectedAmount = Σ price*qty + delivery charge.
func (o *Order) ExpectedAmount() decimal.Decimal {
	return ItemsTotal(o.Items).Add(o.DeliveryCharge)
}

func (o *Order) IsPaid() bool {
	return o.PaymentState == StatePaid
}

// ProductSnapshot adalah data katalog yang dibutuhkan untuk membekukan harga item.
type ProductSnapshot struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
	Images []string        `json:"images"`
	Sizes  []string        `json:"sizes"`
}

func (p ProductSnapshot) HasSize(size string) bool {
	if len(p.Sizes) == 0 {
		return true
	}
	for _, s := range p.Sizes {
		if s == size {
			return true
		}
	}
	return false
}

type PlaceOrderItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,gt=0"`
	Size      string `json:"size"`
}

type PlaceOrderRequest struct {
	UserID        string                  `json:"-"` // diisi dari JWT
	Items         []PlaceOrderItemRequest `json:"items" binding:"required,dive"`
	Address       Address                 `json:"address"`
	Amount        decimal.Decimal         `json:"amount"`
	PaymentMethod string                  `json:"payment_method" binding:"required"`
}

type PlaceOrderResponse struct {
	OrderID       string          `json:"order_id"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Amount        decimal.Decimal `json:"amount"`
	Accepted      bool            `json:"accepted"`
	RedirectURL   string          `json:"redirect_url,omitempty"`
}

// VerifyPaymentRequest: success boleh dikirim sebagai boolean atau string "true"/"false".
type VerifyPaymentRequest struct {
	OrderID       string      `json:"order_id" binding:"required"`
	Success       interface{} `json:"success"`
	PaymentMethod string      `json:"payment_method"`
}

type VerificationResult struct {
	Success      bool         `json:"success"`
	OrderID      string       `json:"order_id"`
	PaymentState PaymentState `json:"payment_state"`
	Transitioned bool         `json:"-"`
}

type NotificationResult struct {
	OrderID      string       `json:"order_id"`
	PaymentState PaymentState `json:"payment_state"`
	Transitioned bool         `json:"transitioned"`
	Duplicate    bool         `json:"duplicate"`
}

type ListOrdersFilter struct {
	States []PaymentState
}

// PaymentNotification adalah catatan audit setiap notifikasi gateway yang lolos verifikasi.
type PaymentNotification struct {
	ID               int64         `json:"id"`
	OrderID          string        `json:"order_id"`
	PaymentMethod    PaymentMethod `json:"payment_method"`
	GatewayReference string        `json:"gateway_reference"`
	GatewayStatus    string        `json:"gateway_status"`
	ReceivedAt       time.Time     `json:"received_at"`
}
