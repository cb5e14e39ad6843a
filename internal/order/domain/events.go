package domain

const (
	TopicOrderPlaced    = "order.placed"
	TopicOrderPaid      = "order.paid"
	TopicOrderCancelled = "order.cancelled"

	EventOrderPlaced    = "OrderPlaced"
	EventOrderPaid      = "OrderPaid"
	EventOrderCancelled = "OrderCancelled"
)

type OrderPlacedPayload struct {
	OrderID       string        `json:"order_id"`
	UserID        string        `json:"user_id"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	Amount        string        `json:"amount"`
	ItemCount     int           `json:"item_count"`
}

type OrderPaidPayload struct {
	OrderID          string        `json:"order_id"`
	PaymentMethod    PaymentMethod `json:"payment_method"`
	Amount           string        `json:"amount"`
	GatewayReference string        `json:"gateway_reference,omitempty"`
	Source           string        `json:"source"` // verification | notification
}

type OrderCancelledPayload struct {
	OrderID string `json:"order_id"`
	UserID  string `json:"user_id"`
	Reason  string `json:"reason"`
}
