package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ridloal/e-commerce-go-checkout/internal/order/domain"
	"github.com/ridloal/e-commerce-go-checkout/internal/order/repository"
	"github.com/ridloal/e-commerce-go-checkout/internal/payment"
	"github.com/ridloal/e-commerce-go-checkout/internal/platform/logger"
)

var (
	ErrValidation            = errors.New("validation failed")
	ErrConfiguration         = errors.New("payment method not configured")
	ErrOrderNotFound         = errors.New("order not found")
	ErrOrderAlreadyFinalized = errors.New("order already finalized")
	ErrGatewayUnavailable    = errors.New("payment gateway unavailable")
	ErrInvalidSignature      = payment.ErrInvalidSignature
)

const (
	sourceVerification = "verification"
	sourceNotification = "notification"
)

type OrderService interface {
	PlaceOrder(ctx context.Context, req domain.PlaceOrderRequest) (*domain.PlaceOrderResponse, error)
	CreateOrder(ctx context.Context, req domain.PlaceOrderRequest) (*domain.Order, error)
	InitiatePayment(ctx context.Context, order *domain.Order) (*payment.Target, error)
	VerifyPayment(ctx context.Context, userID string, params url.Values) (*domain.VerificationResult, error)
	ConfirmVerification(ctx context.Context, orderID, userID string, success bool) (*domain.VerificationResult, error)
	ApplyNotification(ctx context.Context, method domain.PaymentMethod, payload url.Values) (*domain.NotificationResult, error)
	ListOrders(ctx context.Context, filter domain.ListOrdersFilter) ([]domain.Order, error)
	ListUserOrders(ctx context.Context, userID string) ([]domain.Order, error)
}

// NotificationGuard adalah jalur cepat dedup notifikasi (Redis). Boleh gagal; database tetap acuan.
type NotificationGuard interface {
	Seen(ctx context.Context, method, id string) (bool, error)
	Remember(ctx context.Context, method, id string) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic, eventType, key string, payload any) error
}

type Dependencies struct {
	OrderRepo repository.OrderRepository
	Catalog   CatalogClient
	Users     UserClient
	Gateways  *payment.Registry
	Guard     NotificationGuard // opsional
	Publisher EventPublisher    // opsional
}

type orderServiceImpl struct {
	orderRepo      repository.OrderRepository
	catalog        CatalogClient
	users          UserClient
	gateways       *payment.Registry
	guard          NotificationGuard
	publisher      EventPublisher
	deliveryCharge decimal.Decimal
}

func NewOrderService(deps Dependencies, deliveryCharge decimal.Decimal) OrderService {
	s := &orderServiceImpl{
		orderRepo:      deps.OrderRepo,
		catalog:        deps.Catalog,
		users:          deps.Users,
		gateways:       deps.Gateways,
		guard:          deps.Guard,
		publisher:      deps.Publisher,
		deliveryCharge: deliveryCharge,
	}
	if s.guard == nil {
		s.guard = noopGuard{}
	}
	if s.publisher == nil {
		s.publisher = noopPublisher{}
	}
	return s
}

type noopGuard struct{}

func (noopGuard) Seen(context.Context, string, string) (bool, error) { return false, nil }
func (noopGuard) Remember(context.Context, string, string) error     { return nil }

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, string, string, string, any) error { return nil }

func validationErr(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func validateRequest(req domain.PlaceOrderRequest, method domain.PaymentMethod) error {
	if strings.TrimSpace(req.UserID) == "" {
		return validationErr("user id is required")
	}
	if len(req.Items) == 0 {
		return validationErr("order must contain at least one item")
	}
	for i, it := range req.Items {
		if strings.TrimSpace(it.ProductID) == "" {
			return validationErr("item %d: product_id is required", i)
		}
		if it.Quantity <= 0 {
			return validationErr("item %d: quantity must be positive", i)
		}
	}
	if !req.Amount.IsPositive() {
		return validationErr("amount must be positive")
	}
	// Gateway redirect butuh kontak pembeli.
	if method.IsRedirect() {
		a := req.Address
		if strings.TrimSpace(a.Email) == "" || strings.TrimSpace(a.FirstName) == "" || strings.TrimSpace(a.LastName) == "" {
			return validationErr("address email, firstName and lastName are required for %s", method)
		}
	}
	return nil
}

// snapshotItems membekukan nama, harga dan gambar dari katalog saat order dibuat.
func (s *orderServiceImpl) snapshotItems(ctx context.Context, reqItems []domain.PlaceOrderItemRequest) ([]domain.OrderItem, error) {
	items := make([]domain.OrderItem, 0, len(reqItems))
	for _, it := range reqItems {
		p, err := s.catalog.GetProduct(ctx, it.ProductID)
		if err != nil {
			if errors.Is(err, ErrProductNotFound) {
				return nil, validationErr("unknown product %s", it.ProductID)
			}
			return nil, fmt.Errorf("snapshot product %s: %w", it.ProductID, err)
		}
		if it.Size != "" && !p.HasSize(it.Size) {
			return nil, validationErr("product %s has no size %q", it.ProductID, it.Size)
		}
		item := domain.OrderItem{
			ProductID: p.ID,
			Name:      p.Name,
			Price:     p.Price,
			Quantity:  it.Quantity,
			Size:      it.Size,
		}
		if item.ProductID == "" {
			item.ProductID = it.ProductID
		}
		if len(p.Images) > 0 {
			item.Image = p.Images[0]
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *orderServiceImpl) CreateOrder(ctx context.Context, req domain.PlaceOrderRequest) (*domain.Order, error) {
	method, ok := domain.ParsePaymentMethod(req.PaymentMethod)
	if !ok {
		return nil, validationErr("unknown payment method %q", req.PaymentMethod)
	}
	if err := validateRequest(req, method); err != nil {
		return nil, err
	}

	adapter, err := s.gateways.For(method)
	if err != nil {
		return nil, validationErr("%v", err)
	}
	if err := adapter.CheckConfig(); err != nil {
		logger.Error("CreateOrder: payment method not configured", err, logger.Fields{"payment_method": method})
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	items, err := s.snapshotItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	order := &domain.Order{
		ID:             uuid.NewString(),
		UserID:         req.UserID,
		Items:          items,
		Address:        req.Address,
		DeliveryCharge: s.deliveryCharge,
		PaymentMethod:  method,
		PaymentState:   domain.StatePending,
	}
	expected := order.ExpectedAmount()
	if !req.Amount.Equal(expected) {
		return nil, validationErr("amount %s does not match computed total %s", req.Amount.StringFixed(2), expected.StringFixed(2))
	}
	order.Amount = expected
	if err := s.orderRepo.CreateOrder(ctx, order); err != nil {
		logger.Error("CreateOrder: failed to save order to repository", err, logger.Fields{"order_id": order.ID})
		return nil, fmt.Errorf("failed to save order: %w", err)
	}
	logger.Info("Order created", logger.Fields{"order_id": order.ID, "payment_method": method, "amount": order.Amount.StringFixed(2)})

	s.publish(ctx, domain.TopicOrderPlaced, domain.EventOrderPlaced, order.ID, domain.OrderPlacedPayload{
		OrderID:       order.ID,
		UserID:        order.UserID,
		PaymentMethod: method,
		Amount:        order.Amount.StringFixed(2),
		ItemCount:     len(order.Items),
	})

	// COD: pembayaran fisik, keranjang langsung dikosongkan.
	if method == domain.PaymentMethodCOD {
		s.clearCart(ctx, order.UserID, order.ID)
	}
	return order, nil
}

func (s *orderServiceImpl) InitiatePayment(ctx context.Context, order *domain.Order) (*payment.Target, error) {
	adapter, err := s.gateways.For(order.PaymentMethod)
	if err != nil {
		return nil, validationErr("%v", err)
	}

	target, err := adapter.Initiate(ctx, order)
	if err != nil {
		if errors.Is(err, payment.ErrNotConfigured) {
			return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
		logger.Error("InitiatePayment: gateway call failed, order stays pending", err, logger.Fields{"order_id": order.ID})
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	if target.GatewayReference != "" {
		if err := s.orderRepo.SetGatewayReference(ctx, order.ID, target.GatewayReference); err != nil {
			logger.Warn("InitiatePayment: failed to store gateway reference", logger.Fields{"order_id": order.ID, "error": err.Error()})
		} else {
			ref := target.GatewayReference
			order.GatewayReference = &ref
		}
	}
	return target, nil
}

func (s *orderServiceImpl) PlaceOrder(ctx context.Context, req domain.PlaceOrderRequest) (*domain.PlaceOrderResponse, error) {
	order, err := s.CreateOrder(ctx, req)
	if err != nil {
		return nil, err
	}

	target, err := s.InitiatePayment(ctx, order)
	if err != nil {
		return nil, err
	}

	return &domain.PlaceOrderResponse{
		OrderID:       order.ID,
		PaymentMethod: order.PaymentMethod,
		Amount:        order.Amount,
		Accepted:      target.Accepted,
		RedirectURL:   target.RedirectURL,
	}, nil
}

// loadOwnedOrder: order milik user lain diperlakukan sama dengan tidak ada.
func (s *orderServiceImpl) loadOwnedOrder(ctx context.Context, orderID, userID string) (*domain.Order, error) {
	order, err := s.orderRepo.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
		}
		return nil, err
	}
	if order.UserID != userID {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	return order, nil
}

func (s *orderServiceImpl) VerifyPayment(ctx context.Context, userID string, params url.Values) (*domain.VerificationResult, error) {
	orderID := strings.TrimSpace(params.Get("orderId"))
	if orderID == "" {
		orderID = strings.TrimSpace(params.Get("order_id"))
	}
	if orderID == "" {
		return nil, validationErr("orderId is required")
	}

	order, err := s.loadOwnedOrder(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}

	adapter, err := s.gateways.For(order.PaymentMethod)
	if err != nil {
		return nil, validationErr("%v", err)
	}
	cb, err := adapter.ParseCallback(payment.ChannelRedirect, params)
	if err != nil {
		return nil, validationErr("%v", err)
	}
	return s.confirm(ctx, order, cb.Outcome == payment.OutcomeCompleted)
}

func (s *orderServiceImpl) ConfirmVerification(ctx context.Context, orderID, userID string, success bool) (*domain.VerificationResult, error) {
	order, err := s.loadOwnedOrder(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}
	if order.PaymentMethod == domain.PaymentMethodCOD {
		return nil, validationErr("cash on delivery orders are not verified")
	}
	return s.confirm(ctx, order, success)
}

func (s *orderServiceImpl) confirm(ctx context.Context, order *domain.Order, success bool) (*domain.VerificationResult, error) {
	if success {
		return s.confirmPaid(ctx, order)
	}
	return s.confirmCancelled(ctx, order)
}

// canBePaid: order yang sudah Paid tetap lolos supaya konfirmasi ulang idempoten.
func canBePaid(order *domain.Order) bool {
	return order.IsPaid() || domain.CanTransition(order.PaymentState, domain.StatePaid)
}

func (s *orderServiceImpl) confirmPaid(ctx context.Context, order *domain.Order) (*domain.VerificationResult, error) {
	if !canBePaid(order) {
		logger.Warn("confirmVerification: order already finalized", logger.Fields{"order_id": order.ID, "state": order.PaymentState})
		return nil, fmt.Errorf("%w: order %s is %s", ErrOrderAlreadyFinalized, order.ID, order.PaymentState)
	}
	swapped, current, err := s.orderRepo.CompareAndSwapState(ctx, order.ID, domain.StatePending, domain.StatePaid, nil)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, order.ID)
		}
		return nil, err
	}
	if !swapped && current != domain.StatePaid {
		logger.Warn("confirmVerification: order already finalized", logger.Fields{"order_id": order.ID, "state": current})
		return nil, fmt.Errorf("%w: order %s is %s", ErrOrderAlreadyFinalized, order.ID, current)
	}

	if swapped {
		logger.Info("Order paid", logger.Fields{"order_id": order.ID, "source": sourceVerification})
		s.publish(ctx, domain.TopicOrderPaid, domain.EventOrderPaid, order.ID, domain.OrderPaidPayload{
			OrderID:       order.ID,
			PaymentMethod: order.PaymentMethod,
			Amount:        order.Amount.StringFixed(2),
			Source:        sourceVerification,
		})
	}
	// Dipanggil juga saat verifikasi berulang; clear cart idempoten.
	s.clearCart(ctx, order.UserID, order.ID)

	return &domain.VerificationResult{
		Success:      true,
		OrderID:      order.ID,
		PaymentState: domain.StatePaid,
		Transitioned: swapped,
	}, nil
}

func (s *orderServiceImpl) confirmCancelled(ctx context.Context, order *domain.Order) (*domain.VerificationResult, error) {
	if !domain.CanTransition(order.PaymentState, domain.StateCancelled) {
		logger.Warn("confirmVerification: cannot cancel finalized order", logger.Fields{"order_id": order.ID, "state": order.PaymentState})
		return nil, fmt.Errorf("%w: order %s is %s", ErrOrderAlreadyFinalized, order.ID, order.PaymentState)
	}
	deleted, current, err := s.orderRepo.DeleteIfState(ctx, order.ID, domain.StatePending)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, order.ID)
		}
		return nil, err
	}
	if !deleted {
		logger.Warn("confirmVerification: cannot cancel finalized order", logger.Fields{"order_id": order.ID, "state": current})
		return nil, fmt.Errorf("%w: order %s is %s", ErrOrderAlreadyFinalized, order.ID, current)
	}

	logger.Info("Order cancelled by user", logger.Fields{"order_id": order.ID})
	s.publish(ctx, domain.TopicOrderCancelled, domain.EventOrderCancelled, order.ID, domain.OrderCancelledPayload{
		OrderID: order.ID,
		UserID:  order.UserID,
		Reason:  "payment not completed",
	})
	return &domain.VerificationResult{
		Success:      false,
		OrderID:      order.ID,
		PaymentState: domain.StateCancelled,
		Transitioned: true,
	}, nil
}

func notificationKey(cb *payment.Callback) string {
	return cb.MerchantRef + ":" + cb.GatewayReference + ":" + strings.ToUpper(cb.RawStatus)
}

func outcomeState(o payment.Outcome) domain.PaymentState {
	if o == payment.OutcomeCompleted {
		return domain.StatePaid
	}
	return domain.StatePending
}

func (s *orderServiceImpl) ApplyNotification(ctx context.Context, method domain.PaymentMethod, payload url.Values) (*domain.NotificationResult, error) {
	adapter, err := s.gateways.For(method)
	if err != nil {
		return nil, validationErr("%v", err)
	}

	cb, err := adapter.ParseCallback(payment.ChannelNotification, payload)
	if err != nil {
		if errors.Is(err, payment.ErrInvalidSignature) {
			return nil, err
		}
		return nil, validationErr("%v", err)
	}

	key := notificationKey(cb)
	seen, err := s.guard.Seen(ctx, string(method), key)
	if err != nil {
		logger.Warn("ApplyNotification: dedup lookup failed, falling back to store", logger.Fields{"order_id": cb.MerchantRef, "error": err.Error()})
	}
	if seen {
		return &domain.NotificationResult{OrderID: cb.MerchantRef, PaymentState: outcomeState(cb.Outcome), Duplicate: true}, nil
	}

	order, err := s.orderRepo.GetOrderByID(ctx, cb.MerchantRef)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, cb.MerchantRef)
		}
		return nil, err
	}
	if order.PaymentMethod != method {
		return nil, validationErr("order %s was not placed with %s", order.ID, method)
	}
	if cb.Amount != nil && !cb.Amount.Equal(order.Amount) {
		logger.Warn("ApplyNotification: gross amount mismatch", logger.Fields{
			"order_id": order.ID, "expected": order.Amount.StringFixed(2), "got": cb.Amount.StringFixed(2),
		})
		return nil, validationErr("amount %s does not match order amount %s", cb.Amount.StringFixed(2), order.Amount.StringFixed(2))
	}

	recorded, err := s.orderRepo.RecordNotification(ctx, &domain.PaymentNotification{
		OrderID:          order.ID,
		PaymentMethod:    method,
		GatewayReference: cb.GatewayReference,
		GatewayStatus:    strings.ToUpper(cb.RawStatus),
	})
	if err != nil {
		return nil, fmt.Errorf("record notification: %w", err)
	}

	result := &domain.NotificationResult{
		OrderID:      order.ID,
		PaymentState: order.PaymentState,
		Duplicate:    !recorded,
	}

	switch cb.Outcome {
	case payment.OutcomeCompleted:
		var ref *string
		if cb.GatewayReference != "" {
			ref = &cb.GatewayReference
		}
		if !canBePaid(order) {
			logger.Warn("ApplyNotification: order already finalized", logger.Fields{"order_id": order.ID, "state": order.PaymentState})
			return nil, fmt.Errorf("%w: order %s is %s", ErrOrderAlreadyFinalized, order.ID, order.PaymentState)
		}
		swapped, current, err := s.orderRepo.CompareAndSwapState(ctx, order.ID, domain.StatePending, domain.StatePaid, ref)
		if err != nil {
			if errors.Is(err, repository.ErrOrderNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, order.ID)
			}
			return nil, err
		}
		if !swapped && current != domain.StatePaid {
			logger.Warn("ApplyNotification: order already finalized", logger.Fields{"order_id": order.ID, "state": current})
			return nil, fmt.Errorf("%w: order %s is %s", ErrOrderAlreadyFinalized, order.ID, current)
		}
		result.PaymentState = domain.StatePaid
		result.Transitioned = swapped
		// Verifikasi user bisa menang lebih dulu; reference dari gateway tetap dicatat.
		if !swapped && ref != nil {
			if _, err := s.orderRepo.FillPaidGatewayReference(ctx, order.ID, *ref); err != nil {
				logger.Warn("ApplyNotification: failed to record gateway reference", logger.Fields{"order_id": order.ID, "error": err.Error()})
			}
		}
		if swapped {
			logger.Info("Order paid", logger.Fields{"order_id": order.ID, "source": sourceNotification, "gateway_reference": cb.GatewayReference})
			s.publish(ctx, domain.TopicOrderPaid, domain.EventOrderPaid, order.ID, domain.OrderPaidPayload{
				OrderID:          order.ID,
				PaymentMethod:    method,
				Amount:           order.Amount.StringFixed(2),
				GatewayReference: cb.GatewayReference,
				Source:           sourceNotification,
			})
		}
	default:
		// Notifikasi gagal/pending tidak membatalkan order; hanya tercatat di audit.
		logger.Info("Notification without completed payment, order left unchanged", logger.Fields{
			"order_id": order.ID, "status": cb.RawStatus, "outcome": cb.Outcome,
		})
	}

	if err := s.guard.Remember(ctx, string(method), key); err != nil {
		logger.Warn("ApplyNotification: failed to remember notification", logger.Fields{"order_id": order.ID, "error": err.Error()})
	}
	return result, nil
}

func (s *orderServiceImpl) ListOrders(ctx context.Context, filter domain.ListOrdersFilter) ([]domain.Order, error) {
	return s.orderRepo.ListOrders(ctx, filter)
}

func (s *orderServiceImpl) ListUserOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, validationErr("user id is required")
	}
	return s.orderRepo.ListOrdersByUser(ctx, userID)
}

func (s *orderServiceImpl) clearCart(ctx context.Context, userID, orderID string) {
	if s.users == nil {
		return
	}
	if err := s.users.ClearCart(ctx, userID); err != nil {
		logger.Error("Failed to clear cart", err, logger.Fields{"user_id": userID, "order_id": orderID})
	}
}

func (s *orderServiceImpl) publish(ctx context.Context, topic, eventType, key string, payload any) {
	if err := s.publisher.Publish(ctx, topic, eventType, key, payload); err != nil {
		logger.Error("Failed to publish order event", err, logger.Fields{"topic": topic, "order_id": key})
	}
}
