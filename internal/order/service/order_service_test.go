package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"

	"github.com/ridloal/e-commerce-go-checkout/internal/order/domain"
	"github.com/ridloal/e-commerce-go-checkout/internal/order/repository"
	repoMocks "github.com/ridloal/e-commerce-go-checkout/internal/order/repository/mocks"
	"github.com/ridloal/e-commerce-go-checkout/internal/order/service/mocks"
	"github.com/ridloal/e-commerce-go-checkout/internal/payment"
	"github.com/ridloal/e-commerce-go-checkout/internal/payment/signature"
	"github.com/ridloal/e-commerce-go-checkout/internal/platform/config"
)

const testPassphrase = "jt7NOE43FZPn"

var deliveryCharge = decimal.NewFromInt(250)

type fakeSessions struct {
	err error
}

func (f *fakeSessions) New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &stripe.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.example/c/cs_test_1"}, nil
}

func testPaymentConfig() config.PaymentConfig {
	return config.PaymentConfig{
		FrontendURL:    "https://shop.example",
		BackendURL:     "https://api.shop.example",
		Currency:       "zar",
		DeliveryCharge: deliveryCharge,
		Stripe:         config.StripeConfig{SecretKey: "sk_test_123"},
		PayFast: config.PayFastConfig{
			MerchantID:  "10000100",
			MerchantKey: "46f0cd694581a",
			Passphrase:  testPassphrase,
			ProcessURL:  "https://sandbox.payfast.example/eng/process",
		},
	}
}

func testRegistry(cfg config.PaymentConfig, sessions payment.CheckoutSessionCreator) *payment.Registry {
	return payment.NewRegistry(
		payment.NewCODAdapter(),
		payment.NewHostedRedirectAdapter(sessions, cfg),
		payment.NewRegionalRedirectAdapter(cfg),
	)
}

func shirt() *domain.ProductSnapshot {
	return &domain.ProductSnapshot{
		ID:     "p1",
		Name:   "Linen Shirt",
		Price:  decimal.NewFromInt(250),
		Images: []string{"https://img.example/p1.jpg"},
		Sizes:  []string{"S", "M", "L"},
	}
}

func placeRequest(method string) domain.PlaceOrderRequest {
	return domain.PlaceOrderRequest{
		UserID: "user-1",
		Items:  []domain.PlaceOrderItemRequest{{ProductID: "p1", Quantity: 2, Size: "M"}},
		Address: domain.Address{
			FirstName: "Jane", LastName: "Doe", Email: "jane@example.com", Phone: "0821234567",
		},
		Amount:        decimal.NewFromInt(750),
		PaymentMethod: method,
	}
}

func notifyPayload(orderID, status, amountGross string) url.Values {
	fields := map[string]string{
		"m_payment_id":   orderID,
		"pf_payment_id":  "1089250",
		"payment_status": status,
		"item_name":      "Order Payment",
		"amount_gross":   amountGross,
		"merchant_id":    "10000100",
	}
	v := url.Values{}
	for k, val := range fields {
		v.Set(k, val)
	}
	v.Set(signature.Field, signature.Sign(fields, testPassphrase))
	return v
}

// countingPublisher menghitung event per topic; aman dipakai dari banyak goroutine.
type countingPublisher struct {
	mu     sync.Mutex
	topics map[string]int
}

func newCountingPublisher() *countingPublisher {
	return &countingPublisher{topics: map[string]int{}}
}

func (p *countingPublisher) Publish(_ context.Context, topic, _, _ string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics[topic]++
	return nil
}

func (p *countingPublisher) count(topic string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.topics[topic]
}

type fixture struct {
	svc       OrderService
	repo      repository.OrderRepository
	catalog   *mocks.MockCatalogClient
	users     *mocks.MockUserClient
	publisher *countingPublisher
}

// newFixture memakai store in-memory sungguhan supaya skenario end-to-end bisa dicek lewat state.
func newFixture(t *testing.T, sessions payment.CheckoutSessionCreator) *fixture {
	t.Helper()
	f := &fixture{
		repo:      repository.NewMemoryOrderRepository(),
		catalog:   new(mocks.MockCatalogClient),
		users:     new(mocks.MockUserClient),
		publisher: newCountingPublisher(),
	}
	if sessions == nil {
		sessions = &fakeSessions{}
	}
	f.catalog.On("GetProduct", mock.Anything, "p1").Return(shirt(), nil).Maybe()
	f.users.On("ClearCart", mock.Anything, "user-1").Return(nil).Maybe()
	f.svc = NewOrderService(Dependencies{
		OrderRepo: f.repo,
		Catalog:   f.catalog,
		Users:     f.users,
		Gateways:  testRegistry(testPaymentConfig(), sessions),
		Publisher: f.publisher,
	}, deliveryCharge)
	return f
}

func (f *fixture) placePending(t *testing.T, method string) *domain.Order {
	t.Helper()
	order, err := f.svc.CreateOrder(context.Background(), placeRequest(method))
	require.NoError(t, err)
	return order
}

func TestOrderService_CreateOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("COD order totals items plus delivery and clears cart immediately", func(t *testing.T) {
		f := newFixture(t, nil)

		order, err := f.svc.CreateOrder(ctx, placeRequest("COD"))

		require.NoError(t, err)
		assert.True(t, order.Amount.Equal(decimal.NewFromInt(750)))
		assert.Equal(t, domain.PaymentMethodCOD, order.PaymentMethod)
		assert.Equal(t, domain.StatePending, order.PaymentState)
		require.Len(t, order.Items, 1)
		assert.Equal(t, "Linen Shirt", order.Items[0].Name)
		assert.Equal(t, "https://img.example/p1.jpg", order.Items[0].Image)
		assert.NotEmpty(t, order.ID)

		stored, err := f.repo.GetOrderByID(ctx, order.ID)
		require.NoError(t, err)
		assert.True(t, stored.Amount.Equal(stored.ExpectedAmount()))

		f.users.AssertNumberOfCalls(t, "ClearCart", 1)
		assert.Equal(t, 1, f.publisher.count(domain.TopicOrderPlaced))
	})

	t.Run("Redirect order does not clear cart at creation", func(t *testing.T) {
		f := newFixture(t, nil)
		f.placePending(t, "payfast")
		f.users.AssertNotCalled(t, "ClearCart", mock.Anything, mock.Anything)
	})

	validationCases := map[string]func(*domain.PlaceOrderRequest){
		"amount mismatch":        func(r *domain.PlaceOrderRequest) { r.Amount = decimal.NewFromInt(500) },
		"zero amount":            func(r *domain.PlaceOrderRequest) { r.Amount = decimal.Zero },
		"negative amount":        func(r *domain.PlaceOrderRequest) { r.Amount = decimal.NewFromInt(-750) },
		"empty items":            func(r *domain.PlaceOrderRequest) { r.Items = nil },
		"zero quantity":          func(r *domain.PlaceOrderRequest) { r.Items[0].Quantity = 0 },
		"unknown payment method": func(r *domain.PlaceOrderRequest) { r.PaymentMethod = "bitcoin" },
		"missing email":          func(r *domain.PlaceOrderRequest) { r.Address.Email = "" },
		"missing last name":      func(r *domain.PlaceOrderRequest) { r.Address.LastName = " " },
		"unknown size":           func(r *domain.PlaceOrderRequest) { r.Items[0].Size = "XXL" },
		"missing user":           func(r *domain.PlaceOrderRequest) { r.UserID = "" },
	}
	for name, mutate := range validationCases {
		t.Run("Validation: "+name, func(t *testing.T) {
			mockRepo := new(repoMocks.MockOrderRepository)
			catalog := new(mocks.MockCatalogClient)
			catalog.On("GetProduct", mock.Anything, "p1").Return(shirt(), nil).Maybe()
			svc := NewOrderService(Dependencies{
				OrderRepo: mockRepo,
				Catalog:   catalog,
				Gateways:  testRegistry(testPaymentConfig(), &fakeSessions{}),
			}, deliveryCharge)

			req := placeRequest("payfast")
			mutate(&req)
			order, err := svc.CreateOrder(ctx, req)

			assert.Nil(t, order)
			assert.ErrorIs(t, err, ErrValidation)
			mockRepo.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
		})
	}

	t.Run("COD does not require contact fields", func(t *testing.T) {
		f := newFixture(t, nil)
		req := placeRequest("cod")
		req.Address = domain.Address{Street: "1 Long St", City: "Cape Town"}
		_, err := f.svc.CreateOrder(ctx, req)
		assert.NoError(t, err)
	})

	t.Run("Unknown product", func(t *testing.T) {
		mockRepo := new(repoMocks.MockOrderRepository)
		catalog := new(mocks.MockCatalogClient)
		catalog.On("GetProduct", mock.Anything, "p1").Return(nil, ErrProductNotFound).Once()
		svc := NewOrderService(Dependencies{OrderRepo: mockRepo, Catalog: catalog, Gateways: testRegistry(testPaymentConfig(), &fakeSessions{})}, deliveryCharge)

		_, err := svc.CreateOrder(ctx, placeRequest("cod"))

		assert.ErrorIs(t, err, ErrValidation)
		catalog.AssertExpectations(t)
	})

	t.Run("Catalog unavailable is not a validation error", func(t *testing.T) {
		catalog := new(mocks.MockCatalogClient)
		catalog.On("GetProduct", mock.Anything, "p1").Return(nil, errors.New("connection refused")).Once()
		svc := NewOrderService(Dependencies{OrderRepo: new(repoMocks.MockOrderRepository), Catalog: catalog, Gateways: testRegistry(testPaymentConfig(), &fakeSessions{})}, deliveryCharge)

		_, err := svc.CreateOrder(ctx, placeRequest("cod"))

		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrValidation)
	})

	t.Run("Missing gateway credentials fail before persistence", func(t *testing.T) {
		cfg := testPaymentConfig()
		cfg.PayFast.MerchantID = ""
		mockRepo := new(repoMocks.MockOrderRepository)
		catalog := new(mocks.MockCatalogClient)
		svc := NewOrderService(Dependencies{OrderRepo: mockRepo, Catalog: catalog, Gateways: testRegistry(cfg, &fakeSessions{})}, deliveryCharge)

		_, err := svc.CreateOrder(ctx, placeRequest("payfast"))

		assert.ErrorIs(t, err, ErrConfiguration)
		mockRepo.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
		catalog.AssertNotCalled(t, "GetProduct", mock.Anything, mock.Anything)
	})

	t.Run("Repository failure", func(t *testing.T) {
		mockRepo := new(repoMocks.MockOrderRepository)
		catalog := new(mocks.MockCatalogClient)
		catalog.On("GetProduct", mock.Anything, "p1").Return(shirt(), nil).Once()
		mockRepo.On("CreateOrder", mock.Anything, mock.AnythingOfType("*domain.Order")).Return(errors.New("db down")).Once()
		svc := NewOrderService(Dependencies{OrderRepo: mockRepo, Catalog: catalog, Gateways: testRegistry(testPaymentConfig(), &fakeSessions{})}, deliveryCharge)

		_, err := svc.CreateOrder(ctx, placeRequest("payfast"))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "db down")
		mockRepo.AssertExpectations(t)
	})
}

func TestOrderService_PlaceOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("COD is accepted without redirect", func(t *testing.T) {
		f := newFixture(t, nil)
		resp, err := f.svc.PlaceOrder(ctx, placeRequest("cod"))
		require.NoError(t, err)
		assert.True(t, resp.Accepted)
		assert.Empty(t, resp.RedirectURL)
		assert.Equal(t, domain.PaymentMethodCOD, resp.PaymentMethod)
	})

	t.Run("Regional redirect returns signed gateway URL", func(t *testing.T) {
		f := newFixture(t, nil)
		resp, err := f.svc.PlaceOrder(ctx, placeRequest("payfast"))
		require.NoError(t, err)

		assert.False(t, resp.Accepted)
		assert.True(t, strings.HasPrefix(resp.RedirectURL, "https://sandbox.payfast.example/eng/process?amount=750.00&"))
		assert.Contains(t, resp.RedirectURL, "m_payment_id="+resp.OrderID)
		assert.Contains(t, resp.RedirectURL, "&signature=")

		stored, err := f.repo.GetOrderByID(ctx, resp.OrderID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatePending, stored.PaymentState)
	})

	t.Run("Hosted redirect stores session id while pending", func(t *testing.T) {
		f := newFixture(t, nil)
		resp, err := f.svc.PlaceOrder(ctx, placeRequest("stripe"))
		require.NoError(t, err)
		assert.Equal(t, "https://checkout.stripe.example/c/cs_test_1", resp.RedirectURL)

		stored, err := f.repo.GetOrderByID(ctx, resp.OrderID)
		require.NoError(t, err)
		require.NotNil(t, stored.GatewayReference)
		assert.Equal(t, "cs_test_1", *stored.GatewayReference)
	})

	t.Run("Gateway failure leaves the order pending", func(t *testing.T) {
		f := newFixture(t, &fakeSessions{err: errors.New("stripe: 503")})
		resp, err := f.svc.PlaceOrder(ctx, placeRequest("stripe"))

		assert.Nil(t, resp)
		assert.ErrorIs(t, err, ErrGatewayUnavailable)

		pending, err := f.repo.ListOrders(ctx, domain.ListOrdersFilter{States: []domain.PaymentState{domain.StatePending}})
		require.NoError(t, err)
		assert.Len(t, pending, 1)
	})
}

func TestOrderService_ConfirmVerification(t *testing.T) {
	ctx := context.Background()

	t.Run("Success twice is idempotent", func(t *testing.T) {
		f := newFixture(t, nil)
		order := f.placePending(t, "stripe")

		first, err := f.svc.ConfirmVerification(ctx, order.ID, "user-1", true)
		require.NoError(t, err)
		assert.True(t, first.Success)
		assert.Equal(t, domain.StatePaid, first.PaymentState)
		assert.True(t, first.Transitioned)

		second, err := f.svc.ConfirmVerification(ctx, order.ID, "user-1", true)
		require.NoError(t, err)
		assert.True(t, second.Success)
		assert.Equal(t, domain.StatePaid, second.PaymentState)
		assert.False(t, second.Transitioned)

		assert.Equal(t, 1, f.publisher.count(domain.TopicOrderPaid))
		f.users.AssertNumberOfCalls(t, "ClearCart", 2)
	})

	t.Run("Failure cancels and removes the order", func(t *testing.T) {
		f := newFixture(t, nil)
		order := f.placePending(t, "payfast")

		res, err := f.svc.ConfirmVerification(ctx, order.ID, "user-1", false)
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, domain.StateCancelled, res.PaymentState)

		_, err = f.repo.GetOrderByID(ctx, order.ID)
		assert.ErrorIs(t, err, repository.ErrOrderNotFound)
		assert.Equal(t, 1, f.publisher.count(domain.TopicOrderCancelled))
		f.users.AssertNotCalled(t, "ClearCart", mock.Anything, mock.Anything)

		_, err = f.svc.ConfirmVerification(ctx, order.ID, "user-1", true)
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})

	t.Run("Failure after payment is rejected as finalized", func(t *testing.T) {
		f := newFixture(t, nil)
		order := f.placePending(t, "payfast")
		_, err := f.svc.ConfirmVerification(ctx, order.ID, "user-1", true)
		require.NoError(t, err)

		_, err = f.svc.ConfirmVerification(ctx, order.ID, "user-1", false)
		assert.ErrorIs(t, err, ErrOrderAlreadyFinalized)

		stored, _ := f.repo.GetOrderByID(ctx, order.ID)
		assert.Equal(t, domain.StatePaid, stored.PaymentState)
	})

	t.Run("Order of another user is not found", func(t *testing.T) {
		f := newFixture(t, nil)
		order := f.placePending(t, "payfast")

		_, err := f.svc.ConfirmVerification(ctx, order.ID, "intruder", true)
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})

	t.Run("COD orders are not verified", func(t *testing.T) {
		f := newFixture(t, nil)
		order := f.placePending(t, "cod")

		_, err := f.svc.ConfirmVerification(ctx, order.ID, "user-1", true)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("Success on a failed order is finalized conflict", func(t *testing.T) {
		mockRepo := new(repoMocks.MockOrderRepository)
		users := new(mocks.MockUserClient)
		svc := NewOrderService(Dependencies{OrderRepo: mockRepo, Users: users, Gateways: testRegistry(testPaymentConfig(), &fakeSessions{})}, deliveryCharge)

		failed := &domain.Order{ID: "o-1", UserID: "user-1", PaymentMethod: domain.PaymentMethodRegionalRedirect, PaymentState: domain.StateFailed}
		mockRepo.On("GetOrderByID", ctx, "o-1").Return(failed, nil).Once()

		_, err := svc.ConfirmVerification(ctx, "o-1", "user-1", true)

		assert.ErrorIs(t, err, ErrOrderAlreadyFinalized)
		users.AssertNotCalled(t, "ClearCart", mock.Anything, mock.Anything)
		mockRepo.AssertNotCalled(t, "CompareAndSwapState", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		mockRepo.AssertExpectations(t)
	})

	t.Run("Success loses the race to a failed state", func(t *testing.T) {
		mockRepo := new(repoMocks.MockOrderRepository)
		users := new(mocks.MockUserClient)
		svc := NewOrderService(Dependencies{OrderRepo: mockRepo, Users: users, Gateways: testRegistry(testPaymentConfig(), &fakeSessions{})}, deliveryCharge)

		pending := &domain.Order{ID: "o-1", UserID: "user-1", PaymentMethod: domain.PaymentMethodRegionalRedirect, PaymentState: domain.StatePending}
		mockRepo.On("GetOrderByID", ctx, "o-1").Return(pending, nil).Once()
		mockRepo.On("CompareAndSwapState", ctx, "o-1", domain.StatePending, domain.StatePaid, (*string)(nil)).
			Return(false, domain.StateFailed, nil).Once()

		_, err := svc.ConfirmVerification(ctx, "o-1", "user-1", true)

		assert.ErrorIs(t, err, ErrOrderAlreadyFinalized)
		users.AssertNotCalled(t, "ClearCart", mock.Anything, mock.Anything)
		mockRepo.AssertExpectations(t)
	})

	t.Run("Cancel of a paid order never touches the store", func(t *testing.T) {
		mockRepo := new(repoMocks.MockOrderRepository)
		svc := NewOrderService(Dependencies{OrderRepo: mockRepo, Gateways: testRegistry(testPaymentConfig(), &fakeSessions{})}, deliveryCharge)

		paid := &domain.Order{ID: "o-1", UserID: "user-1", PaymentMethod: domain.PaymentMethodHostedRedirect, PaymentState: domain.StatePaid}
		mockRepo.On("GetOrderByID", ctx, "o-1").Return(paid, nil).Once()

		_, err := svc.ConfirmVerification(ctx, "o-1", "user-1", false)

		assert.ErrorIs(t, err, ErrOrderAlreadyFinalized)
		mockRepo.AssertNotCalled(t, "DeleteIfState", mock.Anything, mock.Anything, mock.Anything)
		mockRepo.AssertExpectations(t)
	})
}

func TestOrderService_VerifyPayment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	order := f.placePending(t, "stripe")

	res, err := f.svc.VerifyPayment(ctx, "user-1", url.Values{"orderId": {order.ID}, "success": {"true"}, "payment_method": {"stripe"}})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, domain.StatePaid, res.PaymentState)

	_, err = f.svc.VerifyPayment(ctx, "user-1", url.Values{"success": {"true"}})
	assert.ErrorIs(t, err, ErrValidation)

	other := f.placePending(t, "stripe")
	res, err = f.svc.VerifyPayment(ctx, "user-1", url.Values{"orderId": {other.ID}, "success": {"false"}})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, domain.StateCancelled, res.PaymentState)

	// Tanpa flag eksplisit order tidak boleh dibatalkan.
	pending := f.placePending(t, "payfast")
	for _, params := range []url.Values{
		{"orderId": {pending.ID}},
		{"orderId": {pending.ID}, "success": {"1"}},
		{"orderId": {pending.ID}, "success": {"yes"}},
	} {
		_, err = f.svc.VerifyPayment(ctx, "user-1", params)
		assert.ErrorIs(t, err, ErrValidation, "params %v", params)
	}
	stored, err := f.repo.GetOrderByID(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatePending, stored.PaymentState)
}

func TestOrderService_ApplyNotification(t *testing.T) {
	ctx := context.Background()

	t.Run("Completed notification marks order paid with gateway reference", func(t *testing.T) {
		f := newFixture(t, nil)
		order := f.placePending(t, "payfast")

		res, err := f.svc.ApplyNotification(ctx, domain.PaymentMethodRegionalRedirect, notifyPayload(order.ID, "COMPLETE", "750.00"))
		require.NoError(t, err)
		assert.True(t, res.Transitioned)
		assert.False(t, res.Duplicate)
		assert.Equal(t, domain.StatePaid, res.PaymentState)

		stored, _ := f.repo.GetOrderByID(ctx, order.ID)
		assert.Equal(t, domain.StatePaid, stored.PaymentState)
		require.NotNil(t, stored.GatewayReference)
		assert.Equal(t, "1089250", *stored.GatewayReference)
		assert.Equal(t, 1, f.publisher.count(domain.TopicOrderPaid))
		f.users.AssertNotCalled(t, "ClearCart", mock.Anything, mock.Anything)
	})

	t.Run("Notification after user verification still records gateway reference", func(t *testing.T) {
		f := newFixture(t, nil)
		order := f.placePending(t, "payfast")

		_, err := f.svc.ConfirmVerification(ctx, order.ID, "user-1", true)
		require.NoError(t, err)

		res, err := f.svc.ApplyNotification(ctx, domain.PaymentMethodRegionalRedirect, notifyPayload(order.ID, "COMPLETE", "750.00"))
		require.NoError(t, err)
		assert.False(t, res.Transitioned)
		assert.Equal(t, domain.StatePaid, res.PaymentState)

		stored, _ := f.repo.GetOrderByID(ctx, order.ID)
		require.NotNil(t, stored.GatewayReference)
		assert.Equal(t, "1089250", *stored.GatewayReference)
		assert.Equal(t, 1, f.publisher.count(domain.TopicOrderPaid))
	})

	t.Run("Retried notification is a no-op", func(t *testing.T) {
		f := newFixture(t, nil)
		order := f.placePending(t, "payfast")
		payload := notifyPayload(order.ID, "COMPLETE", "750.00")

		_, err := f.svc.ApplyNotification(ctx, domain.PaymentMethodRegionalRedirect, payload)
		require.NoError(t, err)
		res, err := f.svc.ApplyNotification(ctx, domain.PaymentMethodRegionalRedirect, payload)
		require.NoError(t, err)

		assert.True(t, res.Duplicate)
		assert.False(t, res.Transitioned)
		assert.Equal(t, domain.StatePaid, res.PaymentState)
		assert.Equal(t, 1, f.publisher.count(domain.TopicOrderPaid))
	})

	t.Run("Tampered amount is rejected and order stays pending", func(t *testing.T) {
		f := newFixture(t, nil)
		order := f.placePending(t, "payfast")
		payload := notifyPayload(order.ID, "COMPLETE", "750.00")
		payload.Set("amount_gross", "1.00")

		res, err := f.svc.ApplyNotification(ctx, domain.PaymentMethodRegionalRedirect, payload)

		assert.Nil(t, res)
		assert.ErrorIs(t, err, ErrInvalidSignature)
		stored, _ := f.repo.GetOrderByID(ctx, order.ID)
		assert.Equal(t, domain.StatePending, stored.PaymentState)
	})

	t.Run("Signed but wrong gross amount is rejected", func(t *testing.T) {
		f := newFixture(t, nil)
		order := f.placePending(t, "payfast")

		_, err := f.svc.ApplyNotification(ctx, domain.PaymentMethodRegionalRedirect, notifyPayload(order.ID, "COMPLETE", "10.00"))

		assert.ErrorIs(t, err, ErrValidation)
		stored, _ := f.repo.GetOrderByID(ctx, order.ID)
		assert.Equal(t, domain.StatePending, stored.PaymentState)
	})

	t.Run("Failed notification leaves order pending", func(t *testing.T) {
		f := newFixture(t, nil)
		order := f.placePending(t, "payfast")

		res, err := f.svc.ApplyNotification(ctx, domain.PaymentMethodRegionalRedirect, notifyPayload(order.ID, "FAILED", "750.00"))
		require.NoError(t, err)
		assert.False(t, res.Transitioned)
		assert.Equal(t, domain.StatePending, res.PaymentState)

		stored, err := f.repo.GetOrderByID(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatePending, stored.PaymentState)
	})

	t.Run("Unknown merchant reference", func(t *testing.T) {
		f := newFixture(t, nil)
		_, err := f.svc.ApplyNotification(ctx, domain.PaymentMethodRegionalRedirect, notifyPayload("missing", "COMPLETE", "750.00"))
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})

	t.Run("Notification channel unsupported for hosted redirect", func(t *testing.T) {
		f := newFixture(t, nil)
		_, err := f.svc.ApplyNotification(ctx, domain.PaymentMethodHostedRedirect, url.Values{})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("Guard hit short-circuits the store", func(t *testing.T) {
		mockRepo := new(repoMocks.MockOrderRepository)
		guard := new(mocks.MockNotificationGuard)
		guard.On("Seen", ctx, "payfast", "o-1:1089250:COMPLETE").Return(true, nil).Once()
		svc := NewOrderService(Dependencies{OrderRepo: mockRepo, Guard: guard, Gateways: testRegistry(testPaymentConfig(), &fakeSessions{})}, deliveryCharge)

		res, err := svc.ApplyNotification(ctx, domain.PaymentMethodRegionalRedirect, notifyPayload("o-1", "COMPLETE", "750.00"))

		require.NoError(t, err)
		assert.True(t, res.Duplicate)
		assert.Equal(t, domain.StatePaid, res.PaymentState)
		mockRepo.AssertNotCalled(t, "GetOrderByID", mock.Anything, mock.Anything)
		guard.AssertExpectations(t)
	})

	t.Run("Guard failure falls back to the store", func(t *testing.T) {
		mockRepo := new(repoMocks.MockOrderRepository)
		guard := new(mocks.MockNotificationGuard)
		svc := NewOrderService(Dependencies{OrderRepo: mockRepo, Guard: guard, Gateways: testRegistry(testPaymentConfig(), &fakeSessions{})}, deliveryCharge)

		pending := &domain.Order{ID: "o-1", UserID: "user-1", Amount: decimal.NewFromInt(750), PaymentMethod: domain.PaymentMethodRegionalRedirect, PaymentState: domain.StatePending}
		ref := "1089250"
		guard.On("Seen", ctx, "payfast", "o-1:1089250:COMPLETE").Return(false, errors.New("redis: connection refused")).Once()
		mockRepo.On("GetOrderByID", ctx, "o-1").Return(pending, nil).Once()
		mockRepo.On("RecordNotification", ctx, mock.MatchedBy(func(n *domain.PaymentNotification) bool {
			return n.OrderID == "o-1" && n.GatewayStatus == "COMPLETE" && n.GatewayReference == ref
		})).Return(true, nil).Once()
		mockRepo.On("CompareAndSwapState", ctx, "o-1", domain.StatePending, domain.StatePaid, &ref).Return(true, domain.StatePaid, nil).Once()
		guard.On("Remember", ctx, "payfast", "o-1:1089250:COMPLETE").Return(errors.New("redis: connection refused")).Once()

		res, err := svc.ApplyNotification(ctx, domain.PaymentMethodRegionalRedirect, notifyPayload("o-1", "COMPLETE", "750.00"))

		require.NoError(t, err)
		assert.True(t, res.Transitioned)
		mockRepo.AssertExpectations(t)
		guard.AssertExpectations(t)
	})

	t.Run("Completed notification for a failed order is finalized conflict", func(t *testing.T) {
		mockRepo := new(repoMocks.MockOrderRepository)
		svc := NewOrderService(Dependencies{OrderRepo: mockRepo, Gateways: testRegistry(testPaymentConfig(), &fakeSessions{})}, deliveryCharge)

		failed := &domain.Order{ID: "o-1", Amount: decimal.NewFromInt(750), PaymentMethod: domain.PaymentMethodRegionalRedirect, PaymentState: domain.StateFailed}
		mockRepo.On("GetOrderByID", ctx, "o-1").Return(failed, nil).Once()
		mockRepo.On("RecordNotification", ctx, mock.Anything).Return(true, nil).Once()

		_, err := svc.ApplyNotification(ctx, domain.PaymentMethodRegionalRedirect, notifyPayload("o-1", "COMPLETE", "750.00"))

		assert.ErrorIs(t, err, ErrOrderAlreadyFinalized)
		mockRepo.AssertNotCalled(t, "CompareAndSwapState", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		mockRepo.AssertExpectations(t)
	})

	t.Run("Audit store failure surfaces as internal error", func(t *testing.T) {
		mockRepo := new(repoMocks.MockOrderRepository)
		svc := NewOrderService(Dependencies{OrderRepo: mockRepo, Gateways: testRegistry(testPaymentConfig(), &fakeSessions{})}, deliveryCharge)

		pending := &domain.Order{ID: "o-1", Amount: decimal.NewFromInt(750), PaymentMethod: domain.PaymentMethodRegionalRedirect, PaymentState: domain.StatePending}
		mockRepo.On("GetOrderByID", ctx, "o-1").Return(pending, nil).Once()
		mockRepo.On("RecordNotification", ctx, mock.Anything).Return(false, errors.New("db down")).Once()

		_, err := svc.ApplyNotification(ctx, domain.PaymentMethodRegionalRedirect, notifyPayload("o-1", "COMPLETE", "750.00"))

		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrValidation)
		assert.NotErrorIs(t, err, ErrOrderNotFound)
		mockRepo.AssertNotCalled(t, "CompareAndSwapState", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestOrderService_VerificationRacesNotification(t *testing.T) {
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		f := newFixture(t, nil)
		order := f.placePending(t, "payfast")

		var (
			wg                   sync.WaitGroup
			verifyErr, notifyErr error
			verifyRes            *domain.VerificationResult
			notifyRes            *domain.NotificationResult
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			verifyRes, verifyErr = f.svc.ConfirmVerification(ctx, order.ID, "user-1", true)
		}()
		go func() {
			defer wg.Done()
			notifyRes, notifyErr = f.svc.ApplyNotification(ctx, domain.PaymentMethodRegionalRedirect, notifyPayload(order.ID, "COMPLETE", "750.00"))
		}()
		wg.Wait()

		require.NoError(t, verifyErr)
		require.NoError(t, notifyErr)
		assert.Equal(t, domain.StatePaid, verifyRes.PaymentState)
		assert.Equal(t, domain.StatePaid, notifyRes.PaymentState)
		assert.True(t, verifyRes.Transitioned != notifyRes.Transitioned, "exactly one side performs the transition")
		assert.Equal(t, 1, f.publisher.count(domain.TopicOrderPaid))
	}
}

func TestOrderService_ListOrders(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	paid := f.placePending(t, "payfast")
	f.placePending(t, "cod")
	_, err := f.svc.ConfirmVerification(ctx, paid.ID, "user-1", true)
	require.NoError(t, err)

	all, err := f.svc.ListOrders(ctx, domain.ListOrdersFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	onlyPaid, err := f.svc.ListOrders(ctx, domain.ListOrdersFilter{States: []domain.PaymentState{domain.StatePaid}})
	require.NoError(t, err)
	require.Len(t, onlyPaid, 1)
	assert.Equal(t, paid.ID, onlyPaid[0].ID)

	mine, err := f.svc.ListUserOrders(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	_, err = f.svc.ListUserOrders(ctx, "")
	assert.ErrorIs(t, err, ErrValidation)
}
