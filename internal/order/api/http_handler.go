package api

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ridloal/e-commerce-go-checkout/internal/order/domain"
	"github.com/ridloal/e-commerce-go-checkout/internal/order/service"
	"github.com/ridloal/e-commerce-go-checkout/internal/platform/auth"
	"github.com/ridloal/e-commerce-go-checkout/internal/platform/logger"
	"github.com/ridloal/e-commerce-go-checkout/internal/platform/metrics"
)

type OrderHandler struct {
	orderService service.OrderService
	jwtSecret    []byte
	metrics      *metrics.ServerMetrics
}

func NewOrderHandler(os service.OrderService, jwtSecret []byte, m *metrics.ServerMetrics) *OrderHandler {
	return &OrderHandler{orderService: os, jwtSecret: jwtSecret, metrics: m}
}

func (h *OrderHandler) RegisterRoutes(router *gin.RouterGroup) {
	orderRoutes := router.Group("/orders")
	{
		// Notifikasi gateway tidak membawa sesi user; keasliannya dicek lewat signature.
		orderRoutes.POST("/payfast/notify", h.PayFastNotify)

		authed := orderRoutes.Group("", auth.Middleware(h.jwtSecret))
		authed.POST("", h.PlaceOrder)
		authed.POST("/verify", h.VerifyPayment)
		authed.GET("/mine", h.ListMyOrders)
		authed.GET("", auth.RequireAdmin(), h.ListOrders)
	}
}

// writeServiceError memetakan sentinel error service ke status HTTP.
func writeServiceError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidSignature):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
	case errors.Is(err, service.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
	case errors.Is(err, service.ErrConfiguration):
		logger.Error(op+": payment method not configured", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Payment service is not properly configured"})
	case errors.Is(err, service.ErrGatewayUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Payment initialization failed, please try again"})
	default:
		logger.Error(op+": unhandled service error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func (h *OrderHandler) PlaceOrder(c *gin.Context) {
	var req domain.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload: " + err.Error()})
		return
	}
	req.UserID = auth.UserID(c)

	resp, err := h.orderService.PlaceOrder(c.Request.Context(), req)
	if err != nil {
		writeServiceError(c, "PlaceOrder Hdl", err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *OrderHandler) VerifyPayment(c *gin.Context) {
	var req domain.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload: " + err.Error()})
		return
	}

	var flag string
	switch v := req.Success.(type) {
	case bool:
		flag = strconv.FormatBool(v)
	case string:
		flag = v
	case nil:
		c.JSON(http.StatusBadRequest, gin.H{"error": "success flag is required"})
		return
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "success must be a boolean or \"true\"/\"false\""})
		return
	}

	params := url.Values{}
	params.Set("orderId", req.OrderID)
	params.Set("success", flag)
	if req.PaymentMethod != "" {
		params.Set("payment_method", req.PaymentMethod)
	}

	res, err := h.orderService.VerifyPayment(c.Request.Context(), auth.UserID(c), params)
	if err != nil {
		if errors.Is(err, service.ErrOrderAlreadyFinalized) {
			logger.Warn("VerifyPayment Hdl: conflicting verification ignored", logger.Fields{"order_id": req.OrderID, "error": err.Error()})
			c.JSON(http.StatusOK, gin.H{"success": false, "order_id": req.OrderID, "message": "Order already finalized"})
			return
		}
		writeServiceError(c, "VerifyPayment Hdl", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// PayFastNotify menjawab gateway dengan teks polos; gateway hanya membaca status code.
func (h *OrderHandler) PayFastNotify(c *gin.Context) {
	method := domain.PaymentMethodRegionalRedirect
	if err := c.Request.ParseForm(); err != nil {
		h.metrics.ObserveNotification(string(method), "malformed")
		c.String(http.StatusBadRequest, "Malformed notification")
		return
	}

	res, err := h.orderService.ApplyNotification(c.Request.Context(), method, c.Request.PostForm)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidSignature):
			logger.Warn("PayFastNotify Hdl: rejected notification", logger.Fields{"error": err.Error(), "remote": c.ClientIP()})
			h.metrics.ObserveNotification(string(method), "invalid_signature")
			c.String(http.StatusBadRequest, "Invalid signature")
		case errors.Is(err, service.ErrValidation):
			logger.Warn("PayFastNotify Hdl: invalid notification", logger.Fields{"error": err.Error()})
			h.metrics.ObserveNotification(string(method), "invalid")
			c.String(http.StatusBadRequest, "Invalid notification")
		case errors.Is(err, service.ErrOrderNotFound):
			// Signature sudah valid; order yang dibatalkan user sudah dihapus. Jawab OK agar gateway berhenti retry.
			logger.Warn("PayFastNotify Hdl: notification for unknown order", logger.Fields{"error": err.Error()})
			h.metrics.ObserveNotification(string(method), "not_found")
			c.String(http.StatusOK, "OK")
		case errors.Is(err, service.ErrOrderAlreadyFinalized):
			logger.Warn("PayFastNotify Hdl: order already finalized", logger.Fields{"error": err.Error()})
			h.metrics.ObserveNotification(string(method), "finalized")
			c.String(http.StatusOK, "OK")
		default:
			logger.Error("PayFastNotify Hdl: failed to process notification", err)
			h.metrics.ObserveNotification(string(method), "error")
			c.String(http.StatusInternalServerError, "Error processing notification")
		}
		return
	}

	result := "ignored"
	switch {
	case res.Duplicate:
		result = "duplicate"
	case res.Transitioned:
		result = "paid"
	}
	h.metrics.ObserveNotification(string(method), result)
	c.String(http.StatusOK, "OK")
}

func (h *OrderHandler) ListOrders(c *gin.Context) {
	var filter domain.ListOrdersFilter
	if raw := strings.TrimSpace(c.Query("state")); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			st, ok := domain.ParsePaymentState(part)
			if !ok {
				c.JSON(http.StatusBadRequest, gin.H{"error": "unknown payment state: " + part})
				return
			}
			filter.States = append(filter.States, st)
		}
	}

	orders, err := h.orderService.ListOrders(c.Request.Context(), filter)
	if err != nil {
		writeServiceError(c, "ListOrders Hdl", err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) ListMyOrders(c *gin.Context) {
	orders, err := h.orderService.ListUserOrders(c.Request.Context(), auth.UserID(c))
	if err != nil {
		writeServiceError(c, "ListMyOrders Hdl", err)
		return
	}
	c.JSON(http.StatusOK, orders)
}
