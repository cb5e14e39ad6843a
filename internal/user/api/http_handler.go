package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ridloal/e-commerce-go-checkout/internal/platform/auth"
	"github.com/ridloal/e-commerce-go-checkout/internal/platform/logger"
	"github.com/ridloal/e-commerce-go-checkout/internal/user/domain"
	"github.com/ridloal/e-commerce-go-checkout/internal/user/service"
)

type UserHandler struct {
	userService   service.UserService
	jwtSecret     []byte
	internalToken string
}

func NewUserHandler(us service.UserService, jwtSecret []byte, internalToken string) *UserHandler {
	return &UserHandler{userService: us, jwtSecret: jwtSecret, internalToken: internalToken}
}

func (h *UserHandler) RegisterRoutes(router *gin.RouterGroup) {
	userRoutes := router.Group("/users")
	{
		userRoutes.POST("/register", h.Register)
		userRoutes.POST("/login", h.Login)

		cart := userRoutes.Group("/cart", auth.Middleware(h.jwtSecret))
		cart.GET("", h.GetCart)
		cart.POST("", h.AddToCart)
		cart.PUT("", h.UpdateCart)
	}
}

// RegisterInternalRoutes dipasang di root engine, bukan di bawah /api/v1.
func (h *UserHandler) RegisterInternalRoutes(router gin.IRouter) {
	internal := router.Group("/internal/users", auth.RequireInternalToken(h.internalToken))
	internal.DELETE("/:id/cart", h.ClearCart)
}

func (h *UserHandler) Register(c *gin.Context) {
	var req domain.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Error("Register: bad request", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload: " + err.Error()})
		return
	}

	user, err := h.userService.Register(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrUserAlreadyExists) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		logger.Error("Register: service error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register user"})
		return
	}

	c.JSON(http.StatusCreated, user)
}

func (h *UserHandler) Login(c *gin.Context) {
	var req domain.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Error("Login: bad request", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload: " + err.Error()})
		return
	}

	response, err := h.userService.Login(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		logger.Error("Login: service error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to login"})
		return
	}

	c.JSON(http.StatusOK, response)
}

func writeCartError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCartItem):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
	default:
		logger.Error(op+": service error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update cart"})
	}
}

func (h *UserHandler) GetCart(c *gin.Context) {
	cart, err := h.userService.GetCart(c.Request.Context(), auth.UserID(c))
	if err != nil {
		writeCartError(c, "GetCart", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cart": cart})
}

func (h *UserHandler) AddToCart(c *gin.Context) {
	var req domain.CartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload: " + err.Error()})
		return
	}
	cart, err := h.userService.AddToCart(c.Request.Context(), auth.UserID(c), req)
	if err != nil {
		writeCartError(c, "AddToCart", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cart": cart})
}

func (h *UserHandler) UpdateCart(c *gin.Context) {
	var req domain.CartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload: " + err.Error()})
		return
	}
	cart, err := h.userService.UpdateCart(c.Request.Context(), auth.UserID(c), req)
	if err != nil {
		writeCartError(c, "UpdateCart", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cart": cart})
}

// ClearCart dipanggil order service setelah order dibuat atau pembayaran terverifikasi.
func (h *UserHandler) ClearCart(c *gin.Context) {
	userID := c.Param("id")
	if err := h.userService.ClearCart(c.Request.Context(), userID); err != nil {
		writeCartError(c, "ClearCart", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Cart cleared"})
}
