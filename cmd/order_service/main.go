package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stripe/stripe-go/v76/client"

	"github.com/ridloal/e-commerce-go-checkout/internal/order/api"
	"github.com/ridloal/e-commerce-go-checkout/internal/order/repository"
	"github.com/ridloal/e-commerce-go-checkout/internal/order/service"
	"github.com/ridloal/e-commerce-go-checkout/internal/payment"
	"github.com/ridloal/e-commerce-go-checkout/internal/platform/config"
	"github.com/ridloal/e-commerce-go-checkout/internal/platform/database"
	"github.com/ridloal/e-commerce-go-checkout/internal/platform/events"
	"github.com/ridloal/e-commerce-go-checkout/internal/platform/logger"
	"github.com/ridloal/e-commerce-go-checkout/internal/platform/metrics"
	"github.com/ridloal/e-commerce-go-checkout/internal/platform/redisx"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found, using process environment")
	}

	// Load Config
	dbCfg := config.LoadOrderDBConfig()
	serverCfg := config.LoadServerConfig("8084") // Order service default port 8084
	payCfg := config.LoadPaymentConfig()
	authCfg := config.LoadAuthConfig()
	urls := config.LoadServiceURLs()
	redisCfg := config.LoadRedisConfig()
	kafkaCfg := config.LoadKafkaConfig()

	logger.Info("Starting Order Service...")

	// ORDER_STORE=memory untuk development tanpa Postgres
	var orderRepository repository.OrderRepository
	if config.GetEnv("ORDER_STORE", "postgres") == "memory" {
		logger.Warn("Order Service using in-memory store; orders are lost on restart")
		orderRepository = repository.NewMemoryOrderRepository()
	} else {
		db, err := database.Connect(dbCfg.DSN)
		if err != nil {
			logger.Error("Failed to connect to database for Order Service", err)
			return
		}
		defer func(db *sql.DB) { _ = db.Close() }(db)
		orderRepository = repository.NewPostgresOrderRepository(db)
	}

	// Payment gateways
	var sessions payment.CheckoutSessionCreator
	if payCfg.Stripe.SecretKey != "" {
		sessions = client.New(payCfg.Stripe.SecretKey, nil).CheckoutSessions
	}
	gateways := payment.NewRegistry(
		payment.NewCODAdapter(),
		payment.NewHostedRedirectAdapter(sessions, payCfg),
		payment.NewRegionalRedirectAdapter(payCfg),
	)
	for _, m := range gateways.Methods() {
		adapter, _ := gateways.For(m)
		if err := adapter.CheckConfig(); err != nil {
			logger.Warn("Payment method not configured, requests will be refused", logger.Fields{"method": string(m), "error": err.Error()})
		}
	}

	deps := service.Dependencies{
		OrderRepo: orderRepository,
		Catalog:   service.NewHTTPCatalogClient(urls.ProductServiceURL),
		Users:     service.NewHTTPUserClient(urls.UserServiceURL, authCfg.InternalToken),
		Gateways:  gateways,
	}

	if redisCfg.Addr != "" {
		rdb := redisx.New(redisCfg)
		defer rdb.Close()
		deps.Guard = redisx.NewNotificationGuard(rdb)
		logger.Info("Notification dedup via Redis at " + redisCfg.Addr)
	}

	if kafkaCfg.Enabled() {
		producer := events.NewProducer(kafkaCfg.Brokers, 256)
		producer.Start()
		defer producer.Close()
		deps.Publisher = events.NewPublisher(producer, "order-service")
		logger.Info("Publishing order events to Kafka", logger.Fields{"brokers": kafkaCfg.Brokers})
	}

	ordService := service.NewOrderService(deps, payCfg.DeliveryCharge)
	m := metrics.NewServerMetrics("order", prometheus.DefaultRegisterer)
	orderHandler := api.NewOrderHandler(ordService, authCfg.JWTSecret, m)

	// Setup Gin Router
	router := gin.Default()
	router.Use(m.Middleware())
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	apiV1 := router.Group("/api/v1")
	orderHandler.RegisterRoutes(apiV1)

	srv := &http.Server{
		Addr:              serverCfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("Order Service running on port " + serverCfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Failed to run Order Service server", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down Order Service...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Order Service shutdown failed", err)
	}
}
