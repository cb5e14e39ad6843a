package main

import (
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ridloal/e-commerce-go-checkout/internal/platform/config"
	"github.com/ridloal/e-commerce-go-checkout/internal/platform/database"
	"github.com/ridloal/e-commerce-go-checkout/internal/platform/logger"
	"github.com/ridloal/e-commerce-go-checkout/internal/platform/metrics"
	productAPI "github.com/ridloal/e-commerce-go-checkout/internal/product/api"
	productRepo "github.com/ridloal/e-commerce-go-checkout/internal/product/repository"
	productService "github.com/ridloal/e-commerce-go-checkout/internal/product/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found, using process environment")
	}

	// Load Config
	dbCfg := config.LoadProductDBConfig()
	serverCfg := config.LoadServerConfig("8082")
	authCfg := config.LoadAuthConfig()

	logger.Info("Starting Product Service...")

	// Setup Database
	db, err := database.Connect(dbCfg.DSN)
	if err != nil {
		logger.Error("Failed to connect to database for Product Service", err)
		return
	}
	defer db.Close()

	// Setup Dependencies
	prodRepository := productRepo.NewPostgresProductRepository(db)
	prodService := productService.NewProductService(prodRepository)
	productHandler := productAPI.NewProductHandler(prodService, authCfg.JWTSecret)
	m := metrics.NewServerMetrics("product", prometheus.DefaultRegisterer)

	// Setup Gin Router
	router := gin.Default()
	router.RedirectTrailingSlash = false
	router.Use(m.Middleware())
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	apiV1 := router.Group("/api/v1")
	productHandler.RegisterRoutes(apiV1)

	logger.Info("Product Service running on port " + serverCfg.Port)
	if err := router.Run(serverCfg.Port); err != nil {
		logger.Error("Failed to run Product Service server", err)
	}
}
