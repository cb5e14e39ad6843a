package main

import (
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ridloal/e-commerce-go-checkout/internal/platform/config"
	"github.com/ridloal/e-commerce-go-checkout/internal/platform/database"
	"github.com/ridloal/e-commerce-go-checkout/internal/platform/logger"
	"github.com/ridloal/e-commerce-go-checkout/internal/platform/metrics"
	userAPI "github.com/ridloal/e-commerce-go-checkout/internal/user/api"
	userRepo "github.com/ridloal/e-commerce-go-checkout/internal/user/repository"
	userService "github.com/ridloal/e-commerce-go-checkout/internal/user/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found, using process environment")
	}

	// Load Config
	dbCfg := config.LoadUserDBConfig()
	serverCfg := config.LoadServerConfig("8081") // User service default port 8081
	authCfg := config.LoadAuthConfig()

	logger.Info("Starting User Service...")

	// Setup Database
	db, err := database.Connect(dbCfg.DSN)
	if err != nil {
		logger.Error("Failed to connect to database", err)
		return
	}
	defer db.Close()

	// Setup Dependencies
	userRepository := userRepo.NewPostgresUserRepository(db)
	usrService := userService.NewUserService(userRepository, authCfg)
	userHandler := userAPI.NewUserHandler(usrService, authCfg.JWTSecret, authCfg.InternalToken)
	m := metrics.NewServerMetrics("user", prometheus.DefaultRegisterer)

	// Setup Gin Router
	router := gin.Default() // Default with Logger and Recovery middleware
	router.Use(m.Middleware())
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Group routes under /api/v1
	apiV1 := router.Group("/api/v1")
	userHandler.RegisterRoutes(apiV1)
	// Endpoint internal tidak lewat API gateway
	userHandler.RegisterInternalRoutes(router)

	logger.Info("User Service running on port " + serverCfg.Port)
	if err := router.Run(serverCfg.Port); err != nil {
		logger.Error("Failed to run server", err)
	}
}
