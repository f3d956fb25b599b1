package main

import (
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"analytics-service/internal/config"
	"analytics-service/internal/handlers"
	"analytics-service/internal/loader"
	"analytics-service/internal/middleware"
	"analytics-service/internal/models"
	"analytics-service/internal/repository"
	"analytics-service/internal/services"
)

// @title Marketing Analytics API
// @version 1.0.0
// @description Business-intelligence dashboard backend: monthly KPIs, attribution, discount impact, retention, segmentation, and channel efficiency derived from order and ad-spend datasets
// @termsOfService http://swagger.io/terms/

// @contact.name Analytics API Support
// @contact.url http://www.example.com/support
// @contact.email support@example.com

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)
	logger.SetLevel(logrus.InfoLevel)

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found, using system environment variables")
	}

	// Initialize configuration
	cfg := config.Load()

	// Select the dataset source: CSV exports by default, the marketplace
	// database when configured
	var source services.DatasetSource
	switch cfg.DataSource {
	case "database":
		db, err := config.InitDB(cfg)
		if err != nil {
			logger.Fatal("Failed to connect to database:", err)
		}
		if err := db.AutoMigrate(&models.Order{}, &models.SpendRecord{}); err != nil {
			logger.Fatalf("Failed to run migrations: %v", err)
		}
		source = repository.NewDatasetRepository(db, logger)
		logger.Info("Using database dataset source")
	default:
		source = loader.NewCSVSource(cfg.OrdersCSVPath, cfg.SpendCSVPath, logger)
		logger.WithFields(logrus.Fields{
			"orders": cfg.OrdersCSVPath,
			"spend":  cfg.SpendCSVPath,
		}).Info("Using CSV dataset source")
	}

	// Initialize service and handlers
	analyticsService := services.NewAnalyticsService(source, logger)
	analyticsHandlers := handlers.NewAnalyticsHandlers(analyticsService, logger)

	// Initialize Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// Add CORS middleware
	router.Use(middleware.CORS())

	// Health check endpoints
	router.GET("/health", handlers.HealthCheck)
	router.GET("/ready", handlers.ReadinessCheck)

	// Dashboard API routes
	api := router.Group("/api/v1")
	{
		dashboard := api.Group("/dashboard")
		{
			dashboard.GET("", analyticsHandlers.GetDashboard)
			dashboard.GET("/kpis", analyticsHandlers.GetKPIs)
			dashboard.GET("/monthly", analyticsHandlers.GetMonthlySummary)
			dashboard.GET("/attribution", analyticsHandlers.GetAttribution)
			dashboard.GET("/discounts", analyticsHandlers.GetDiscounts)
			dashboard.GET("/customer-types", analyticsHandlers.GetCustomerTypes)
			dashboard.GET("/segments", analyticsHandlers.GetSegments)
			dashboard.GET("/efficiency", analyticsHandlers.GetEfficiency)
			dashboard.POST("/refresh", analyticsHandlers.Refresh)
		}
	}

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Port
	}

	logger.Infof("Analytics service starting on port %s", port)
	if err := router.Run(":" + port); err != nil {
		logger.Fatal("Failed to start server:", err)
	}
}
