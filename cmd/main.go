package main

import (
	"context"

	"github.com/thisloadme/one-ecommerce/internal/auth"
	"github.com/thisloadme/one-ecommerce/internal/cart"
	"github.com/thisloadme/one-ecommerce/internal/catalog"
	"github.com/thisloadme/one-ecommerce/internal/checkout"
	"github.com/thisloadme/one-ecommerce/internal/handler"
	mid "github.com/thisloadme/one-ecommerce/internal/middleware"
	"github.com/thisloadme/one-ecommerce/internal/store"
	"github.com/thisloadme/one-ecommerce/internal/tenant"
	"github.com/thisloadme/one-ecommerce/pkg/config"
	"github.com/thisloadme/one-ecommerce/pkg/database"
	"github.com/thisloadme/one-ecommerce/pkg/logger"
	"github.com/thisloadme/one-ecommerce/prometheus"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	appConfig, err := config.Load("one-ecommerce")
	if err != nil {
		// Can't use structured logger yet since it's not initialized
		panic("Failed to load configuration: " + err.Error())
	}

	log := logger.GetLogger()
	defer log.Sync()

	log.Info("Starting one-ecommerce", appConfig.LogConfig()...)

	// Initialize Prometheus metrics
	prometheus.InitMetrics(appConfig)
	log.Info("Prometheus metrics initialized",
		zap.String("metrics_prefix", appConfig.Metrics.Prefix))

	// Shared store
	shared, err := database.Connect(appConfig)
	if err != nil {
		log.Fatal("Failed to initialize shared store", zap.Error(err))
	}
	log.Info("Shared store connection established")

	// Tenant store routing
	opener, err := store.NewPgOpener(&appConfig.DB)
	if err != nil {
		log.Fatal("Failed to initialize tenant store opener", zap.Error(err))
	}
	router := store.NewRouter(shared, opener)

	// Domain services
	registry := tenant.NewRegistry(shared, opener, router)
	sessions := auth.NewSessions(shared, appConfig.Session.TokenTTL)
	ledger := cart.NewLedger(shared, router)
	coordinator := checkout.NewCoordinator(shared, router)
	aggregator := catalog.NewAggregator(registry, router)
	products := catalog.NewProducts()

	if tenants, err := registry.List(context.Background(), ""); err == nil {
		prometheus.TenantStoresGauge.Set(float64(len(tenants)))
	}

	// Handlers
	authHandler := handler.NewAuthHandler(shared, sessions, registry)
	tenantHandler := handler.NewTenantHandler(registry)
	productHandler := handler.NewProductHandler(products, aggregator)
	cartHandler := handler.NewCartHandler(registry, ledger, coordinator)

	// Initialize Echo instance
	e := echo.New()

	// Middleware
	e.Use(middleware.Recover())
	e.Use(mid.RequestIDMiddleware)
	e.Use(mid.MetricsMiddleware)

	// Metrics endpoint
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Health check endpoint
	e.GET("/health", handler.HealthCheck)

	// Public routes
	e.POST("/login", authHandler.Login)
	e.POST("/register", authHandler.Register)

	// Authenticated routes
	authed := e.Group("", mid.SessionAuth(sessions))
	authed.POST("/logout", authHandler.Logout)
	authed.GET("/tenants", tenantHandler.ListTenants)
	authed.GET("/tenants/:id", tenantHandler.GetTenant)
	authed.GET("/products", productHandler.ListAllProducts)

	// Shopper routes
	shopper := authed.Group("", mid.RequireShopper(shared))
	shopper.GET("/cart", cartHandler.GetCart)
	shopper.POST("/cart/:product", cartHandler.AddToCart)
	shopper.DELETE("/cart/:product", cartHandler.RemoveFromCart)
	shopper.POST("/checkout", cartHandler.Checkout)

	// Host-routed tenant administration
	tenantScoped := authed.Group("/tenant", mid.TenantFromHost(router))
	tenantScoped.GET("", tenantHandler.TenantInfo)
	tenantScoped.GET("/products", productHandler.ListProducts)
	tenantScoped.POST("/products", productHandler.CreateProduct)
	tenantScoped.GET("/products/:id", productHandler.GetProduct)
	tenantScoped.PUT("/products/:id", productHandler.UpdateProduct)
	tenantScoped.DELETE("/products/:id", productHandler.DeleteProduct)

	// Start server
	port := appConfig.Server.Port
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Server error", zap.Error(err))
	}
}
