package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/booknest/booknest-api/internal/auth"
	"github.com/booknest/booknest-api/internal/catalog"
	"github.com/booknest/booknest-api/internal/database"
	"github.com/booknest/booknest-api/internal/delivery"
	"github.com/booknest/booknest-api/internal/gateway"
	"github.com/booknest/booknest-api/internal/identity"
	"github.com/booknest/booknest-api/internal/purchase"
	"github.com/booknest/booknest-api/pkg/config"
	"github.com/booknest/booknest-api/pkg/middleware"

	"github.com/gin-gonic/gin"
	"gopkg.in/gomail.v2"
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	// Configure pretty logging for development
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global log level
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main initializes and runs the BookNest API server with graceful shutdown
// support. Configuration problems, including missing gateway credentials,
// fail startup rather than the first request.
func main() {
	cfg, err := config.Load()
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize database
	db, err := database.NewDatabase(cfg.DBPath)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// Initialize router
	router := gin.Default()

	// Payment gateway adapter, constructed once with validated credentials
	gatewayClient, err := gateway.NewClient(gateway.Config{
		KeyID:     cfg.RazorpayKeyID,
		KeySecret: cfg.RazorpayKeySecret,
		BaseURL:   cfg.RazorpayBaseURL,
	})
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize payment gateway")
	}

	// Outbound mail transport
	dialer := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword)
	deliveryService := delivery.NewService(dialer, cfg.MailFrom, cfg.UploadDir)

	// Initialize services and handlers
	users := identity.NewDatabase(db)
	authService := auth.NewService(cfg.JWTSecret, users)
	authHandlers := auth.NewGinHandlers(authService, users)

	catalogService := catalog.NewService(db)
	catalogHandlers := catalog.NewGinHandlers(catalogService)

	purchaseService := purchase.NewService(db, gatewayClient, deliveryService)
	purchaseHandlers := purchase.NewGinHandlers(purchaseService)

	// Create and start the pending purchase processor
	purchaseProcessor := purchase.NewProcessor(purchaseService.GetDB())
	processorCtx, processorCancel := context.WithCancel(context.Background())
	defer processorCancel()

	go purchaseProcessor.Start(processorCtx)

	// Setup middleware
	router.Use(middleware.Metrics())
	router.Use(middleware.RateLimit())

	// Setup API routes
	setupRoutes(router, cfg.JWTSecret, authHandlers, catalogHandlers, purchaseHandlers)

	// Create server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints and their handlers.
// Auth routes are public; catalog reads are public; everything touching a
// wallet or a purchase requires a valid session token (cookie or bearer).
func setupRoutes(
	router *gin.Engine,
	jwtSecret string,
	authHandlers *auth.GinHandlers,
	catalogHandlers *catalog.GinHandlers,
	purchaseHandlers *purchase.GinHandlers,
) {
	router.GET("/metrics", middleware.PrometheusHandler())

	// Auth routes
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/register", authHandlers.RegisterHandler())
		authGroup.POST("/login", authHandlers.LoginHandler())
		authGroup.GET("/me", middleware.JWTAuth(jwtSecret), authHandlers.MeHandler())
	}

	// Catalog routes
	books := router.Group("/books")
	{
		books.GET("", catalogHandlers.ListBooksHandler())
		books.GET("/:bookId", catalogHandlers.GetBookHandler())
		books.POST("", middleware.JWTAuth(jwtSecret), catalogHandlers.CreateBookHandler())
	}

	// Purchase routes
	purchases := router.Group("/purchase")
	purchases.Use(middleware.JWTAuth(jwtSecret))
	{
		purchases.POST("/create-order", purchaseHandlers.CreateOrderHandler())
		purchases.POST("/verify-payment", purchaseHandlers.VerifyPaymentHandler())
		purchases.POST("/buy-with-wallet", purchaseHandlers.BuyWithWalletHandler())
		purchases.POST("/resend-pdf/:purchaseId", purchaseHandlers.ResendPDFHandler())
		purchases.GET("/:purchaseId", purchaseHandlers.GetPurchaseHandler())
	}
}
