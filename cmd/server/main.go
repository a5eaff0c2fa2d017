package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alansalbums/alans-albums-backend/config"
	"github.com/alansalbums/alans-albums-backend/internal/app/controller"
	"github.com/alansalbums/alans-albums-backend/internal/app/repository"
	"github.com/alansalbums/alans-albums-backend/internal/app/service"
	"github.com/alansalbums/alans-albums-backend/internal/db"
	"github.com/alansalbums/alans-albums-backend/internal/middleware"
	"github.com/alansalbums/alans-albums-backend/internal/router"
	"github.com/alansalbums/alans-albums-backend/internal/scheduler"
	"github.com/alansalbums/alans-albums-backend/internal/storage"
	ws "github.com/alansalbums/alans-albums-backend/internal/websocket"
	"github.com/alansalbums/alans-albums-backend/pkg/cache"
	"github.com/alansalbums/alans-albums-backend/pkg/discogs"
	"github.com/alansalbums/alans-albums-backend/pkg/logger"
	"github.com/alansalbums/alans-albums-backend/pkg/payment/stripe"
	redisclient "github.com/alansalbums/alans-albums-backend/pkg/redis"
	"github.com/alansalbums/alans-albums-backend/pkg/util"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", err)
	}

	// Initialize logger
	logLevel := "info"
	logFormat := "json"
	if cfg.Server.Environment == "development" {
		logLevel = "debug"
		logFormat = "console"
	}
	logger.Initialize(logger.Config{
		Level:       logLevel,
		Format:      logFormat,
		EnableColor: true,
	})

	logger.Info("Starting Alan's Albums backend", map[string]interface{}{
		"environment": cfg.Server.Environment,
		"port":        cfg.Server.Port,
		"log_level":   logLevel,
	})

	// Initialize database
	if err := db.Initialize(&cfg.Database); err != nil {
		logger.Fatal("Failed to initialize database", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", err)
		}
	}()

	if err := db.Migrate(); err != nil {
		logger.Fatal("Failed to run migrations", err)
	}

	// Redis holds session baskets, the Discogs cache and revoked tokens
	if err := redisclient.Init(&cfg.Redis); err != nil {
		logger.Fatal("Failed to connect to Redis", err)
	}
	defer redisclient.Close()

	// External services
	var images storage.ImageStore
	if cfg.S3.Bucket != "" {
		images = storage.NewS3Storage(cfg.S3.Region, cfg.S3.Bucket, cfg.S3.AccessKeyID, cfg.S3.SecretAccessKey, cfg.S3.BaseURL)
	} else {
		logger.Warn("S3 bucket not configured, image uploads disabled")
	}

	discogsClient, err := discogs.NewClient(discogs.Config{
		Token:      cfg.Discogs.Token,
		BaseURL:    cfg.Discogs.BaseURL,
		UserAgent:  cfg.Discogs.UserAgent,
		Timeout:    cfg.Discogs.Timeout,
		SearchTTL:  cfg.Discogs.SearchTTL,
		ReleaseTTL: cfg.Discogs.ReleaseTTL,
	}, cache.New(redisclient.GetClient(), cfg.Discogs.StaleTTL))
	if err != nil {
		logger.Fatal("Failed to create Discogs client", err)
	}

	stripeClient, err := stripe.NewClient(stripe.Config{
		SecretKey:     cfg.Payment.Stripe.SecretKey,
		WebhookSecret: cfg.Payment.Stripe.WebhookSecret,
		Currency:      cfg.Payment.Stripe.Currency,
		SuccessURL:    cfg.Payment.Stripe.SuccessURL,
		CancelURL:     cfg.Payment.Stripe.CancelURL,
	})
	if err != nil {
		logger.Fatal("Failed to create Stripe client", err)
	}
	if !cfg.Payment.Stripe.Enabled() {
		logger.Warn("Stripe secret key not set, hosted checkout disabled")
	}

	mailer := util.NewMailer(util.MailConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})

	// Initialize repositories
	database := db.GetDB()
	userRepo := repository.NewUserRepository(database)
	listingRepo := repository.NewListingRepository(database)
	basketRepo := repository.NewBasketRepository(database)
	orderRepo := repository.NewOrderRepository(database)
	messageRepo := repository.NewMessageRepository(database)
	passwordResetRepo := repository.NewPasswordResetRepository(database)
	sessionStore := repository.NewSessionBasketStore(redisclient.GetClient(), cfg.Session.TTL)

	// Initialize services
	authService := service.NewAuthService(
		userRepo,
		cfg.JWT.Secret,
		cfg.JWT.AccessTokenExpiry,
		cfg.JWT.RefreshTokenExpiry,
	)
	listingService := service.NewListingService(listingRepo, images)
	catalogService := service.NewCatalogService(discogsClient)
	basketService := service.NewBasketService(database, basketRepo, listingRepo, sessionStore)
	checkoutService := service.NewCheckoutService(database, basketService, listingRepo, orderRepo, stripeClient)
	orderService := service.NewOrderService(orderRepo)
	passwordResetService := service.NewPasswordResetService(passwordResetRepo, userRepo, mailer, cfg.Server.PublicURL)

	// the hub counts unread messages through the message service, which in
	// turn notifies through the hub
	var messageService service.MessageService
	hub := ws.NewHub(unreadCounterFunc(func(viewer service.Viewer) (int64, error) {
		return messageService.UnreadCount(viewer)
	}))
	notifier := service.MultiNotifier{
		ws.NewNotifier(hub),
		service.NewMailNotifier(mailer, cfg.SMTP.StaffEmail),
	}
	messageService = service.NewMessageService(messageRepo, userRepo, images, notifier, cfg.Server.PublicURL)

	go hub.Run()
	defer hub.Stop()

	stockScheduler := scheduler.NewStockScheduler(cfg.Scheduler.UnfeatureSpec, listingService).
		WithTokenPurge(cfg.Scheduler.ResetPurgeSpec, passwordResetService)
	if err := stockScheduler.Start(); err != nil {
		logger.Fatal("Failed to start stock scheduler", err)
	}
	defer stockScheduler.Stop()

	// Initialize controllers
	authController := controller.NewAuthController(authService, basketService, passwordResetService)
	listingController := controller.NewListingController(listingService, catalogService)
	discogsController := controller.NewDiscogsController(catalogService)
	basketController := controller.NewBasketController(basketService, checkoutService)
	webhookController := controller.NewWebhookController(checkoutService)
	messageController := controller.NewMessageController(messageService)
	orderController := controller.NewOrderController(orderService)
	uploadController := controller.NewUploadController(images)
	wsController := controller.NewWSController(hub, cfg.CORS.AllowedOrigins)

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)

	r := router.NewRouter(
		authController,
		listingController,
		discogsController,
		basketController,
		webhookController,
		messageController,
		orderController,
		uploadController,
		wsController,
		authMiddleware,
		cfg,
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           r.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server started successfully", map[string]interface{}{
			"address": srv.Addr,
			"pid":     os.Getpid(),
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", err)
	}
	logger.Info("Server stopped successfully")
}

// unreadCounterFunc adapts a function to ws.UnreadCounter
type unreadCounterFunc func(viewer service.Viewer) (int64, error)

func (f unreadCounterFunc) UnreadCount(viewer service.Viewer) (int64, error) {
	return f(viewer)
}
