package router

import (
	"net/http"

	"github.com/alansalbums/alans-albums-backend/config"
	"github.com/alansalbums/alans-albums-backend/internal/app/controller"
	"github.com/alansalbums/alans-albums-backend/internal/middleware"
	"github.com/gin-gonic/gin"
)

type Router struct {
	authController    *controller.AuthController
	listingController *controller.ListingController
	discogsController *controller.DiscogsController
	basketController  *controller.BasketController
	webhookController *controller.WebhookController
	messageController *controller.MessageController
	orderController   *controller.OrderController
	uploadController  *controller.UploadController
	wsController      *controller.WSController
	authMiddleware    *middleware.AuthMiddleware
	config            *config.Config
}

func NewRouter(
	authController *controller.AuthController,
	listingController *controller.ListingController,
	discogsController *controller.DiscogsController,
	basketController *controller.BasketController,
	webhookController *controller.WebhookController,
	messageController *controller.MessageController,
	orderController *controller.OrderController,
	uploadController *controller.UploadController,
	wsController *controller.WSController,
	authMiddleware *middleware.AuthMiddleware,
	cfg *config.Config,
) *Router {
	return &Router{
		authController:    authController,
		listingController: listingController,
		discogsController: discogsController,
		basketController:  basketController,
		webhookController: webhookController,
		messageController: messageController,
		orderController:   orderController,
		uploadController:  uploadController,
		wsController:      wsController,
		authMiddleware:    authMiddleware,
		config:            cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	gin.SetMode(r.config.Server.GinMode)

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.LoggingMiddleware())
	router.Use(corsMiddleware(r.config.CORS.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"message": "Alan's Albums API is running",
		})
	})

	auth := r.authMiddleware.Authenticate()
	optionalAuth := r.authMiddleware.OptionalAuthenticate()
	staff := r.authMiddleware.RequireStaff()
	session := middleware.Session(r.config.Session)

	v1 := router.Group("/api/v1")
	{
		authGroup := v1.Group("/auth")
		{
			// the session cookie identifies the basket merged at login
			authGroup.POST("/register", session, r.authController.Register)
			authGroup.POST("/login", session, r.authController.Login)
			authGroup.POST("/refresh", r.authController.RefreshToken)
			authGroup.POST("/forgot-password", r.authController.ForgotPassword)
			authGroup.POST("/reset-password", r.authController.ResetPassword)
			authGroup.POST("/logout", auth, r.authController.Logout)
			authGroup.GET("/me", auth, r.authController.GetMe)
			authGroup.PUT("/me", auth, r.authController.UpdateMe)
		}

		listings := v1.Group("/listings")
		{
			listings.GET("", r.listingController.ListListings)
			listings.GET("/:id", r.listingController.GetListing)

			listings.GET("/prefill/:releaseId", auth, staff, r.listingController.Prefill)
			listings.POST("", auth, staff, r.listingController.CreateListing)
			listings.PUT("/:id", auth, staff, r.listingController.UpdateListing)
			listings.PATCH("/:id", auth, staff, r.listingController.QuickUpdate)
			listings.DELETE("/:id", auth, staff, r.listingController.DeleteListing)
			listings.POST("/:id/images", auth, staff, r.listingController.AddImage)
			listings.DELETE("/:id/images/:imageId", auth, staff, r.listingController.DeleteImage)
		}

		discogs := v1.Group("/discogs")
		discogs.Use(auth, staff)
		{
			discogs.GET("/search", r.discogsController.Search)
			discogs.GET("/releases/:id", r.discogsController.GetRelease)
			discogs.GET("/releases/:id/prices", r.discogsController.PriceSuggestions)
		}

		basket := v1.Group("/basket")
		basket.Use(session, optionalAuth)
		{
			basket.GET("", r.basketController.GetBasket)
			basket.DELETE("", r.basketController.ClearBasket)
			basket.POST("/items", r.basketController.AddToBasket)
			basket.DELETE("/items/:listingId", r.basketController.RemoveFromBasket)
			basket.POST("/checkout", r.basketController.Checkout)
			basket.GET("/success", r.basketController.CheckoutSuccess)
			basket.GET("/cancel", r.basketController.CheckoutCancel)
		}

		webhooks := v1.Group("/webhooks")
		{
			webhooks.POST("/stripe", r.webhookController.StripeWebhook)
		}

		messages := v1.Group("/messages")
		{
			messages.POST("", optionalAuth, r.messageController.Submit)
			messages.GET("/guest/:reference", r.messageController.GuestThread)
			messages.POST("/guest/:reference/replies", r.messageController.GuestReply)
			messages.POST("/guest/:reference/claim", auth, r.messageController.ClaimGuestThread)

			messages.GET("", auth, r.messageController.Inbox)
			messages.GET("/unread", auth, r.messageController.UnreadCount)
			messages.GET("/:id", auth, r.messageController.OpenThread)
			messages.POST("/:id/replies", auth, r.messageController.Reply)
			messages.POST("/:id/toggle-replied", auth, staff, r.messageController.ToggleReplied)
			messages.DELETE("/:id", auth, staff, r.messageController.Delete)
		}

		orders := v1.Group("/orders")
		orders.Use(auth)
		{
			orders.GET("", r.orderController.GetOrders)
			orders.GET("/:id", r.orderController.GetOrderByID)
		}

		admin := v1.Group("/admin")
		admin.Use(auth, staff)
		{
			admin.GET("/orders", r.orderController.ListOrders)
			admin.GET("/orders/export", r.orderController.ExportOrders)
		}

		upload := v1.Group("/upload")
		upload.Use(auth, staff)
		{
			upload.POST("/presigned-url", r.uploadController.GeneratePresignedURL)
		}

		v1.GET("/ws", auth, r.wsController.Connect)
	}

	return router
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		allowed := false
		for _, allowedOrigin := range allowedOrigins {
			if origin == allowedOrigin || allowedOrigin == "*" {
				allowed = true
				break
			}
		}

		if allowed {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Session-ID, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Session-ID, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
