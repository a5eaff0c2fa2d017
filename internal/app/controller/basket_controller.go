package controller

import (
	"errors"
	"net/http"

	"github.com/alansalbums/alans-albums-backend/internal/app/service"
	apperrors "github.com/alansalbums/alans-albums-backend/internal/errors"
	"github.com/alansalbums/alans-albums-backend/internal/middleware"
	"github.com/gin-gonic/gin"
)

type BasketController struct {
	basketService   service.BasketService
	checkoutService service.CheckoutService
}

func NewBasketController(basketService service.BasketService, checkoutService service.CheckoutService) *BasketController {
	return &BasketController{
		basketService:   basketService,
		checkoutService: checkoutService,
	}
}

type AddToBasketRequest struct {
	ListingID uint `json:"listing_id" binding:"required"`
	Quantity  int  `json:"quantity"`
}

func respondBasketError(c *gin.Context, err error, context string) {
	switch {
	case errors.Is(err, service.ErrListingNotFound):
		apperrors.NotFound(c, apperrors.ListingNotFound, "Listing not found")
	case errors.Is(err, service.ErrOutOfStock):
		apperrors.Conflict(c, apperrors.ListingOutOfStock, "This record is sold out")
	case errors.Is(err, service.ErrInsufficientStock):
		apperrors.Conflict(c, apperrors.ListingInsufficient, "Not enough copies in stock")
	case errors.Is(err, service.ErrEmptyBasket):
		apperrors.BadRequest(c, apperrors.BasketEmpty, "Your basket is empty")
	case errors.Is(err, service.ErrExternalService):
		apperrors.RespondWithError(c, http.StatusBadGateway, apperrors.CheckoutFailed, "Payment provider unavailable, please try again")
	case errors.Is(err, service.ErrNoBasketSession):
		apperrors.BadRequest(c, apperrors.BasketSessionMissing, "Basket session missing, please enable cookies")
	case errors.Is(err, service.ErrValidation):
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, err.Error())
	default:
		middleware.GetLoggerFromContext(c).Error("Basket request failed", err, map[string]interface{}{
			"context": context,
		})
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, context)
	}
}

// GetBasket returns the basket with current prices
// GET /api/v1/basket
func (ctrl *BasketController) GetBasket(c *gin.Context) {
	summary, err := ctrl.basketService.Summary(c.Request.Context(), identityFromContext(c))
	if err != nil {
		respondBasketError(c, err, "get basket")
		return
	}
	c.JSON(http.StatusOK, gin.H{"basket": summary})
}

// AddToBasket adds copies of a listing
// POST /api/v1/basket/items
func (ctrl *BasketController) AddToBasket(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req AddToBasketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid add to basket request", map[string]interface{}{
			"error": err.Error(),
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Invalid request data")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	qty, err := ctrl.basketService.Add(c.Request.Context(), identityFromContext(c), req.ListingID, req.Quantity)
	if err != nil {
		respondBasketError(c, err, "add to basket")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "Added to basket",
		"listing_id": req.ListingID,
		"quantity":   qty,
	})
}

// RemoveFromBasket deletes a whole line
// DELETE /api/v1/basket/items/:listingId
func (ctrl *BasketController) RemoveFromBasket(c *gin.Context) {
	listingID, ok := parseIDParam(c, "listingId")
	if !ok {
		apperrors.BadRequest(c, apperrors.ValidationInvalidID, "Invalid listing ID")
		return
	}

	if err := ctrl.basketService.Remove(c.Request.Context(), identityFromContext(c), listingID); err != nil {
		respondBasketError(c, err, "remove from basket")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Removed from basket"})
}

// ClearBasket empties the basket
// DELETE /api/v1/basket
func (ctrl *BasketController) ClearBasket(c *gin.Context) {
	if err := ctrl.basketService.Clear(c.Request.Context(), identityFromContext(c)); err != nil {
		respondBasketError(c, err, "clear basket")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Basket cleared"})
}

// Checkout opens a hosted payment page for the basket
// POST /api/v1/basket/checkout
func (ctrl *BasketController) Checkout(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	result, err := ctrl.checkoutService.CreateCheckout(c.Request.Context(), identityFromContext(c))
	if err != nil {
		respondBasketError(c, err, "checkout")
		return
	}

	log.Info("Checkout started", map[string]interface{}{
		"session_id": result.SessionID,
	})
	c.JSON(http.StatusOK, gin.H{
		"checkout_url": result.URL,
		"session_id":   result.SessionID,
	})
}

// CheckoutSuccess is where the payment page returns after paying. Registered
// baskets are cleared by the webhook; a guest's session basket is cleared here.
// GET /api/v1/basket/success
func (ctrl *BasketController) CheckoutSuccess(c *gin.Context) {
	identity := identityFromContext(c)
	if !identity.Authenticated() && identity.SessionID != "" {
		if err := ctrl.basketService.Clear(c.Request.Context(), identity); err != nil {
			middleware.GetLoggerFromContext(c).Warn("Failed to clear session basket after checkout", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "Thank you for your order",
		"session_id": c.Query("session_id"),
	})
}

// CheckoutCancel leaves the basket untouched
// GET /api/v1/basket/cancel
func (ctrl *BasketController) CheckoutCancel(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Checkout cancelled, your basket is still saved"})
}
