package controller

import (
	"errors"
	"io"
	"net/http"

	"github.com/alansalbums/alans-albums-backend/internal/app/service"
	apperrors "github.com/alansalbums/alans-albums-backend/internal/errors"
	"github.com/alansalbums/alans-albums-backend/internal/middleware"
	"github.com/gin-gonic/gin"
)

// webhook payloads are small JSON documents
const maxWebhookBody = 1 << 16

type WebhookController struct {
	checkoutService service.CheckoutService
}

func NewWebhookController(checkoutService service.CheckoutService) *WebhookController {
	return &WebhookController{checkoutService: checkoutService}
}

// StripeWebhook receives signed payment notifications. Only a bad signature is
// rejected; fulfillment problems are logged and acknowledged so the provider
// does not keep retrying.
// POST /api/v1/webhooks/stripe
func (ctrl *WebhookController) StripeWebhook(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		log.Warn("Failed to read webhook body", map[string]interface{}{
			"error": err.Error(),
		})
		apperrors.BadRequest(c, apperrors.CheckoutWebhookInvalid, "Unreadable payload")
		return
	}

	order, err := ctrl.checkoutService.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, service.ErrWebhookVerification) {
			apperrors.BadRequest(c, apperrors.CheckoutWebhookInvalid, "Invalid signature")
			return
		}
		log.Error("Payment fulfillment failed", err, nil)
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	resp := gin.H{"received": true}
	if order != nil {
		resp["order_id"] = order.ID
	}
	c.JSON(http.StatusOK, resp)
}
