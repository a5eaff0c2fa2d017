package controller

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/alansalbums/alans-albums-backend/internal/app/model"
	"github.com/alansalbums/alans-albums-backend/internal/app/repository"
	"github.com/alansalbums/alans-albums-backend/internal/app/service"
	"github.com/alansalbums/alans-albums-backend/pkg/payment/stripe"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type webhookFixture struct {
	router  *gin.Engine
	db      *gorm.DB
	gateway *fakeGateway
	baskets service.BasketService
}

func setupWebhookControllerTest(t *testing.T) *webhookFixture {
	testDB := setupControllerDB(t)

	listingRepo := repository.NewListingRepository(testDB)
	baskets := service.NewBasketService(testDB, repository.NewBasketRepository(testDB), listingRepo, setupSessionStore(t))
	gateway := &fakeGateway{enabled: true}
	checkout := service.NewCheckoutService(testDB, baskets, listingRepo, repository.NewOrderRepository(testDB), gateway)

	router := gin.New()
	router.POST("/webhooks/stripe", NewWebhookController(checkout).StripeWebhook)

	return &webhookFixture{router: router, db: testDB, gateway: gateway, baskets: baskets}
}

var signatureHeaders = map[string]string{"Stripe-Signature": "t=1,v1=test"}

func TestWebhookController_InvalidSignature(t *testing.T) {
	f := setupWebhookControllerTest(t)
	f.gateway.parseErr = errors.New("signature mismatch")

	w := performRequest(f.router, http.MethodPost, "/webhooks/stripe", strings.NewReader(`{}`), signatureHeaders)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "CHECKOUT_WEBHOOK_INVALID", decodeBody(t, w)["error"])
}

func TestWebhookController_IgnoresOtherEvents(t *testing.T) {
	f := setupWebhookControllerTest(t)
	f.gateway.event = &stripe.Event{ID: "evt_1", Type: "payment_intent.created"}

	w := performRequest(f.router, http.MethodPost, "/webhooks/stripe", strings.NewReader(`{}`), signatureHeaders)

	require.Equal(t, http.StatusOK, w.Code)
	response := decodeBody(t, w)
	assert.Equal(t, true, response["received"])
	assert.NotContains(t, response, "order_id")
}

func TestWebhookController_FulfillsCompletedCheckout(t *testing.T) {
	f := setupWebhookControllerTest(t)
	buyer := createTestUser(t, f.db, "buyer@example.com", model.RoleUser)
	listing := createTestListing(t, f.db, "Miles Davis", "Kind Of Blue", "24.99", intPtr(2))

	_, err := f.baskets.Add(context.Background(), service.Identity{UserID: &buyer.ID}, listing.ID, 2)
	require.NoError(t, err)

	f.gateway.event = &stripe.Event{
		ID:   "evt_paid",
		Type: stripe.EventCheckoutSessionCompleted,
		Session: &stripe.CompletedSession{
			ID:                "cs_test_paid",
			Metadata:          map[string]string{"basket": fmt.Sprintf(`{"%d":2}`, listing.ID)},
			ClientReferenceID: fmt.Sprintf("%d", buyer.ID),
			CustomerEmail:     buyer.Email,
			PaymentStatus:     "paid",
		},
	}

	w := performRequest(f.router, http.MethodPost, "/webhooks/stripe", strings.NewReader(`{}`), signatureHeaders)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	orderID := decodeBody(t, w)["order_id"]
	require.NotNil(t, orderID)

	var order model.Order
	require.NoError(t, f.db.Preload("Items").First(&order, uint(orderID.(float64))).Error)
	assert.True(t, order.Paid)
	assert.Equal(t, "49.98", order.TotalAmount.StringFixed(2))
	require.Len(t, order.Items, 1)

	var stocked model.Listing
	require.NoError(t, f.db.First(&stocked, listing.ID).Error)
	assert.Equal(t, 0, *stocked.Stock)

	lines, err := f.baskets.Resolve(context.Background(), service.Identity{UserID: &buyer.ID})
	require.NoError(t, err)
	assert.Empty(t, lines)

	// redelivery returns the same order without selling twice
	w = performRequest(f.router, http.MethodPost, "/webhooks/stripe", strings.NewReader(`{}`), signatureHeaders)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, orderID, decodeBody(t, w)["order_id"])

	var count int64
	f.db.Model(&model.Order{}).Count(&count)
	assert.Equal(t, int64(1), count)
}
