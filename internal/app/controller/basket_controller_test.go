package controller

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/alansalbums/alans-albums-backend/internal/app/model"
	"github.com/alansalbums/alans-albums-backend/internal/app/repository"
	"github.com/alansalbums/alans-albums-backend/internal/app/service"
	"github.com/alansalbums/alans-albums-backend/internal/middleware"
	"github.com/alansalbums/alans-albums-backend/pkg/payment/stripe"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeGateway struct {
	enabled   bool
	createErr error
	requests  []stripe.CheckoutRequest
	event     *stripe.Event
	parseErr  error
}

func (g *fakeGateway) Enabled() bool      { return g.enabled }
func (g *fakeGateway) SuccessURL() string { return "http://shop.test/basket/success" }

func (g *fakeGateway) CreateCheckoutSession(ctx context.Context, req stripe.CheckoutRequest) (*stripe.CheckoutSession, error) {
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.requests = append(g.requests, req)
	id := fmt.Sprintf("cs_test_%d", len(g.requests))
	return &stripe.CheckoutSession{ID: id, URL: "https://checkout.stripe.test/" + id}, nil
}

func (g *fakeGateway) ListLineItems(ctx context.Context, sessionID string) ([]stripe.SessionLineItem, error) {
	return nil, nil
}

func (g *fakeGateway) ParseWebhook(payload []byte, signature string) (*stripe.Event, error) {
	if g.parseErr != nil {
		return nil, g.parseErr
	}
	return g.event, nil
}

type basketFixture struct {
	router  *gin.Engine
	db      *gorm.DB
	baskets service.BasketService
	gateway *fakeGateway
	user    *model.User
}

func setupBasketControllerTest(t *testing.T) *basketFixture {
	testDB := setupControllerDB(t)

	listingRepo := repository.NewListingRepository(testDB)
	baskets := service.NewBasketService(testDB, repository.NewBasketRepository(testDB), listingRepo, setupSessionStore(t))
	gateway := &fakeGateway{enabled: true}
	checkout := service.NewCheckoutService(testDB, baskets, listingRepo, repository.NewOrderRepository(testDB), gateway)

	ctrl := NewBasketController(baskets, checkout)
	authMiddleware := middleware.NewAuthMiddleware(testSecret)

	router := gin.New()
	basket := router.Group("/basket")
	basket.Use(sessionMiddleware(), authMiddleware.OptionalAuthenticate())
	{
		basket.GET("", ctrl.GetBasket)
		basket.DELETE("", ctrl.ClearBasket)
		basket.POST("/items", ctrl.AddToBasket)
		basket.DELETE("/items/:listingId", ctrl.RemoveFromBasket)
		basket.POST("/checkout", ctrl.Checkout)
		basket.GET("/success", ctrl.CheckoutSuccess)
		basket.GET("/cancel", ctrl.CheckoutCancel)
	}

	return &basketFixture{
		router:  router,
		db:      testDB,
		baskets: baskets,
		gateway: gateway,
		user:    createTestUser(t, testDB, "buyer@example.com", model.RoleUser),
	}
}

var guestHeaders = map[string]string{middleware.SessionIDHeader: testSessionID}

func TestBasketController_GuestAddAndView(t *testing.T) {
	f := setupBasketControllerTest(t)
	listing := createTestListing(t, f.db, "Miles Davis", "Kind Of Blue", "24.99", intPtr(3))

	w := performRequest(f.router, http.MethodPost, "/basket/items", AddToBasketRequest{ListingID: listing.ID}, guestHeaders)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(1), decodeBody(t, w)["quantity"])

	w = performRequest(f.router, http.MethodPost, "/basket/items", AddToBasketRequest{ListingID: listing.ID, Quantity: 1}, guestHeaders)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decodeBody(t, w)["quantity"])

	w = performRequest(f.router, http.MethodGet, "/basket", nil, guestHeaders)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, testSessionID, w.Header().Get(middleware.SessionIDHeader))

	basket := decodeBody(t, w)["basket"].(map[string]interface{})
	assert.Equal(t, float64(2), basket["count"])
	assert.Equal(t, "49.98", basket["total"])
	assert.Len(t, basket["lines"], 1)
}

func TestBasketController_UserBasketIsSeparate(t *testing.T) {
	f := setupBasketControllerTest(t)
	listing := createTestListing(t, f.db, "Can", "Tago Mago", "32.50", nil)

	auth := map[string]string{
		"Authorization":            bearerFor(t, f.user),
		middleware.SessionIDHeader: testSessionID,
	}
	w := performRequest(f.router, http.MethodPost, "/basket/items", AddToBasketRequest{ListingID: listing.ID, Quantity: 4}, auth)
	require.Equal(t, http.StatusOK, w.Code)

	lines, err := f.baskets.Resolve(context.Background(), service.Identity{UserID: &f.user.ID})
	require.NoError(t, err)
	assert.Equal(t, map[uint]int{listing.ID: 4}, lines)

	w = performRequest(f.router, http.MethodGet, "/basket", nil, guestHeaders)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decodeBody(t, w)["basket"].(map[string]interface{})["count"])
}

func TestBasketController_AddErrors(t *testing.T) {
	f := setupBasketControllerTest(t)
	soldOut := createTestListing(t, f.db, "Talk Talk", "Laughing Stock", "40.00", intPtr(0))
	lastCopy := createTestListing(t, f.db, "Nina Simone", "Pastel Blues", "18.00", intPtr(1))

	tests := []struct {
		name       string
		body       interface{}
		wantStatus int
		wantCode   string
	}{
		{"sold out", AddToBasketRequest{ListingID: soldOut.ID}, http.StatusConflict, "LISTING_OUT_OF_STOCK"},
		{"more than in stock", AddToBasketRequest{ListingID: lastCopy.ID, Quantity: 2}, http.StatusConflict, "LISTING_INSUFFICIENT_STOCK"},
		{"unknown listing", AddToBasketRequest{ListingID: 999}, http.StatusNotFound, "LISTING_NOT_FOUND"},
		{"negative quantity", AddToBasketRequest{ListingID: lastCopy.ID, Quantity: -1}, http.StatusBadRequest, "VALIDATION_INVALID_INPUT"},
		{"missing listing", map[string]int{"quantity": 1}, http.StatusBadRequest, "VALIDATION_INVALID_INPUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := performRequest(f.router, http.MethodPost, "/basket/items", tt.body, guestHeaders)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantCode, decodeBody(t, w)["error"])
		})
	}
}

func TestBasketController_RemoveAndClear(t *testing.T) {
	f := setupBasketControllerTest(t)
	first := createTestListing(t, f.db, "Miles Davis", "Kind Of Blue", "24.99", nil)
	second := createTestListing(t, f.db, "Can", "Tago Mago", "32.50", nil)

	guest := service.Identity{SessionID: testSessionID}
	ctx := context.Background()
	_, err := f.baskets.Add(ctx, guest, first.ID, 1)
	require.NoError(t, err)
	_, err = f.baskets.Add(ctx, guest, second.ID, 1)
	require.NoError(t, err)

	w := performRequest(f.router, http.MethodDelete, fmt.Sprintf("/basket/items/%d", first.ID), nil, guestHeaders)
	require.Equal(t, http.StatusOK, w.Code)

	lines, err := f.baskets.Resolve(ctx, guest)
	require.NoError(t, err)
	assert.Equal(t, map[uint]int{second.ID: 1}, lines)

	w = performRequest(f.router, http.MethodDelete, "/basket/items/abc", nil, guestHeaders)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = performRequest(f.router, http.MethodDelete, "/basket", nil, guestHeaders)
	require.Equal(t, http.StatusOK, w.Code)

	lines, err = f.baskets.Resolve(ctx, guest)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestBasketController_Checkout(t *testing.T) {
	f := setupBasketControllerTest(t)
	listing := createTestListing(t, f.db, "Miles Davis", "Kind Of Blue", "24.99", intPtr(2))
	auth := map[string]string{"Authorization": bearerFor(t, f.user)}

	t.Run("empty basket", func(t *testing.T) {
		w := performRequest(f.router, http.MethodPost, "/basket/checkout", nil, auth)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "BASKET_EMPTY", decodeBody(t, w)["error"])
	})

	_, err := f.baskets.Add(context.Background(), service.Identity{UserID: &f.user.ID}, listing.ID, 2)
	require.NoError(t, err)

	t.Run("opens hosted checkout", func(t *testing.T) {
		w := performRequest(f.router, http.MethodPost, "/basket/checkout", nil, auth)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		response := decodeBody(t, w)
		assert.Equal(t, "cs_test_1", response["session_id"])
		assert.Equal(t, "https://checkout.stripe.test/cs_test_1", response["checkout_url"])

		require.Len(t, f.gateway.requests, 1)
		req := f.gateway.requests[0]
		assert.Equal(t, "buyer@example.com", req.CustomerEmail)
		require.Len(t, req.LineItems, 1)
		assert.Equal(t, int64(2499), req.LineItems[0].UnitAmount)
		assert.Equal(t, int64(2), req.LineItems[0].Quantity)
	})

	t.Run("provider unavailable", func(t *testing.T) {
		f.gateway.createErr = fmt.Errorf("%w: stripe down", service.ErrExternalService)
		defer func() { f.gateway.createErr = nil }()

		w := performRequest(f.router, http.MethodPost, "/basket/checkout", nil, auth)
		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Equal(t, "CHECKOUT_FAILED", decodeBody(t, w)["error"])
	})
}

func TestBasketController_SuccessClearsGuestBasket(t *testing.T) {
	f := setupBasketControllerTest(t)
	listing := createTestListing(t, f.db, "Miles Davis", "Kind Of Blue", "24.99", nil)

	guest := service.Identity{SessionID: testSessionID}
	ctx := context.Background()
	_, err := f.baskets.Add(ctx, guest, listing.ID, 1)
	require.NoError(t, err)

	w := performRequest(f.router, http.MethodGet, "/basket/cancel", nil, guestHeaders)
	require.Equal(t, http.StatusOK, w.Code)
	lines, err := f.baskets.Resolve(ctx, guest)
	require.NoError(t, err)
	assert.Len(t, lines, 1)

	w = performRequest(f.router, http.MethodGet, "/basket/success?session_id=cs_test_9", nil, guestHeaders)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "cs_test_9", decodeBody(t, w)["session_id"])

	lines, err = f.baskets.Resolve(ctx, guest)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestBasketController_MissingSession(t *testing.T) {
	f := setupBasketControllerTest(t)

	// no session middleware and no login
	router := gin.New()
	router.GET("/basket", NewBasketController(f.baskets, nil).GetBasket)

	w := performRequest(router, http.MethodGet, "/basket", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "BASKET_SESSION_MISSING", decodeBody(t, w)["error"])
}
