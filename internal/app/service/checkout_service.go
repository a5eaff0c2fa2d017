package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/alansalbums/alans-albums-backend/internal/app/model"
	"github.com/alansalbums/alans-albums-backend/internal/app/repository"
	"github.com/alansalbums/alans-albums-backend/pkg/logger"
	"github.com/alansalbums/alans-albums-backend/pkg/payment/stripe"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	metadataBasketKey = "basket"
	metadataUserKey   = "user_id"

	// Stripe rejects metadata values longer than this
	maxMetadataValue = 500
)

// PaymentGateway is the hosted checkout provider
type PaymentGateway interface {
	Enabled() bool
	SuccessURL() string
	CreateCheckoutSession(ctx context.Context, req stripe.CheckoutRequest) (*stripe.CheckoutSession, error)
	ListLineItems(ctx context.Context, sessionID string) ([]stripe.SessionLineItem, error)
	ParseWebhook(payload []byte, signature string) (*stripe.Event, error)
}

// CheckoutResult is where the buyer should be sent next
type CheckoutResult struct {
	URL       string `json:"url"`
	SessionID string `json:"session_id,omitempty"`
}

type CheckoutService interface {
	CreateCheckout(ctx context.Context, identity Identity) (*CheckoutResult, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) (*model.Order, error)
}

type checkoutService struct {
	db            *gorm.DB
	basketService BasketService
	listingRepo   repository.ListingRepository
	orderRepo     repository.OrderRepository
	gateway       PaymentGateway
}

func NewCheckoutService(
	db *gorm.DB,
	basketService BasketService,
	listingRepo repository.ListingRepository,
	orderRepo repository.OrderRepository,
	gateway PaymentGateway,
) CheckoutService {
	return &checkoutService{
		db:            db,
		basketService: basketService,
		listingRepo:   listingRepo,
		orderRepo:     orderRepo,
		gateway:       gateway,
	}
}

// CreateCheckout prices the current basket and opens a hosted checkout session
func (s *checkoutService) CreateCheckout(ctx context.Context, identity Identity) (*CheckoutResult, error) {
	log := logger.Get()

	summary, err := s.basketService.Summary(ctx, identity)
	if err != nil {
		return nil, err
	}
	if len(summary.Lines) == 0 {
		return nil, ErrEmptyBasket
	}

	if s.gateway == nil || !s.gateway.Enabled() {
		log.Warn("Payments not configured, skipping hosted checkout", map[string]interface{}{
			"lines": len(summary.Lines),
		})
		result := &CheckoutResult{}
		if s.gateway != nil {
			result.URL = s.gateway.SuccessURL()
		}
		return result, nil
	}

	req := stripe.CheckoutRequest{Metadata: map[string]string{}}
	basket := make(map[string]int, len(summary.Lines))
	for _, line := range summary.Lines {
		amount := minorUnits(line.UnitPrice)
		if amount <= 0 {
			log.Warn("Skipping unpriced basket line", map[string]interface{}{
				"listing_id": line.Listing.ID,
			})
			continue
		}
		req.LineItems = append(req.LineItems, stripe.LineItem{
			Name:       line.Listing.DisplayName(),
			UnitAmount: amount,
			Quantity:   int64(line.Quantity),
		})
		basket[strconv.FormatUint(uint64(line.Listing.ID), 10)] = line.Quantity
	}
	if len(req.LineItems) == 0 {
		return nil, ErrEmptyBasket
	}

	encoded, err := json.Marshal(basket)
	if err != nil {
		return nil, fmt.Errorf("failed to encode basket: %w", err)
	}
	if len(encoded) <= maxMetadataValue {
		req.Metadata[metadataBasketKey] = string(encoded)
	} else {
		// fulfillment falls back to the session's line items
		log.Warn("Basket too large for checkout metadata", map[string]interface{}{
			"lines": len(basket),
		})
	}
	if identity.Authenticated() {
		uid := strconv.FormatUint(uint64(*identity.UserID), 10)
		req.Metadata[metadataUserKey] = uid
		req.ClientReferenceID = uid
	}
	req.CustomerEmail = identity.Email

	session, err := s.gateway.CreateCheckoutSession(ctx, req)
	if err != nil {
		log.Error("Failed to create checkout session", err, map[string]interface{}{
			"lines": len(req.LineItems),
		})
		return nil, fmt.Errorf("%w: %v", ErrExternalService, err)
	}

	log.Info("Checkout session created", map[string]interface{}{
		"session_id": session.ID,
		"lines":      len(req.LineItems),
		"total":      summary.Total.StringFixed(2),
	})
	return &CheckoutResult{URL: session.URL, SessionID: session.ID}, nil
}

// HandleWebhook verifies a payment notification and fulfills completed checkouts once.
// Events other than a completed checkout are acknowledged with a nil order.
func (s *checkoutService) HandleWebhook(ctx context.Context, payload []byte, signature string) (*model.Order, error) {
	log := logger.Get()

	if s.gateway == nil {
		return nil, fmt.Errorf("%w: payments not configured", ErrWebhookVerification)
	}
	event, err := s.gateway.ParseWebhook(payload, signature)
	if err != nil {
		log.Warn("Rejected payment webhook", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, fmt.Errorf("%w: %v", ErrWebhookVerification, err)
	}

	if event.Type != stripe.EventCheckoutSessionCompleted {
		log.Debug("Ignoring payment event", map[string]interface{}{
			"event_id": event.ID,
			"type":     event.Type,
		})
		return nil, nil
	}
	if event.Session == nil || event.Session.ID == "" {
		return nil, fmt.Errorf("%w: completed event without session", ErrWebhookVerification)
	}

	lines, err := s.resolveLines(ctx, event.Session)
	if err != nil {
		return nil, err
	}
	return s.fulfill(event, lines)
}

type fulfillmentLine struct {
	ListingID uint
	Quantity  int
}

// resolveLines reads the basket snapshot from metadata, falling back to Stripe's line items
func (s *checkoutService) resolveLines(ctx context.Context, session *stripe.CompletedSession) ([]fulfillmentLine, error) {
	if raw, ok := session.Metadata[metadataBasketKey]; ok && raw != "" {
		lines, err := decodeBasketMetadata(raw)
		if err == nil {
			return lines, nil
		}
		logger.Warn("Unreadable basket metadata, using line items", map[string]interface{}{
			"session_id": session.ID,
			"error":      err.Error(),
		})
	}

	items, err := s.gateway.ListLineItems(ctx, session.ID)
	if err != nil {
		logger.Error("Failed to list checkout line items", err, map[string]interface{}{
			"session_id": session.ID,
		})
		return nil, fmt.Errorf("%w: %v", ErrExternalService, err)
	}

	listings, err := s.listingRepo.FindAll()
	if err != nil {
		return nil, err
	}

	var lines []fulfillmentLine
	for _, item := range items {
		matched := false
		for i := range listings {
			if listings[i].MatchesName(item.Description) {
				lines = append(lines, fulfillmentLine{ListingID: listings[i].ID, Quantity: int(item.Quantity)})
				matched = true
				break
			}
		}
		if !matched {
			logger.Warn("No listing matches checkout line", map[string]interface{}{
				"session_id":  session.ID,
				"description": item.Description,
			})
		}
	}
	return lines, nil
}

func decodeBasketMetadata(raw string) ([]fulfillmentLine, error) {
	var basket map[string]int
	if err := json.Unmarshal([]byte(raw), &basket); err != nil {
		return nil, err
	}

	lines := make([]fulfillmentLine, 0, len(basket))
	for key, qty := range basket {
		id, err := strconv.ParseUint(key, 10, 64)
		if err != nil || id == 0 || qty < 1 {
			continue
		}
		lines = append(lines, fulfillmentLine{ListingID: uint(id), Quantity: qty})
	}
	// lock listings in a stable order
	sort.Slice(lines, func(i, j int) bool { return lines[i].ListingID < lines[j].ListingID })
	return lines, nil
}

func (s *checkoutService) fulfill(event *stripe.Event, lines []fulfillmentLine) (*model.Order, error) {
	log := logger.Get()
	session := event.Session

	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			log.Error("Panic during fulfillment, rolling back", fmt.Errorf("panic: %v", r), map[string]interface{}{
				"session_id": session.ID,
			})
		}
	}()

	record := model.PaymentEvent{
		EventID:     event.ID,
		SessionID:   session.ID,
		Type:        event.Type,
		ProcessedAt: time.Now(),
	}
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&record)
	if res.Error != nil {
		tx.Rollback()
		log.Error("Failed to record payment event", res.Error, map[string]interface{}{
			"event_id": event.ID,
		})
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		log.Info("Checkout already fulfilled", map[string]interface{}{
			"event_id":   event.ID,
			"session_id": session.ID,
		})
		existing, err := s.orderRepo.FindBySessionID(session.ID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return existing, nil
	}

	order := model.Order{
		UserID:          s.checkoutUser(tx, session),
		StripeSessionID: session.ID,
		CustomerEmail:   session.CustomerEmail,
		TotalAmount:     decimal.Zero,
	}
	if err := tx.Omit("Items", "User").Create(&order).Error; err != nil {
		tx.Rollback()
		log.Error("Failed to create order", err, map[string]interface{}{
			"session_id": session.ID,
		})
		return nil, err
	}

	total := decimal.Zero
	for _, line := range lines {
		// postgres aborts the whole transaction on a failed statement; a bad
		// line rolls back to its own savepoint instead
		savepoint := fmt.Sprintf("line_%d", line.ListingID)
		if err := tx.SavePoint(savepoint).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		item, err := fulfillLine(tx, order.ID, line)
		if err != nil {
			log.Error("Failed to fulfill order line", err, map[string]interface{}{
				"order_id":   order.ID,
				"listing_id": line.ListingID,
			})
			if rbErr := tx.RollbackTo(savepoint).Error; rbErr != nil {
				tx.Rollback()
				return nil, rbErr
			}
			continue
		}
		if item == nil {
			continue
		}
		total = total.Add(item.LineTotal())
		order.Items = append(order.Items, *item)
	}

	order.TotalAmount = total
	order.Paid = session.PaymentStatus != "unpaid"
	if err := tx.Model(&order).Updates(map[string]interface{}{
		"total_amount": total,
		"paid":         order.Paid,
	}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Model(&record).Update("order_id", order.ID).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if order.UserID != nil {
		if err := tx.Where("basket_id IN (?)",
			tx.Model(&model.Basket{}).Select("id").Where("user_id = ?", *order.UserID),
		).Delete(&model.BasketItem{}).Error; err != nil {
			tx.Rollback()
			log.Error("Failed to clear basket after checkout", err, map[string]interface{}{
				"user_id": *order.UserID,
			})
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		log.Error("Failed to commit fulfillment", err, map[string]interface{}{
			"session_id": session.ID,
		})
		return nil, err
	}

	log.Info("Order fulfilled", map[string]interface{}{
		"order_id":   order.ID,
		"session_id": session.ID,
		"items":      len(order.Items),
		"total":      total.StringFixed(2),
	})
	return &order, nil
}

// fulfillLine snapshots one listing into the order and takes it off the shelf.
// Stock never goes below zero.
func fulfillLine(tx *gorm.DB, orderID uint, line fulfillmentLine) (*model.OrderItem, error) {
	var listing model.Listing
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&listing, line.ListingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn("Paid listing no longer exists", map[string]interface{}{
				"order_id":   orderID,
				"listing_id": line.ListingID,
			})
			return nil, nil
		}
		return nil, err
	}

	unit := decimal.Zero
	if listing.Price.Valid {
		unit = listing.Price.Decimal
	}
	listingID := listing.ID
	item := model.OrderItem{
		OrderID:   orderID,
		ListingID: &listingID,
		Title:     listing.String(),
		Quantity:  line.Quantity,
		UnitPrice: unit,
	}
	if err := tx.Omit("Listing").Create(&item).Error; err != nil {
		return nil, err
	}

	if listing.Stock != nil {
		remaining := *listing.Stock - line.Quantity
		if remaining < 0 {
			logger.Warn("Listing oversold", map[string]interface{}{
				"listing_id": listing.ID,
				"stock":      *listing.Stock,
				"quantity":   line.Quantity,
			})
			remaining = 0
		}
		updates := map[string]interface{}{"stock": remaining}
		if remaining == 0 {
			updates["featured"] = false
		}
		if err := tx.Model(&model.Listing{}).Where("id = ?", listing.ID).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return &item, nil
}

// checkoutUser resolves the buyer account from the client reference, if it still exists
func (s *checkoutService) checkoutUser(tx *gorm.DB, session *stripe.CompletedSession) *uint {
	ref := session.ClientReferenceID
	if ref == "" {
		ref = session.Metadata[metadataUserKey]
	}
	id, err := strconv.ParseUint(ref, 10, 64)
	if err != nil || id == 0 {
		return nil
	}

	var count int64
	if err := tx.Model(&model.User{}).Where("id = ?", id).Count(&count).Error; err != nil || count == 0 {
		return nil
	}
	uid := uint(id)
	return &uid
}

func minorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
