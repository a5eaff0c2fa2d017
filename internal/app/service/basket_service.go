package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/alansalbums/alans-albums-backend/internal/app/model"
	"github.com/alansalbums/alans-albums-backend/internal/app/repository"
	"github.com/alansalbums/alans-albums-backend/pkg/logger"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Identity is the owner of a basket: a registered user or an anonymous session
type Identity struct {
	UserID    *uint
	SessionID string
	Email     string
}

func (i Identity) Authenticated() bool {
	return i.UserID != nil && *i.UserID != 0
}

// BasketView is one basket backend. Quantities are keyed by listing id.
type BasketView interface {
	Lines(ctx context.Context) (map[uint]int, error)
	Add(ctx context.Context, listing *model.Listing, delta int) (int, error)
	Remove(ctx context.Context, listingID uint) error
	Clear(ctx context.Context) error
}

type BasketLine struct {
	Listing   model.Listing   `json:"listing"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type BasketSummary struct {
	Lines []BasketLine    `json:"lines"`
	Count int             `json:"count"` // total units
	Total decimal.Decimal `json:"total"`
}

type BasketService interface {
	View(identity Identity) (BasketView, error)
	Resolve(ctx context.Context, identity Identity) (map[uint]int, error)
	Summary(ctx context.Context, identity Identity) (*BasketSummary, error)
	Add(ctx context.Context, identity Identity, listingID uint, delta int) (int, error)
	Remove(ctx context.Context, identity Identity, listingID uint) error
	Clear(ctx context.Context, identity Identity) error
	MergeOnLogin(ctx context.Context, sessionID string, userID uint) (int, error)
}

type basketService struct {
	db           *gorm.DB
	basketRepo   repository.BasketRepository
	listingRepo  repository.ListingRepository
	sessionStore repository.SessionBasketStore
}

func NewBasketService(
	db *gorm.DB,
	basketRepo repository.BasketRepository,
	listingRepo repository.ListingRepository,
	sessionStore repository.SessionBasketStore,
) BasketService {
	return &basketService{
		db:           db,
		basketRepo:   basketRepo,
		listingRepo:  listingRepo,
		sessionStore: sessionStore,
	}
}

// View picks the relational basket for users and the session basket for everyone else
func (s *basketService) View(identity Identity) (BasketView, error) {
	if identity.Authenticated() {
		return &persistentBasketView{db: s.db, basketRepo: s.basketRepo, userID: *identity.UserID}, nil
	}
	if identity.SessionID == "" || s.sessionStore == nil {
		return nil, ErrNoBasketSession
	}
	return &sessionBasketView{store: s.sessionStore, listingRepo: s.listingRepo, sessionID: identity.SessionID}, nil
}

func (s *basketService) Resolve(ctx context.Context, identity Identity) (map[uint]int, error) {
	view, err := s.View(identity)
	if err != nil {
		return nil, err
	}
	return view.Lines(ctx)
}

func (s *basketService) Summary(ctx context.Context, identity Identity) (*BasketSummary, error) {
	lines, err := s.Resolve(ctx, identity)
	if err != nil {
		return nil, err
	}

	summary := &BasketSummary{Lines: []BasketLine{}, Total: decimal.Zero}
	if len(lines) == 0 {
		return summary, nil
	}

	ids := make([]uint, 0, len(lines))
	for id := range lines {
		ids = append(ids, id)
	}
	listings, err := s.listingRepo.FindByIDs(ids)
	if err != nil {
		return nil, err
	}
	sort.Slice(listings, func(i, j int) bool { return listings[i].ID < listings[j].ID })

	for _, listing := range listings {
		qty := lines[listing.ID]
		unit := decimal.Zero
		if listing.Price.Valid {
			unit = listing.Price.Decimal
		}
		lineTotal := unit.Mul(decimal.NewFromInt(int64(qty)))
		summary.Lines = append(summary.Lines, BasketLine{
			Listing:   listing,
			Quantity:  qty,
			UnitPrice: unit,
			LineTotal: lineTotal,
		})
		summary.Count += qty
		summary.Total = summary.Total.Add(lineTotal)
	}
	return summary, nil
}

func (s *basketService) Add(ctx context.Context, identity Identity, listingID uint, delta int) (int, error) {
	if delta < 1 {
		return 0, fmt.Errorf("%w: quantity must be at least 1", ErrValidation)
	}

	listing, err := s.listingRepo.FindByID(listingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrListingNotFound
		}
		return 0, err
	}
	if !listing.InStock() {
		logger.Warn("Basket add rejected: out of stock", map[string]interface{}{
			"listing_id": listingID,
		})
		return 0, ErrOutOfStock
	}

	view, err := s.View(identity)
	if err != nil {
		return 0, err
	}

	qty, err := view.Add(ctx, listing, delta)
	if err != nil {
		if errors.Is(err, ErrInsufficientStock) || errors.Is(err, ErrOutOfStock) {
			logger.Warn("Basket add rejected: stock limit", map[string]interface{}{
				"listing_id": listingID,
				"delta":      delta,
				"stock":      listing.Stock,
			})
		}
		return 0, err
	}

	logger.Info("Listing added to basket", map[string]interface{}{
		"listing_id":    listingID,
		"quantity":      qty,
		"authenticated": identity.Authenticated(),
	})
	return qty, nil
}

func (s *basketService) Remove(ctx context.Context, identity Identity, listingID uint) error {
	view, err := s.View(identity)
	if err != nil {
		return err
	}
	return view.Remove(ctx, listingID)
}

func (s *basketService) Clear(ctx context.Context, identity Identity) error {
	view, err := s.View(identity)
	if err != nil {
		return err
	}
	return view.Clear(ctx)
}

// MergeOnLogin folds the session basket into the user's basket exactly once.
// The session lines are detached under a merge token first; the token is recorded
// in the same transaction that credits the lines, so a retry after any failure
// finds the token and skips the credit.
func (s *basketService) MergeOnLogin(ctx context.Context, sessionID string, userID uint) (int, error) {
	if sessionID == "" || s.sessionStore == nil {
		return 0, nil
	}

	pending, err := s.sessionStore.BeginMerge(ctx, sessionID)
	if err != nil {
		logger.Error("Failed to detach session basket", err, map[string]interface{}{
			"user_id": userID,
		})
		return 0, err
	}
	if pending == nil {
		return 0, nil
	}

	merged, err := s.applyMerge(userID, pending)
	if err != nil {
		return 0, err
	}

	if err := s.sessionStore.FinishMerge(ctx, sessionID); err != nil {
		// the token is recorded, a later retry is a no-op
		logger.Warn("Failed to drop merged session basket", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
	}

	logger.Info("Session basket merged", map[string]interface{}{
		"user_id": userID,
		"lines":   merged,
	})
	return merged, nil
}

func (s *basketService) applyMerge(userID uint, pending *repository.PendingMerge) (int, error) {
	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			logger.Error("Panic during basket merge, rolling back", fmt.Errorf("panic: %v", r), map[string]interface{}{
				"user_id": userID,
			})
		}
	}()

	record := model.BasketMerge{Token: pending.Token, UserID: userID, Lines: len(pending.Lines)}
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&record)
	if res.Error != nil {
		tx.Rollback()
		logger.Error("Failed to record basket merge", res.Error, map[string]interface{}{
			"user_id": userID,
		})
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		logger.Info("Basket merge already applied", map[string]interface{}{
			"user_id": userID,
		})
		return 0, nil
	}

	basket, err := ensureBasket(tx, userID)
	if err != nil {
		tx.Rollback()
		return 0, err
	}

	ids := make([]uint, 0, len(pending.Lines))
	for id := range pending.Lines {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	merged := 0
	for _, listingID := range ids {
		var listing model.Listing
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&listing, listingID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				logger.Warn("Skipping merge line for missing listing", map[string]interface{}{
					"user_id":    userID,
					"listing_id": listingID,
				})
				continue
			}
			tx.Rollback()
			return 0, err
		}
		if !listing.InStock() {
			continue
		}

		qty, err := upsertBasketLine(tx, basket.ID, listingID, pending.Lines[listingID])
		if err != nil {
			tx.Rollback()
			logger.Error("Failed to merge basket line", err, map[string]interface{}{
				"user_id":    userID,
				"listing_id": listingID,
			})
			return 0, err
		}
		// never hold more than the shelf has
		if listing.Stock != nil && qty > *listing.Stock {
			if err := tx.Model(&model.BasketItem{}).
				Where("basket_id = ? AND listing_id = ?", basket.ID, listingID).
				Update("quantity", *listing.Stock).Error; err != nil {
				tx.Rollback()
				return 0, err
			}
		}
		merged++
	}

	if err := tx.Commit().Error; err != nil {
		logger.Error("Failed to commit basket merge", err, map[string]interface{}{
			"user_id": userID,
		})
		return 0, err
	}
	return merged, nil
}

// ensureBasket returns the user's basket row, creating it if needed. A concurrent
// creator makes the insert a no-op instead of a unique violation.
func ensureBasket(tx *gorm.DB, userID uint) (*model.Basket, error) {
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Omit("Items").Create(&model.Basket{UserID: userID}).Error; err != nil {
		return nil, err
	}

	var basket model.Basket
	if err := tx.Where("user_id = ?", userID).First(&basket).Error; err != nil {
		return nil, err
	}
	return &basket, nil
}

// upsertBasketLine adds delta to a line in one statement and returns the new quantity
func upsertBasketLine(tx *gorm.DB, basketID, listingID uint, delta int) (int, error) {
	item := model.BasketItem{BasketID: basketID, ListingID: listingID, Quantity: delta}
	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "basket_id"}, {Name: "listing_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"quantity":   gorm.Expr("basket_items.quantity + ?", delta),
			"updated_at": time.Now(),
		}),
	}).Omit("Listing").Create(&item).Error
	if err != nil {
		return 0, err
	}

	var qty int
	if err := tx.Model(&model.BasketItem{}).
		Where("basket_id = ? AND listing_id = ?", basketID, listingID).
		Select("quantity").
		Scan(&qty).Error; err != nil {
		return 0, err
	}
	return qty, nil
}

// persistentBasketView stores lines as BasketItem rows
type persistentBasketView struct {
	db         *gorm.DB
	basketRepo repository.BasketRepository
	userID     uint
}

func (v *persistentBasketView) Lines(ctx context.Context) (map[uint]int, error) {
	items, err := v.basketRepo.FindItems(v.userID)
	if err != nil {
		return nil, err
	}
	lines := make(map[uint]int, len(items))
	for _, item := range items {
		lines[item.ListingID] = item.Quantity
	}
	return lines, nil
}

// Add increments under a row lock on the listing and rolls back past the stock limit
func (v *persistentBasketView) Add(ctx context.Context, listing *model.Listing, delta int) (int, error) {
	tx := v.db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			logger.Error("Panic during basket add, rolling back", fmt.Errorf("panic: %v", r), map[string]interface{}{
				"user_id":    v.userID,
				"listing_id": listing.ID,
			})
		}
	}()

	var locked model.Listing
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&locked, listing.ID).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrListingNotFound
		}
		return 0, err
	}
	if !locked.InStock() {
		tx.Rollback()
		return 0, ErrOutOfStock
	}

	basket, err := ensureBasket(tx, v.userID)
	if err != nil {
		tx.Rollback()
		return 0, err
	}

	qty, err := upsertBasketLine(tx, basket.ID, locked.ID, delta)
	if err != nil {
		tx.Rollback()
		logger.Error("Failed to upsert basket line", err, map[string]interface{}{
			"user_id":    v.userID,
			"listing_id": locked.ID,
		})
		return 0, err
	}
	if !locked.Allows(qty) {
		tx.Rollback()
		return 0, ErrInsufficientStock
	}

	if err := tx.Commit().Error; err != nil {
		return 0, err
	}
	return qty, nil
}

func (v *persistentBasketView) Remove(ctx context.Context, listingID uint) error {
	return v.basketRepo.DeleteItem(v.userID, listingID)
}

func (v *persistentBasketView) Clear(ctx context.Context) error {
	return v.basketRepo.Clear(v.userID)
}

// sessionBasketView stores lines in the anonymous session hash
type sessionBasketView struct {
	store       repository.SessionBasketStore
	listingRepo repository.ListingRepository
	sessionID   string
}

// Lines drops entries whose listing is gone or has sold out
func (v *sessionBasketView) Lines(ctx context.Context) (map[uint]int, error) {
	lines, err := v.store.Lines(ctx, v.sessionID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return lines, nil
	}

	ids := make([]uint, 0, len(lines))
	for id := range lines {
		ids = append(ids, id)
	}
	listings, err := v.listingRepo.FindByIDs(ids)
	if err != nil {
		return nil, err
	}
	available := make(map[uint]bool, len(listings))
	for _, l := range listings {
		available[l.ID] = l.InStock()
	}

	var stale []uint
	for id := range lines {
		if !available[id] {
			stale = append(stale, id)
			delete(lines, id)
		}
	}
	if len(stale) > 0 {
		if err := v.store.Remove(ctx, v.sessionID, stale...); err != nil {
			return nil, err
		}
		logger.Debug("Pruned session basket", map[string]interface{}{
			"removed": len(stale),
		})
	}
	return lines, nil
}

// Add increments atomically and undoes the increment when it overshoots stock
func (v *sessionBasketView) Add(ctx context.Context, listing *model.Listing, delta int) (int, error) {
	qty, err := v.store.Increment(ctx, v.sessionID, listing.ID, delta)
	if err != nil {
		return 0, err
	}
	if !listing.Allows(qty) {
		if _, err := v.store.Increment(ctx, v.sessionID, listing.ID, -delta); err != nil {
			logger.Error("Failed to undo session basket increment", err, map[string]interface{}{
				"listing_id": listing.ID,
			})
		}
		return 0, ErrInsufficientStock
	}
	return qty, nil
}

func (v *sessionBasketView) Remove(ctx context.Context, listingID uint) error {
	return v.store.Remove(ctx, v.sessionID, listingID)
}

func (v *sessionBasketView) Clear(ctx context.Context) error {
	return v.store.Clear(ctx, v.sessionID)
}
