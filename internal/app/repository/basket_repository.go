package repository

import (
	"github.com/alansalbums/alans-albums-backend/internal/app/model"
	"github.com/alansalbums/alans-albums-backend/pkg/logger"
	"gorm.io/gorm"
)

type BasketRepository interface {
	FindOrCreate(userID uint) (*model.Basket, error)
	FindItems(userID uint) ([]model.BasketItem, error)
	DeleteItem(userID, listingID uint) error
	Clear(userID uint) error
}

type basketRepository struct {
	db *gorm.DB
}

func NewBasketRepository(db *gorm.DB) BasketRepository {
	return &basketRepository{db: db}
}

func (r *basketRepository) FindOrCreate(userID uint) (*model.Basket, error) {
	logger.Debug("Finding or creating basket in database", map[string]interface{}{
		"user_id": userID,
	})

	var basket model.Basket
	if err := r.db.Where(model.Basket{UserID: userID}).FirstOrCreate(&basket).Error; err != nil {
		logger.Error("Failed to find or create basket in database", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}

	logger.Debug("Basket ready in database", map[string]interface{}{
		"user_id":   userID,
		"basket_id": basket.ID,
	})
	return &basket, nil
}

func (r *basketRepository) FindItems(userID uint) ([]model.BasketItem, error) {
	logger.Debug("Finding basket items by user ID in database", map[string]interface{}{
		"user_id": userID,
	})

	var items []model.BasketItem
	err := r.db.
		Joins("JOIN baskets ON baskets.id = basket_items.basket_id").
		Where("baskets.user_id = ?", userID).
		Preload("Listing").
		Order("basket_items.created_at ASC").
		Find(&items).Error
	if err != nil {
		logger.Error("Failed to find basket items by user ID in database", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}

	logger.Debug("Basket items found by user ID in database", map[string]interface{}{
		"user_id": userID,
		"count":   len(items),
	})
	return items, nil
}

func (r *basketRepository) DeleteItem(userID, listingID uint) error {
	logger.Debug("Deleting basket item from database", map[string]interface{}{
		"user_id":    userID,
		"listing_id": listingID,
	})

	err := r.db.
		Where("listing_id = ? AND basket_id IN (?)", listingID,
			r.db.Model(&model.Basket{}).Select("id").Where("user_id = ?", userID)).
		Delete(&model.BasketItem{}).Error
	if err != nil {
		logger.Error("Failed to delete basket item from database", err, map[string]interface{}{
			"user_id":    userID,
			"listing_id": listingID,
		})
		return err
	}

	logger.Debug("Basket item deleted from database", map[string]interface{}{
		"user_id":    userID,
		"listing_id": listingID,
	})
	return nil
}

func (r *basketRepository) Clear(userID uint) error {
	logger.Debug("Clearing basket in database", map[string]interface{}{
		"user_id": userID,
	})

	err := r.db.
		Where("basket_id IN (?)", r.db.Model(&model.Basket{}).Select("id").Where("user_id = ?", userID)).
		Delete(&model.BasketItem{}).Error
	if err != nil {
		logger.Error("Failed to clear basket in database", err, map[string]interface{}{
			"user_id": userID,
		})
		return err
	}

	logger.Debug("Basket cleared in database", map[string]interface{}{
		"user_id": userID,
	})
	return nil
}
