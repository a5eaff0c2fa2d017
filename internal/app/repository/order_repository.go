package repository

import (
	"github.com/alansalbums/alans-albums-backend/internal/app/model"
	"github.com/alansalbums/alans-albums-backend/pkg/logger"
	"gorm.io/gorm"
)

type OrderRepository interface {
	FindByID(id uint) (*model.Order, error)
	FindBySessionID(sessionID string) (*model.Order, error)
	FindByUserID(userID uint) ([]model.Order, error)
	FindAll(limit, offset int) ([]model.Order, int64, error)
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) preloadOrder() *gorm.DB {
	return r.db.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("order_items.id ASC")
	}).Preload("User")
}

func (r *orderRepository) FindByID(id uint) (*model.Order, error) {
	logger.Debug("Finding order by ID in database", map[string]interface{}{
		"order_id": id,
	})

	var order model.Order
	if err := r.preloadOrder().First(&order, id).Error; err != nil {
		logger.Error("Failed to find order by ID in database", err, map[string]interface{}{
			"order_id": id,
		})
		return nil, err
	}

	logger.Debug("Order found by ID in database", map[string]interface{}{
		"order_id": order.ID,
		"user_id":  order.UserID,
		"paid":     order.Paid,
	})
	return &order, nil
}

func (r *orderRepository) FindBySessionID(sessionID string) (*model.Order, error) {
	logger.Debug("Finding order by checkout session in database", map[string]interface{}{
		"stripe_session_id": sessionID,
	})

	var order model.Order
	if err := r.preloadOrder().Where("stripe_session_id = ?", sessionID).First(&order).Error; err != nil {
		logger.Error("Failed to find order by checkout session in database", err, map[string]interface{}{
			"stripe_session_id": sessionID,
		})
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) FindByUserID(userID uint) ([]model.Order, error) {
	logger.Debug("Finding orders by user ID in database", map[string]interface{}{
		"user_id": userID,
	})

	var orders []model.Order
	if err := r.preloadOrder().
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error; err != nil {
		logger.Error("Failed to find orders by user ID in database", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}

	logger.Debug("Orders found by user ID in database", map[string]interface{}{
		"user_id": userID,
		"count":   len(orders),
	})
	return orders, nil
}

func (r *orderRepository) FindAll(limit, offset int) ([]model.Order, int64, error) {
	logger.Debug("Finding all orders in database", map[string]interface{}{
		"limit":  limit,
		"offset": offset,
	})

	var total int64
	if err := r.db.Model(&model.Order{}).Count(&total).Error; err != nil {
		logger.Error("Failed to count orders in database", err)
		return nil, 0, err
	}

	query := r.preloadOrder().Order("created_at DESC").Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var orders []model.Order
	if err := query.Find(&orders).Error; err != nil {
		logger.Error("Failed to find all orders in database", err)
		return nil, 0, err
	}

	logger.Debug("All orders found in database", map[string]interface{}{
		"count": len(orders),
		"total": total,
	})
	return orders, total, nil
}
