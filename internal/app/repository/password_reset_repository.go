package repository

import (
	"time"

	"github.com/alansalbums/alans-albums-backend/internal/app/model"
	"github.com/alansalbums/alans-albums-backend/pkg/logger"
	"gorm.io/gorm"
)

type PasswordResetRepository interface {
	Create(reset *model.PasswordReset) error
	FindByToken(token string) (*model.PasswordReset, error)
	MarkAsUsed(id uint) (bool, error)
	DeleteExpired(before time.Time) (int64, error)
}

type passwordResetRepository struct {
	db *gorm.DB
}

func NewPasswordResetRepository(db *gorm.DB) PasswordResetRepository {
	return &passwordResetRepository{db: db}
}

func (r *passwordResetRepository) Create(reset *model.PasswordReset) error {
	logger.Debug("Creating password reset in database", map[string]interface{}{
		"email": reset.Email,
	})

	if err := r.db.Create(reset).Error; err != nil {
		logger.Error("Failed to create password reset in database", err, map[string]interface{}{
			"email": reset.Email,
		})
		return err
	}
	return nil
}

func (r *passwordResetRepository) FindByToken(token string) (*model.PasswordReset, error) {
	var reset model.PasswordReset
	if err := r.db.Where("token = ?", token).First(&reset).Error; err != nil {
		if err != gorm.ErrRecordNotFound {
			logger.Error("Failed to find password reset by token in database", err, nil)
		}
		return nil, err
	}
	return &reset, nil
}

// MarkAsUsed flips the used flag once; false means another request got there first
func (r *passwordResetRepository) MarkAsUsed(id uint) (bool, error) {
	result := r.db.Model(&model.PasswordReset{}).
		Where("id = ? AND used = ?", id, false).
		Update("used", true)
	if result.Error != nil {
		logger.Error("Failed to mark password reset as used in database", result.Error, map[string]interface{}{
			"id": id,
		})
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// DeleteExpired removes tokens that expired before the cutoff, and spent tokens
func (r *passwordResetRepository) DeleteExpired(before time.Time) (int64, error) {
	result := r.db.Where("expires_at < ? OR used = ?", before, true).Delete(&model.PasswordReset{})
	if result.Error != nil {
		logger.Error("Failed to delete expired password resets from database", result.Error, nil)
		return 0, result.Error
	}

	logger.Debug("Expired password resets deleted from database", map[string]interface{}{
		"count": result.RowsAffected,
	})
	return result.RowsAffected, nil
}
