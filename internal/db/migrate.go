package db

import (
	"github.com/alansalbums/alans-albums-backend/internal/app/model"
	"github.com/alansalbums/alans-albums-backend/pkg/logger"
	"gorm.io/gorm"
)

// Models lists every table the application owns, in dependency order
func Models() []interface{} {
	return []interface{}{
		&model.User{},
		&model.Listing{},
		&model.ListingImage{},
		&model.Basket{},
		&model.BasketItem{},
		&model.BasketMerge{},
		&model.Order{},
		&model.OrderItem{},
		&model.PaymentEvent{},
		&model.Message{},
		&model.MessageImage{},
		&model.Reply{},
		&model.ReplyImage{},
		&model.MessageRead{},
		&model.ReplyRead{},
		&model.PasswordReset{},
	}
}

// Migrate runs database migrations
func Migrate() error {
	logger.Info("Running database migrations...")

	models := Models()
	if err := DB.AutoMigrate(models...); err != nil {
		logger.Error("Failed to run migrations", err)
		return err
	}

	if err := foldSuggestedPrice(DB); err != nil {
		logger.Error("Failed to fold suggested price into price", err)
		return err
	}

	logger.Info("Database migrations completed successfully", map[string]interface{}{
		"models_count": len(models),
	})
	return nil
}

// foldSuggestedPrice moves the legacy suggested_price column into price
func foldSuggestedPrice(db *gorm.DB) error {
	migrator := db.Migrator()
	if !migrator.HasColumn(&model.Listing{}, "suggested_price") {
		return nil
	}

	result := db.Exec("UPDATE listings SET price = suggested_price WHERE price IS NULL AND suggested_price IS NOT NULL")
	if result.Error != nil {
		return result.Error
	}
	logger.Info("Copied suggested prices into price", map[string]interface{}{
		"rows": result.RowsAffected,
	})

	return migrator.DropColumn(&model.Listing{}, "suggested_price")
}
