package repository

import (
	"strings"

	"github.com/alansalbums/alans-albums-backend/internal/app/model"
	"github.com/alansalbums/alans-albums-backend/pkg/logger"
	"gorm.io/gorm"
)

type ListingFilter struct {
	Artist      string
	Title       string
	Format      string
	Condition   model.Condition
	Featured    *bool
	InStockOnly bool
	Search      string // matches artist, title or catalog number
	Limit       int
	Offset      int
}

type ListingRepository interface {
	Create(listing *model.Listing) error
	BulkCreate(listings []model.Listing, batchSize int) error
	FindByID(id uint) (*model.Listing, error)
	FindByIDs(ids []uint) ([]model.Listing, error)
	FindWithFilter(filter ListingFilter) ([]model.Listing, int64, error)
	FindAll() ([]model.Listing, error)
	Update(listing *model.Listing) error
	Delete(id uint) error
	UnfeatureOutOfStock() (int64, error)
	AddImage(image *model.ListingImage) error
	FindImage(listingID, imageID uint) (*model.ListingImage, error)
	DeleteImage(id uint) error
}

type listingRepository struct {
	db *gorm.DB
}

func NewListingRepository(db *gorm.DB) ListingRepository {
	return &listingRepository{db: db}
}

func orderedImages(db *gorm.DB) *gorm.DB {
	return db.Order("sort_order ASC").Order("created_at DESC")
}

func (r *listingRepository) Create(listing *model.Listing) error {
	logger.Debug("Creating listing in database", map[string]interface{}{
		"artist":     listing.Artist,
		"title":      listing.Title,
		"release_id": listing.ReleaseID,
	})

	if err := r.db.Create(listing).Error; err != nil {
		logger.Error("Failed to create listing in database", err, map[string]interface{}{
			"artist": listing.Artist,
			"title":  listing.Title,
		})
		return err
	}

	logger.Debug("Listing created in database", map[string]interface{}{
		"listing_id": listing.ID,
	})
	return nil
}

// BulkCreate inserts imported listings in batches
func (r *listingRepository) BulkCreate(listings []model.Listing, batchSize int) error {
	if len(listings) == 0 {
		return nil
	}
	if err := r.db.CreateInBatches(listings, batchSize).Error; err != nil {
		logger.Error("Failed to bulk create listings in database", err, map[string]interface{}{
			"count": len(listings),
		})
		return err
	}

	logger.Info("Listings bulk created in database", map[string]interface{}{
		"count": len(listings),
	})
	return nil
}

func (r *listingRepository) FindByID(id uint) (*model.Listing, error) {
	logger.Debug("Finding listing by ID in database", map[string]interface{}{
		"listing_id": id,
	})

	var listing model.Listing
	err := r.db.Preload("Images", orderedImages).First(&listing, id).Error
	if err != nil {
		logger.Error("Failed to find listing by ID in database", err, map[string]interface{}{
			"listing_id": id,
		})
		return nil, err
	}

	logger.Debug("Listing found by ID in database", map[string]interface{}{
		"listing_id":  listing.ID,
		"image_count": len(listing.Images),
	})
	return &listing, nil
}

func (r *listingRepository) FindByIDs(ids []uint) ([]model.Listing, error) {
	if len(ids) == 0 {
		return []model.Listing{}, nil
	}

	var listings []model.Listing
	if err := r.db.Where("id IN ?", ids).Find(&listings).Error; err != nil {
		logger.Error("Failed to find listings by IDs in database", err, map[string]interface{}{
			"count": len(ids),
		})
		return nil, err
	}

	logger.Debug("Listings found by IDs in database", map[string]interface{}{
		"requested": len(ids),
		"found":     len(listings),
	})
	return listings, nil
}

func (r *listingRepository) FindWithFilter(filter ListingFilter) ([]model.Listing, int64, error) {
	logger.Debug("Finding listings with filter in database", map[string]interface{}{
		"artist":    filter.Artist,
		"title":     filter.Title,
		"format":    filter.Format,
		"condition": filter.Condition,
		"search":    filter.Search,
		"limit":     filter.Limit,
		"offset":    filter.Offset,
	})

	query := r.db.Model(&model.Listing{})

	if filter.Artist != "" {
		query = query.Where("LOWER(artist) LIKE ?", "%"+strings.ToLower(filter.Artist)+"%")
	}
	if filter.Title != "" {
		query = query.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(filter.Title)+"%")
	}
	if filter.Format != "" {
		query = query.Where("LOWER(formats) LIKE ?", "%"+strings.ToLower(filter.Format)+"%")
	}
	if filter.Condition != "" {
		query = query.Where("condition = ?", filter.Condition)
	}
	if filter.Featured != nil {
		query = query.Where("featured = ?", *filter.Featured)
	}
	if filter.InStockOnly {
		query = query.Where("stock IS NULL OR stock > 0")
	}
	if filter.Search != "" {
		like := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(artist) LIKE ? OR LOWER(title) LIKE ? OR LOWER(catalog_number) LIKE ?", like, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		logger.Error("Failed to count listings in database", err)
		return nil, 0, err
	}

	query = query.Order("created_at DESC").Order("id DESC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var listings []model.Listing
	if err := query.Preload("Images", orderedImages).Find(&listings).Error; err != nil {
		logger.Error("Failed to find listings with filter in database", err)
		return nil, 0, err
	}

	logger.Debug("Listings found with filter in database", map[string]interface{}{
		"count": len(listings),
		"total": total,
	})
	return listings, total, nil
}

func (r *listingRepository) FindAll() ([]model.Listing, error) {
	var listings []model.Listing
	if err := r.db.Order("created_at DESC").Find(&listings).Error; err != nil {
		logger.Error("Failed to find all listings in database", err)
		return nil, err
	}

	logger.Debug("All listings found in database", map[string]interface{}{
		"count": len(listings),
	})
	return listings, nil
}

func (r *listingRepository) Update(listing *model.Listing) error {
	logger.Debug("Updating listing in database", map[string]interface{}{
		"listing_id": listing.ID,
	})

	if err := r.db.Omit("Images", "CreatedBy").Save(listing).Error; err != nil {
		logger.Error("Failed to update listing in database", err, map[string]interface{}{
			"listing_id": listing.ID,
		})
		return err
	}

	logger.Debug("Listing updated in database", map[string]interface{}{
		"listing_id": listing.ID,
		"featured":   listing.Featured,
	})
	return nil
}

// Delete removes a listing and its images. Order lines keep their snapshot with a cleared link.
func (r *listingRepository) Delete(id uint) error {
	logger.Debug("Deleting listing from database", map[string]interface{}{
		"listing_id": id,
	})

	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("listing_id = ?", id).Delete(&model.ListingImage{}).Error; err != nil {
			return err
		}
		if err := tx.Where("listing_id = ?", id).Delete(&model.BasketItem{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.OrderItem{}).Where("listing_id = ?", id).
			Update("listing_id", nil).Error; err != nil {
			return err
		}
		result := tx.Delete(&model.Listing{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		logger.Error("Failed to delete listing from database", err, map[string]interface{}{
			"listing_id": id,
		})
		return err
	}

	logger.Debug("Listing deleted from database", map[string]interface{}{
		"listing_id": id,
	})
	return nil
}

// UnfeatureOutOfStock clears the featured flag on every listing whose stock is exactly zero
func (r *listingRepository) UnfeatureOutOfStock() (int64, error) {
	result := r.db.Model(&model.Listing{}).
		Where("stock = ? AND featured = ?", 0, true).
		Update("featured", false)
	if result.Error != nil {
		logger.Error("Failed to unfeature out of stock listings", result.Error)
		return 0, result.Error
	}

	logger.Debug("Out of stock listings unfeatured", map[string]interface{}{
		"updated": result.RowsAffected,
	})
	return result.RowsAffected, nil
}

func (r *listingRepository) AddImage(image *model.ListingImage) error {
	logger.Debug("Creating listing image in database", map[string]interface{}{
		"listing_id": image.ListingID,
	})

	if err := r.db.Create(image).Error; err != nil {
		logger.Error("Failed to create listing image in database", err, map[string]interface{}{
			"listing_id": image.ListingID,
		})
		return err
	}
	return nil
}

func (r *listingRepository) FindImage(listingID, imageID uint) (*model.ListingImage, error) {
	var image model.ListingImage
	err := r.db.Where("id = ? AND listing_id = ?", imageID, listingID).First(&image).Error
	if err != nil {
		logger.Error("Failed to find listing image in database", err, map[string]interface{}{
			"listing_id": listingID,
			"image_id":   imageID,
		})
		return nil, err
	}
	return &image, nil
}

func (r *listingRepository) DeleteImage(id uint) error {
	if err := r.db.Delete(&model.ListingImage{}, id).Error; err != nil {
		logger.Error("Failed to delete listing image from database", err, map[string]interface{}{
			"image_id": id,
		})
		return err
	}

	logger.Debug("Listing image deleted from database", map[string]interface{}{
		"image_id": id,
	})
	return nil
}
