package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alansalbums/alans-albums-backend/internal/app/model"
	"github.com/alansalbums/alans-albums-backend/internal/app/repository"
	"github.com/alansalbums/alans-albums-backend/internal/storage"
	"github.com/alansalbums/alans-albums-backend/pkg/logger"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	defaultPerPage = 24
	maxPerPage     = 100
)

type ListingListOptions struct {
	Artist       string
	Title        string
	Format       string
	Condition    model.Condition
	FeaturedOnly bool
	InStockOnly  bool
	Search       string
	Page         int
	PerPage      int
}

type ListingPage struct {
	Listings []model.Listing `json:"listings"`
	Total    int64           `json:"total"`
	Page     int             `json:"page"`
	PerPage  int             `json:"per_page"`
}

// ListingInput holds every editable listing field
type ListingInput struct {
	Artist        string           `json:"artist"`
	Title         string           `json:"title"`
	Year          *int             `json:"year"`
	Country       string           `json:"country"`
	CatalogNumber string           `json:"catalog_number"`
	Formats       string           `json:"formats"`
	ReleaseNotes  string           `json:"release_notes"`
	Thumb         string           `json:"thumb"`
	ResourceURL   string           `json:"resource_url"`
	ReleaseID     *int             `json:"release_id"`
	Price         *decimal.Decimal `json:"price"`
	Stock         *int             `json:"stock"`
	Condition     model.Condition  `json:"condition"`
	Featured      bool             `json:"featured"`
}

// QuickUpdate changes only the fields that are set
type QuickUpdate struct {
	Price     *decimal.Decimal `json:"price"`
	Stock     *int             `json:"stock"`
	Featured  *bool            `json:"featured"`
	Condition *model.Condition `json:"condition"`
}

type ListingService interface {
	ListListings(opts ListingListOptions) (*ListingPage, error)
	GetListing(id uint) (*model.Listing, error)
	CreateListing(userID uint, input ListingInput) (*model.Listing, error)
	UpdateListing(id uint, input ListingInput) (*model.Listing, error)
	QuickUpdate(id uint, update QuickUpdate) (*model.Listing, error)
	DeleteListing(ctx context.Context, id uint) error
	AddImage(ctx context.Context, listingID, userID uint, upload ImageUpload, caption string, order int) (*model.ListingImage, error)
	DeleteImage(ctx context.Context, listingID, imageID uint) error
	UnfeatureOutOfStock() (int64, error)
}

type listingService struct {
	listingRepo repository.ListingRepository
	images      storage.ImageStore
}

func NewListingService(listingRepo repository.ListingRepository, images storage.ImageStore) ListingService {
	return &listingService{
		listingRepo: listingRepo,
		images:      images,
	}
}

func (s *listingService) ListListings(opts ListingListOptions) (*ListingPage, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.PerPage <= 0 {
		opts.PerPage = defaultPerPage
	}
	if opts.PerPage > maxPerPage {
		opts.PerPage = maxPerPage
	}

	filter := repository.ListingFilter{
		Artist:      strings.TrimSpace(opts.Artist),
		Title:       strings.TrimSpace(opts.Title),
		Format:      strings.TrimSpace(opts.Format),
		Condition:   opts.Condition,
		InStockOnly: opts.InStockOnly,
		Search:      strings.TrimSpace(opts.Search),
		Limit:       opts.PerPage,
		Offset:      (opts.Page - 1) * opts.PerPage,
	}
	if opts.FeaturedOnly {
		featured := true
		filter.Featured = &featured
	}

	listings, total, err := s.listingRepo.FindWithFilter(filter)
	if err != nil {
		logger.Error("Failed to list listings", err, map[string]interface{}{
			"page": opts.Page,
		})
		return nil, err
	}

	logger.Debug("Listings listed", map[string]interface{}{
		"count": len(listings),
		"total": total,
		"page":  opts.Page,
	})

	return &ListingPage{
		Listings: listings,
		Total:    total,
		Page:     opts.Page,
		PerPage:  opts.PerPage,
	}, nil
}

func (s *listingService) GetListing(id uint) (*model.Listing, error) {
	listing, err := s.listingRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn("Listing not found", map[string]interface{}{
				"listing_id": id,
			})
			return nil, ErrListingNotFound
		}
		logger.Error("Failed to fetch listing", err, map[string]interface{}{
			"listing_id": id,
		})
		return nil, err
	}
	return listing, nil
}

func validateListingInput(input ListingInput) error {
	if strings.TrimSpace(input.Artist) == "" && strings.TrimSpace(input.Title) == "" {
		return fmt.Errorf("%w: artist or title is required", ErrValidation)
	}
	if input.Price != nil && input.Price.IsNegative() {
		return fmt.Errorf("%w: price cannot be negative", ErrValidation)
	}
	if input.Stock != nil && *input.Stock < 0 {
		return fmt.Errorf("%w: stock cannot be negative", ErrValidation)
	}
	if !input.Condition.Valid() {
		return fmt.Errorf("%w: unknown condition %q", ErrValidation, input.Condition)
	}
	return nil
}

func applyListingInput(listing *model.Listing, input ListingInput) {
	listing.Artist = strings.TrimSpace(input.Artist)
	listing.Title = strings.TrimSpace(input.Title)
	listing.Year = input.Year
	listing.Country = strings.TrimSpace(input.Country)
	listing.CatalogNumber = strings.TrimSpace(input.CatalogNumber)
	listing.Formats = strings.TrimSpace(input.Formats)
	listing.ReleaseNotes = input.ReleaseNotes
	listing.Thumb = input.Thumb
	listing.ResourceURL = input.ResourceURL
	listing.ReleaseID = input.ReleaseID
	listing.Stock = input.Stock
	listing.Condition = input.Condition
	listing.Featured = input.Featured
	if input.Price != nil {
		listing.Price = decimal.NewNullDecimal(input.Price.Round(2))
	} else {
		listing.Price = decimal.NullDecimal{}
	}
}

func (s *listingService) CreateListing(userID uint, input ListingInput) (*model.Listing, error) {
	if err := validateListingInput(input); err != nil {
		logger.Warn("Invalid listing input", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
		return nil, err
	}

	listing := &model.Listing{}
	applyListingInput(listing, input)
	if userID != 0 {
		listing.CreatedByID = &userID
	}

	if err := s.listingRepo.Create(listing); err != nil {
		logger.Error("Failed to create listing", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}

	logger.Info("Listing created", map[string]interface{}{
		"listing_id": listing.ID,
		"user_id":    userID,
		"release_id": listing.ReleaseID,
	})
	return listing, nil
}

func (s *listingService) UpdateListing(id uint, input ListingInput) (*model.Listing, error) {
	if err := validateListingInput(input); err != nil {
		return nil, err
	}

	listing, err := s.GetListing(id)
	if err != nil {
		return nil, err
	}

	applyListingInput(listing, input)
	if err := s.listingRepo.Update(listing); err != nil {
		logger.Error("Failed to update listing", err, map[string]interface{}{
			"listing_id": id,
		})
		return nil, err
	}

	logger.Info("Listing updated", map[string]interface{}{
		"listing_id": id,
	})
	return listing, nil
}

func (s *listingService) QuickUpdate(id uint, update QuickUpdate) (*model.Listing, error) {
	listing, err := s.GetListing(id)
	if err != nil {
		return nil, err
	}

	if update.Price != nil {
		if update.Price.IsNegative() {
			return nil, fmt.Errorf("%w: price cannot be negative", ErrValidation)
		}
		listing.Price = decimal.NewNullDecimal(update.Price.Round(2))
	}
	if update.Stock != nil {
		if *update.Stock < 0 {
			return nil, fmt.Errorf("%w: stock cannot be negative", ErrValidation)
		}
		stock := *update.Stock
		listing.Stock = &stock
	}
	if update.Featured != nil {
		listing.Featured = *update.Featured
	}
	if update.Condition != nil {
		if !update.Condition.Valid() {
			return nil, fmt.Errorf("%w: unknown condition %q", ErrValidation, *update.Condition)
		}
		listing.Condition = *update.Condition
	}

	if err := s.listingRepo.Update(listing); err != nil {
		logger.Error("Failed to quick update listing", err, map[string]interface{}{
			"listing_id": id,
		})
		return nil, err
	}

	logger.Info("Listing quick updated", map[string]interface{}{
		"listing_id": id,
		"stock":      listing.Stock,
		"featured":   listing.Featured,
	})
	return listing, nil
}

func (s *listingService) DeleteListing(ctx context.Context, id uint) error {
	listing, err := s.GetListing(id)
	if err != nil {
		return err
	}

	if err := s.listingRepo.Delete(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrListingNotFound
		}
		return err
	}

	if s.images != nil {
		for _, image := range listing.Images {
			if err := s.images.Delete(ctx, image.StorageKey); err != nil {
				logger.Warn("Failed to delete listing image object", map[string]interface{}{
					"listing_id": id,
					"key":        image.StorageKey,
					"error":      err.Error(),
				})
			}
		}
	}

	logger.Info("Listing deleted", map[string]interface{}{
		"listing_id":  id,
		"image_count": len(listing.Images),
	})
	return nil
}

func (s *listingService) AddImage(ctx context.Context, listingID, userID uint, upload ImageUpload, caption string, order int) (*model.ListingImage, error) {
	if _, err := s.GetListing(listingID); err != nil {
		return nil, err
	}
	if err := storage.ValidateImage(upload.ContentType, upload.Size); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if s.images == nil {
		return nil, ErrExternalService
	}

	obj, err := s.images.Upload(ctx, fmt.Sprintf("listings/%d", listingID), upload.Filename, upload.ContentType, upload.Body, upload.Size)
	if err != nil {
		logger.Error("Failed to upload listing image", err, map[string]interface{}{
			"listing_id": listingID,
		})
		return nil, fmt.Errorf("%w: %v", ErrExternalService, err)
	}

	image := &model.ListingImage{
		ListingID:  listingID,
		URL:        obj.URL,
		StorageKey: obj.Key,
		Caption:    strings.TrimSpace(caption),
		Order:      order,
	}
	if userID != 0 {
		image.UploadedByID = &userID
	}
	if err := s.listingRepo.AddImage(image); err != nil {
		_ = s.images.Delete(ctx, obj.Key)
		return nil, err
	}

	logger.Info("Listing image added", map[string]interface{}{
		"listing_id": listingID,
		"image_id":   image.ID,
	})
	return image, nil
}

func (s *listingService) DeleteImage(ctx context.Context, listingID, imageID uint) error {
	image, err := s.listingRepo.FindImage(listingID, imageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrListingImageNotFound
		}
		return err
	}

	if err := s.listingRepo.DeleteImage(image.ID); err != nil {
		return err
	}
	if s.images != nil {
		if err := s.images.Delete(ctx, image.StorageKey); err != nil {
			logger.Warn("Failed to delete listing image object", map[string]interface{}{
				"image_id": imageID,
				"error":    err.Error(),
			})
		}
	}

	logger.Info("Listing image deleted", map[string]interface{}{
		"listing_id": listingID,
		"image_id":   imageID,
	})
	return nil
}

// UnfeatureOutOfStock repairs listings that reached zero stock while featured
func (s *listingService) UnfeatureOutOfStock() (int64, error) {
	updated, err := s.listingRepo.UnfeatureOutOfStock()
	if err != nil {
		return 0, err
	}
	if updated > 0 {
		logger.Info("Unfeatured out of stock listings", map[string]interface{}{
			"updated": updated,
		})
	}
	return updated, nil
}
