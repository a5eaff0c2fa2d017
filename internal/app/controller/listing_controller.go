package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/alansalbums/alans-albums-backend/internal/app/model"
	"github.com/alansalbums/alans-albums-backend/internal/app/service"
	apperrors "github.com/alansalbums/alans-albums-backend/internal/errors"
	"github.com/alansalbums/alans-albums-backend/internal/middleware"
	"github.com/alansalbums/alans-albums-backend/internal/storage"
	"github.com/gin-gonic/gin"
)

type ListingController struct {
	listingService service.ListingService
	catalogService service.CatalogService
}

func NewListingController(listingService service.ListingService, catalogService service.CatalogService) *ListingController {
	return &ListingController{
		listingService: listingService,
		catalogService: catalogService,
	}
}

// respondListingError maps listing service errors to responses
func respondListingError(c *gin.Context, err error, context string) {
	switch {
	case errors.Is(err, service.ErrListingNotFound):
		apperrors.NotFound(c, apperrors.ListingNotFound, "Listing not found")
	case errors.Is(err, service.ErrListingImageNotFound):
		apperrors.NotFound(c, apperrors.ListingImageNotFound, "Image not found")
	case errors.Is(err, service.ErrReleaseNotFound):
		apperrors.NotFound(c, apperrors.ResourceNotFound, "Release not found on Discogs")
	case errors.Is(err, service.ErrValidation):
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, err.Error())
	case errors.Is(err, service.ErrExternalService):
		apperrors.BadGateway(c, "")
	default:
		middleware.GetLoggerFromContext(c).Error("Listing request failed", err, map[string]interface{}{
			"context": context,
		})
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, context)
	}
}

// ListListings returns the public store
// GET /api/v1/listings
func (ctrl *ListingController) ListListings(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	opts := service.ListingListOptions{
		Artist:       c.Query("artist"),
		Title:        c.Query("title"),
		Format:       c.Query("format"),
		Condition:    model.Condition(c.Query("condition")),
		FeaturedOnly: c.Query("featured") == "true",
		InStockOnly:  c.Query("in_stock") == "true",
		Search:       c.Query("search"),
		Page:         queryInt(c, "page", 1),
		PerPage:      queryInt(c, "page_size", 0),
	}
	if opts.Condition != "" && !opts.Condition.Valid() {
		apperrors.BadRequest(c, apperrors.ValidationInvalidFormat, "Unknown condition grade")
		return
	}

	page, err := ctrl.listingService.ListListings(opts)
	if err != nil {
		respondListingError(c, err, "list listings")
		return
	}

	log.Debug("Listings fetched", map[string]interface{}{
		"count": len(page.Listings),
		"total": page.Total,
	})
	c.JSON(http.StatusOK, page)
}

// GetListing returns one listing
// GET /api/v1/listings/:id
func (ctrl *ListingController) GetListing(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		apperrors.BadRequest(c, apperrors.ValidationInvalidID, "Invalid listing ID")
		return
	}

	listing, err := ctrl.listingService.GetListing(id)
	if err != nil {
		respondListingError(c, err, "get listing")
		return
	}

	c.JSON(http.StatusOK, gin.H{"listing": listing})
}

// CreateListing adds a listing (staff)
// POST /api/v1/listings
func (ctrl *ListingController) CreateListing(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)
	userID, _ := middleware.GetUserID(c)

	var req service.ListingInput
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid listing creation request", map[string]interface{}{
			"error": err.Error(),
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Invalid request data")
		return
	}

	listing, err := ctrl.listingService.CreateListing(userID, req)
	if err != nil {
		respondListingError(c, err, "create listing")
		return
	}

	log.Info("Listing created", map[string]interface{}{
		"listing_id": listing.ID,
		"user_id":    userID,
	})
	c.JSON(http.StatusCreated, gin.H{"listing": listing})
}

// UpdateListing replaces the editable fields (staff)
// PUT /api/v1/listings/:id
func (ctrl *ListingController) UpdateListing(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	id, ok := parseIDParam(c, "id")
	if !ok {
		apperrors.BadRequest(c, apperrors.ValidationInvalidID, "Invalid listing ID")
		return
	}

	var req service.ListingInput
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid listing update request", map[string]interface{}{
			"listing_id": id,
			"error":      err.Error(),
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Invalid request data")
		return
	}

	listing, err := ctrl.listingService.UpdateListing(id, req)
	if err != nil {
		respondListingError(c, err, "update listing")
		return
	}

	c.JSON(http.StatusOK, gin.H{"listing": listing})
}

// QuickUpdate changes price, stock, featured or condition inline (staff)
// PATCH /api/v1/listings/:id
func (ctrl *ListingController) QuickUpdate(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		apperrors.BadRequest(c, apperrors.ValidationInvalidID, "Invalid listing ID")
		return
	}

	var req service.QuickUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Invalid request data")
		return
	}

	listing, err := ctrl.listingService.QuickUpdate(id, req)
	if err != nil {
		respondListingError(c, err, "update listing")
		return
	}

	c.JSON(http.StatusOK, gin.H{"listing": listing})
}

// DeleteListing removes a listing and its images (staff)
// DELETE /api/v1/listings/:id
func (ctrl *ListingController) DeleteListing(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	id, ok := parseIDParam(c, "id")
	if !ok {
		apperrors.BadRequest(c, apperrors.ValidationInvalidID, "Invalid listing ID")
		return
	}

	if err := ctrl.listingService.DeleteListing(c.Request.Context(), id); err != nil {
		respondListingError(c, err, "delete listing")
		return
	}

	log.Info("Listing deleted", map[string]interface{}{
		"listing_id": id,
	})
	c.JSON(http.StatusOK, gin.H{"message": "Listing deleted"})
}

// AddImage uploads one image to a listing (staff)
// POST /api/v1/listings/:id/images
func (ctrl *ListingController) AddImage(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	id, ok := parseIDParam(c, "id")
	if !ok {
		apperrors.BadRequest(c, apperrors.ValidationInvalidID, "Invalid listing ID")
		return
	}

	header, err := c.FormFile("image")
	if err != nil {
		apperrors.BadRequest(c, apperrors.ValidationRequired, "An image file is required")
		return
	}
	if err := storage.ValidateImage(header.Header.Get("Content-Type"), header.Size); err != nil {
		code := apperrors.UploadInvalidFileType
		if errors.Is(err, storage.ErrFileTooLarge) {
			code = apperrors.UploadFileTooLarge
		}
		apperrors.BadRequest(c, code, err.Error())
		return
	}

	file, err := header.Open()
	if err != nil {
		apperrors.BadRequest(c, apperrors.UploadFailed, "Could not read the uploaded file")
		return
	}
	defer file.Close()

	order, _ := strconv.Atoi(c.PostForm("order"))
	image, err := ctrl.listingService.AddImage(c.Request.Context(), id, userID, service.ImageUpload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	}, c.PostForm("caption"), order)
	if err != nil {
		respondListingError(c, err, "upload image")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"image": image})
}

// DeleteImage removes one listing image (staff)
// DELETE /api/v1/listings/:id/images/:imageId
func (ctrl *ListingController) DeleteImage(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		apperrors.BadRequest(c, apperrors.ValidationInvalidID, "Invalid listing ID")
		return
	}
	imageID, ok := parseIDParam(c, "imageId")
	if !ok {
		apperrors.BadRequest(c, apperrors.ValidationInvalidID, "Invalid image ID")
		return
	}

	if err := ctrl.listingService.DeleteImage(c.Request.Context(), id, imageID); err != nil {
		respondListingError(c, err, "delete image")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Image deleted"})
}

// Prefill builds a listing draft from a Discogs release (staff)
// GET /api/v1/listings/prefill/:releaseId?condition=VG+
func (ctrl *ListingController) Prefill(c *gin.Context) {
	releaseID, err := strconv.Atoi(c.Param("releaseId"))
	if err != nil || releaseID <= 0 {
		apperrors.BadRequest(c, apperrors.ValidationInvalidID, "Invalid release ID")
		return
	}

	input, err := ctrl.catalogService.Prefill(c.Request.Context(), releaseID, model.Condition(c.Query("condition")))
	if err != nil {
		respondListingError(c, err, "prefill listing")
		return
	}

	c.JSON(http.StatusOK, gin.H{"listing": input})
}
