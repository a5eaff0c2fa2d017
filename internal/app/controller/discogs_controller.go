package controller

import (
	"net/http"
	"strconv"

	"github.com/alansalbums/alans-albums-backend/internal/app/service"
	apperrors "github.com/alansalbums/alans-albums-backend/internal/errors"
	"github.com/alansalbums/alans-albums-backend/internal/middleware"
	"github.com/alansalbums/alans-albums-backend/pkg/discogs"
	"github.com/gin-gonic/gin"
)

// DiscogsController exposes the catalog lookup to staff. Lookup failures
// come back as empty results, never as errors.
type DiscogsController struct {
	catalogService service.CatalogService
}

func NewDiscogsController(catalogService service.CatalogService) *DiscogsController {
	return &DiscogsController{catalogService: catalogService}
}

func releaseIDParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		apperrors.BadRequest(c, apperrors.ValidationInvalidID, "Invalid release ID")
		return 0, false
	}
	return id, true
}

// Search queries the Discogs database
// GET /api/v1/discogs/search?q=&type=release&page=1&per_page=10
func (ctrl *DiscogsController) Search(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	params := discogs.SearchParams{
		Query:   c.Query("q"),
		Type:    c.Query("type"),
		Page:    queryInt(c, "page", 1),
		PerPage: queryInt(c, "per_page", 0),
	}
	results := ctrl.catalogService.Search(c.Request.Context(), params)

	log.Debug("Discogs search served", map[string]interface{}{
		"query":   params.Query,
		"results": len(results),
	})
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// GetRelease returns one release
// GET /api/v1/discogs/releases/:id
func (ctrl *DiscogsController) GetRelease(c *gin.Context) {
	id, ok := releaseIDParam(c)
	if !ok {
		return
	}

	release := ctrl.catalogService.GetRelease(c.Request.Context(), id)
	if release == nil {
		apperrors.NotFound(c, apperrors.ResourceNotFound, "Release not found on Discogs")
		return
	}
	c.JSON(http.StatusOK, gin.H{"release": release})
}

// PriceSuggestions returns suggested prices per condition grade
// GET /api/v1/discogs/releases/:id/prices
func (ctrl *DiscogsController) PriceSuggestions(c *gin.Context) {
	id, ok := releaseIDParam(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{"prices": ctrl.catalogService.PriceSuggestions(c.Request.Context(), id)})
}
