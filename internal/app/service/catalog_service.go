package service

import (
	"context"
	"strings"

	"github.com/alansalbums/alans-albums-backend/internal/app/model"
	"github.com/alansalbums/alans-albums-backend/pkg/discogs"
	"github.com/alansalbums/alans-albums-backend/pkg/logger"
	"github.com/shopspring/decimal"
)

// CatalogLookup is the external discography database
type CatalogLookup interface {
	Search(ctx context.Context, params discogs.SearchParams) ([]discogs.SearchResult, error)
	GetRelease(ctx context.Context, releaseID int) (*discogs.Release, error)
	PriceSuggestions(ctx context.Context, releaseID int) (discogs.PriceSuggestions, error)
}

// Discogs names for each grade in price suggestion responses
var discogsGradeNames = map[model.Condition]string{
	model.ConditionPoor:         "Poor (P)",
	model.ConditionFair:         "Fair (F)",
	model.ConditionGood:         "Good (G)",
	model.ConditionGoodPlus:     "Good Plus (G+)",
	model.ConditionVeryGood:     "Very Good (VG)",
	model.ConditionVeryGoodPlus: "Very Good Plus (VG+)",
	model.ConditionNearMint:     "Near Mint (NM or M-)",
	model.ConditionMint:         "Mint (M)",
}

// CatalogService fronts the lookup. Lookup failures degrade to empty answers.
type CatalogService interface {
	Search(ctx context.Context, params discogs.SearchParams) []discogs.SearchResult
	GetRelease(ctx context.Context, releaseID int) *discogs.Release
	PriceSuggestions(ctx context.Context, releaseID int) discogs.PriceSuggestions
	Prefill(ctx context.Context, releaseID int, condition model.Condition) (*ListingInput, error)
}

type catalogService struct {
	lookup CatalogLookup
}

func NewCatalogService(lookup CatalogLookup) CatalogService {
	return &catalogService{lookup: lookup}
}

func (s *catalogService) Search(ctx context.Context, params discogs.SearchParams) []discogs.SearchResult {
	results, err := s.lookup.Search(ctx, params)
	if err != nil {
		logger.Warn("Discogs search failed", map[string]interface{}{
			"query": params.Query,
			"error": err.Error(),
		})
		return []discogs.SearchResult{}
	}
	return results
}

func (s *catalogService) GetRelease(ctx context.Context, releaseID int) *discogs.Release {
	release, err := s.lookup.GetRelease(ctx, releaseID)
	if err != nil {
		logger.Warn("Discogs release lookup failed", map[string]interface{}{
			"release_id": releaseID,
			"error":      err.Error(),
		})
		return nil
	}
	return release
}

func (s *catalogService) PriceSuggestions(ctx context.Context, releaseID int) discogs.PriceSuggestions {
	prices, err := s.lookup.PriceSuggestions(ctx, releaseID)
	if err != nil {
		logger.Warn("Discogs price suggestions failed", map[string]interface{}{
			"release_id": releaseID,
			"error":      err.Error(),
		})
		return discogs.PriceSuggestions{}
	}
	return prices
}

// Prefill builds a new listing from a release, priced at the suggestion for condition
func (s *catalogService) Prefill(ctx context.Context, releaseID int, condition model.Condition) (*ListingInput, error) {
	if !condition.Valid() {
		return nil, ErrValidation
	}

	release := s.GetRelease(ctx, releaseID)
	if release == nil {
		return nil, ErrReleaseNotFound
	}

	id := release.ID
	if id == 0 {
		id = releaseID
	}
	input := &ListingInput{
		Artist:        release.ArtistNames(),
		Title:         release.Title,
		Country:       release.Country,
		CatalogNumber: release.CatalogNumber(),
		Formats:       release.FormatSummary(),
		ReleaseNotes:  strings.TrimSpace(release.Notes),
		Thumb:         release.Thumb,
		ResourceURL:   release.ResourceURL,
		ReleaseID:     &id,
		Condition:     condition,
	}
	if release.Year > 0 {
		year := release.Year
		input.Year = &year
	}
	if input.Thumb == "" && len(release.Images) > 0 {
		input.Thumb = release.Images[0].URI
	}

	if condition != "" {
		prices := s.PriceSuggestions(ctx, releaseID)
		if suggestion, ok := prices[discogsGradeNames[condition]]; ok && suggestion.Value > 0 {
			price := decimal.NewFromFloat(suggestion.Value).Round(2)
			input.Price = &price
		}
	}

	logger.Debug("Listing prefilled from release", map[string]interface{}{
		"release_id": releaseID,
		"condition":  condition,
		"priced":     input.Price != nil,
	})
	return input, nil
}
