package discogs

import (
	"fmt"
	"strings"
)

// SearchParams are the query parameters of /database/search
type SearchParams struct {
	Query   string
	Type    string
	Page    int
	PerPage int
}

func (p *SearchParams) normalize() {
	p.Query = strings.TrimSpace(p.Query)
	if p.Type == "" {
		p.Type = "release"
	}
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage < 1 {
		p.PerPage = 12
	}
}

func (p SearchParams) cacheKey() string {
	return fmt.Sprintf("discogs:search:%s:%s:%d:%d", p.Query, p.Type, p.Page, p.PerPage)
}

// SearchResult is one entry of a search response
type SearchResult struct {
	ID          int      `json:"id"`
	Type        string   `json:"type"`
	Title       string   `json:"title"`
	Year        string   `json:"year,omitempty"`
	Country     string   `json:"country,omitempty"`
	CatNo       string   `json:"catno,omitempty"`
	Format      []string `json:"format,omitempty"`
	Label       []string `json:"label,omitempty"`
	Thumb       string   `json:"thumb,omitempty"`
	CoverImage  string   `json:"cover_image,omitempty"`
	ResourceURL string   `json:"resource_url,omitempty"`
}

type searchResponse struct {
	Results []SearchResult `json:"results"`
}

type Artist struct {
	Name string `json:"name"`
}

type Format struct {
	Name         string   `json:"name"`
	Qty          string   `json:"qty"`
	Descriptions []string `json:"descriptions,omitempty"`
}

type Label struct {
	Name  string `json:"name"`
	CatNo string `json:"catno"`
}

type Image struct {
	Type string `json:"type"`
	URI  string `json:"uri"`
}

// Release is the subset of /releases/{id} used to prefill listings
type Release struct {
	ID          int      `json:"id"`
	Title       string   `json:"title"`
	Year        int      `json:"year"`
	Country     string   `json:"country"`
	Notes       string   `json:"notes"`
	Thumb       string   `json:"thumb"`
	ResourceURL string   `json:"resource_url"`
	URI         string   `json:"uri"`
	Artists     []Artist `json:"artists"`
	Formats     []Format `json:"formats"`
	Labels      []Label  `json:"labels"`
	Images      []Image  `json:"images,omitempty"`
}

// ArtistNames joins the credited artists the way Discogs displays them
func (r *Release) ArtistNames() string {
	names := make([]string, 0, len(r.Artists))
	for _, a := range r.Artists {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}

// FormatSummary renders formats as "Vinyl, LP, Album"
func (r *Release) FormatSummary() string {
	var parts []string
	for _, f := range r.Formats {
		parts = append(parts, f.Name)
		parts = append(parts, f.Descriptions...)
	}
	return strings.Join(parts, ", ")
}

// CatalogNumber returns the first label catalog number
func (r *Release) CatalogNumber() string {
	for _, l := range r.Labels {
		if l.CatNo != "" {
			return l.CatNo
		}
	}
	return ""
}

// Price is a marketplace price suggestion
type Price struct {
	Currency string  `json:"currency"`
	Value    float64 `json:"value"`
}

// PriceSuggestions maps Discogs condition names ("Very Good Plus (VG+)") to prices
type PriceSuggestions map[string]Price
