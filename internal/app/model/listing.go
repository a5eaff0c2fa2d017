package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Condition is the Goldmine grading of a record
type Condition string

const (
	ConditionPoor         Condition = "P"
	ConditionFair         Condition = "F"
	ConditionGood         Condition = "G"
	ConditionGoodPlus     Condition = "G+"
	ConditionVeryGood     Condition = "VG"
	ConditionVeryGoodPlus Condition = "VG+"
	ConditionNearMint     Condition = "NM"
	ConditionMint         Condition = "M"
)

var conditionLabels = map[Condition]string{
	ConditionPoor:         "Poor",
	ConditionFair:         "Fair",
	ConditionGood:         "Good",
	ConditionGoodPlus:     "Good Plus",
	ConditionVeryGood:     "Very Good",
	ConditionVeryGoodPlus: "Very Good Plus",
	ConditionNearMint:     "Near Mint",
	ConditionMint:         "Mint",
}

// Valid accepts the empty condition (ungraded) and the eight grades
func (c Condition) Valid() bool {
	if c == "" {
		return true
	}
	_, ok := conditionLabels[c]
	return ok
}

func (c Condition) Label() string {
	return conditionLabels[c]
}

type Listing struct {
	ID            uint                `gorm:"primarykey" json:"id"`
	Artist        string              `gorm:"size:255" json:"artist"`
	Title         string              `gorm:"size:255" json:"title"`
	Year          *int                `json:"year,omitempty"`
	Country       string              `gorm:"size:128" json:"country"`
	CatalogNumber string              `gorm:"size:128" json:"catalog_number"`
	Formats       string              `gorm:"type:text" json:"formats"`
	ReleaseNotes  string              `gorm:"type:text" json:"release_notes"`
	Thumb         string              `json:"thumb"`
	ResourceURL   string              `json:"resource_url"`
	ReleaseID     *int                `gorm:"index" json:"release_id,omitempty"` // Discogs release id
	Price         decimal.NullDecimal `gorm:"type:decimal(10,2)" json:"price"`
	Stock         *int                `json:"stock"` // nil means unlimited
	Condition     Condition           `gorm:"type:varchar(4)" json:"condition"`
	Featured      bool                `gorm:"default:false;index" json:"featured"`
	CreatedByID   *uint               `gorm:"index" json:"created_by_id,omitempty"`
	CreatedAt     time.Time           `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`

	CreatedBy *User          `gorm:"foreignKey:CreatedByID;constraint:OnDelete:SET NULL" json:"-"`
	Images    []ListingImage `gorm:"foreignKey:ListingID;constraint:OnDelete:CASCADE" json:"images,omitempty"`
}

func (Listing) TableName() string {
	return "listings"
}

// BeforeSave keeps out-of-stock listings off the featured shelf
func (l *Listing) BeforeSave(tx *gorm.DB) error {
	if l.Stock != nil && *l.Stock == 0 {
		l.Featured = false
	}
	return nil
}

// DisplayName is the "Artist - Title" form used on receipts and checkout lines
func (l *Listing) DisplayName() string {
	switch {
	case l.Artist != "" && l.Title != "":
		return l.Artist + " - " + l.Title
	case l.Title != "":
		return l.Title
	case l.Artist != "":
		return l.Artist
	default:
		return fmt.Sprintf("Listing #%d", l.ID)
	}
}

func (l *Listing) String() string {
	if l.CatalogNumber == "" {
		return l.DisplayName()
	}
	return fmt.Sprintf("%s (%s)", l.DisplayName(), l.CatalogNumber)
}

// MatchesName reports whether a free-text product name refers to this listing
func (l *Listing) MatchesName(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	return strings.EqualFold(name, l.DisplayName()) || strings.EqualFold(name, l.String())
}

// InStock is false only when stock is tracked and has run out
func (l *Listing) InStock() bool {
	return l.Stock == nil || *l.Stock > 0
}

// Allows reports whether qty copies fit within tracked stock
func (l *Listing) Allows(qty int) bool {
	return l.Stock == nil || qty <= *l.Stock
}

type ListingImage struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	ListingID    uint      `gorm:"not null;index" json:"listing_id"`
	URL          string    `gorm:"not null" json:"url"`
	StorageKey   string    `json:"-"`
	Caption      string    `gorm:"size:255" json:"caption"`
	Order        int       `gorm:"column:sort_order;default:0" json:"order"`
	UploadedByID *uint     `gorm:"index" json:"uploaded_by_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func (ListingImage) TableName() string {
	return "listing_images"
}
