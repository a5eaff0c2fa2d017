package model

import "time"

// Basket is the persistent basket of a registered user
type Basket struct {
	ID        uint         `gorm:"primarykey" json:"id"`
	UserID    uint         `gorm:"not null;uniqueIndex" json:"user_id"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
	Items     []BasketItem `gorm:"foreignKey:BasketID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

func (Basket) TableName() string {
	return "baskets"
}

type BasketItem struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	BasketID  uint      `gorm:"not null;uniqueIndex:idx_basket_items_basket_listing,priority:1" json:"basket_id"`
	ListingID uint      `gorm:"not null;uniqueIndex:idx_basket_items_basket_listing,priority:2;index" json:"listing_id"`
	Quantity  int       `gorm:"not null;default:1" json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Listing Listing `gorm:"foreignKey:ListingID;constraint:OnDelete:CASCADE" json:"-"`
}

func (BasketItem) TableName() string {
	return "basket_items"
}

// BasketMerge records an applied session-to-account merge so it is never applied twice
type BasketMerge struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Token     string    `gorm:"size:64;not null;uniqueIndex" json:"token"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Lines     int       `json:"lines"`
	CreatedAt time.Time `json:"created_at"`
}

func (BasketMerge) TableName() string {
	return "basket_merges"
}
