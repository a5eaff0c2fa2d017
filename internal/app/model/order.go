package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID              uint            `gorm:"primarykey" json:"id"`
	UserID          *uint           `gorm:"index" json:"user_id,omitempty"` // nil for guest checkout
	StripeSessionID string          `gorm:"size:255;not null;uniqueIndex" json:"stripe_session_id"`
	CustomerEmail   string          `gorm:"size:254" json:"customer_email,omitempty"`
	TotalAmount     decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"total_amount"`
	Paid            bool            `gorm:"default:false" json:"paid"`
	CreatedAt       time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`

	User  *User       `gorm:"foreignKey:UserID;constraint:OnDelete:SET NULL" json:"user,omitempty"`
	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

func (Order) TableName() string {
	return "orders"
}

type OrderItem struct {
	ID        uint            `gorm:"primarykey" json:"id"`
	OrderID   uint            `gorm:"not null;index" json:"order_id"`
	ListingID *uint           `gorm:"index" json:"listing_id,omitempty"` // cleared when the listing is deleted
	Title     string          `gorm:"size:512" json:"title"`             // listing name at purchase time
	Quantity  int             `gorm:"not null" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"unit_price"` // price at purchase time
	CreatedAt time.Time       `json:"created_at"`

	Listing *Listing `gorm:"foreignKey:ListingID;constraint:OnDelete:SET NULL" json:"-"`
}

func (OrderItem) TableName() string {
	return "order_items"
}

func (i *OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// PaymentEvent is the ledger of processed payment webhooks
type PaymentEvent struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	EventID     string    `gorm:"size:255;not null;uniqueIndex" json:"event_id"`
	SessionID   string    `gorm:"size:255;not null;uniqueIndex" json:"session_id"`
	Type        string    `gorm:"size:64" json:"type"`
	OrderID     *uint     `gorm:"index" json:"order_id,omitempty"`
	ProcessedAt time.Time `json:"processed_at"`
}

func (PaymentEvent) TableName() string {
	return "payment_events"
}
