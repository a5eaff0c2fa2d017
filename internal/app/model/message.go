package model

import "time"

type MessageSubject string

const (
	SubjectListings MessageSubject = "listings"
	SubjectOrders   MessageSubject = "orders"
	SubjectSelling  MessageSubject = "selling"
	SubjectGeneral  MessageSubject = "general"
)

func (s MessageSubject) Valid() bool {
	switch s {
	case SubjectListings, SubjectOrders, SubjectSelling, SubjectGeneral:
		return true
	}
	return false
}

type ContactPreference string

const (
	ContactEmail ContactPreference = "email"
	ContactPhone ContactPreference = "phone"
)

func (p ContactPreference) Valid() bool {
	return p == ContactEmail || p == ContactPhone
}

// Message is a contact thread opened by a user or a guest
type Message struct {
	ID                uint              `gorm:"primarykey" json:"id"`
	UserID            *uint             `gorm:"index" json:"user_id,omitempty"` // owner; nil for guests
	Name              string            `gorm:"size:120" json:"name"`
	Email             string            `gorm:"size:254" json:"email"`
	Phone             string            `gorm:"size:50" json:"phone,omitempty"`
	Subject           MessageSubject    `gorm:"type:varchar(20);default:'general'" json:"subject"`
	ContactPreference ContactPreference `gorm:"type:varchar(10);default:'email'" json:"contact_preference"`
	Body              string            `gorm:"type:text;not null" json:"body"`
	Reference         string            `gorm:"size:64;not null;uniqueIndex" json:"-"` // guest link token
	Replied           bool              `gorm:"default:false" json:"replied"`
	CreatedAt         time.Time         `gorm:"index" json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`

	User    *User          `gorm:"foreignKey:UserID;constraint:OnDelete:SET NULL" json:"user,omitempty"`
	Images  []MessageImage `gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE" json:"images,omitempty"`
	Replies []Reply        `gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE" json:"replies,omitempty"`
}

func (Message) TableName() string {
	return "messages"
}

func (m *Message) OwnedBy(userID uint) bool {
	return m.UserID != nil && *m.UserID == userID
}

type MessageImage struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	MessageID  uint      `gorm:"not null;index" json:"message_id"`
	URL        string    `gorm:"not null" json:"url"`
	StorageKey string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

func (MessageImage) TableName() string {
	return "message_images"
}

type Reply struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	MessageID uint      `gorm:"not null;index" json:"message_id"`
	UserID    *uint     `gorm:"index" json:"user_id,omitempty"` // nil for a guest reply
	Body      string    `gorm:"type:text;not null" json:"body"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	User   *User        `gorm:"foreignKey:UserID;constraint:OnDelete:SET NULL" json:"user,omitempty"`
	Images []ReplyImage `gorm:"foreignKey:ReplyID;constraint:OnDelete:CASCADE" json:"images,omitempty"`
}

func (Reply) TableName() string {
	return "replies"
}

// AuthoredByStaff is false for guest replies
func (r *Reply) AuthoredByStaff() bool {
	return r.User != nil && r.User.IsStaff()
}

type ReplyImage struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	ReplyID    uint      `gorm:"not null;index" json:"reply_id"`
	URL        string    `gorm:"not null" json:"url"`
	StorageKey string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

func (ReplyImage) TableName() string {
	return "reply_images"
}

// MessageRead marks a message as seen by a user
type MessageRead struct {
	ID        uint       `gorm:"primarykey" json:"id"`
	MessageID uint       `gorm:"not null;uniqueIndex:idx_message_reads_message_user,priority:1" json:"message_id"`
	UserID    uint       `gorm:"not null;uniqueIndex:idx_message_reads_message_user,priority:2;index" json:"user_id"`
	ReadAt    *time.Time `json:"read_at"`
}

func (MessageRead) TableName() string {
	return "message_reads"
}

// ReplyRead marks a reply as seen by a user
type ReplyRead struct {
	ID      uint       `gorm:"primarykey" json:"id"`
	ReplyID uint       `gorm:"not null;uniqueIndex:idx_reply_reads_reply_user,priority:1" json:"reply_id"`
	UserID  uint       `gorm:"not null;uniqueIndex:idx_reply_reads_reply_user,priority:2;index" json:"user_id"`
	ReadAt  *time.Time `json:"read_at"`
}

func (ReplyRead) TableName() string {
	return "reply_reads"
}
