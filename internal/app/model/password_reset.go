package model

import (
	"time"
)

// PasswordReset is a single-use token mailed to an account holder
type PasswordReset struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Email     string    `gorm:"size:254;not null;index" json:"email"`
	Token     string    `gorm:"size:255;not null;uniqueIndex" json:"-"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
	Used      bool      `gorm:"default:false" json:"used"`
	CreatedAt time.Time `json:"created_at"`
}

func (PasswordReset) TableName() string {
	return "password_resets"
}

// Usable reports whether the token can still change a password at now
func (r *PasswordReset) Usable(now time.Time) bool {
	return !r.Used && now.Before(r.ExpiresAt)
}
