package models

import (
	"time"
)

// OAuthCode is a pending authorization code. It is single-use: whoever
// exchanges it deletes it right after verification succeeds.
type OAuthCode struct {
	HashedCode string    `gorm:"primaryKey" json:"hashed_code"`
	ClientID   string    `gorm:"index;not null" json:"client_id"`
	UserID     int       `gorm:"not null" json:"user_id"`
	State      *string   `json:"state,omitempty"`
	Scope      []string  `gorm:"type:text;serializer:json" json:"scope"`
	CreatedAt  time.Time `json:"created_at"`
}

func (OAuthCode) TableName() string {
	return "oauth_codes"
}
