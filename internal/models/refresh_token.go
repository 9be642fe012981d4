package models

import (
	"time"
)

// RefreshToken stores the one-way hash of an issued refresh token.
// The plaintext only ever exists in the TokenPair returned at issuance.
type RefreshToken struct {
	HashedRefreshToken string    `gorm:"primaryKey"`
	UserID             int       `gorm:"index;not null"`
	ExpiresAt          time.Time `gorm:"not null"`
	ClientID           *string   `gorm:"index"` // nil for first-party sessions
	Scope              []string  `gorm:"type:text;serializer:json"`
	CreatedAt          time.Time
}

func (RefreshToken) TableName() string {
	return "refresh_tokens"
}

// Expired reports whether the token is no longer valid at now.
func (t *RefreshToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}
