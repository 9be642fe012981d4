package models

import (
	"time"
)

type OAuthClient struct {
	ID           string    `gorm:"primaryKey" json:"client_id"`
	UserID       int       `gorm:"index;not null" json:"user_id"` // owner
	HashedSecret string    `gorm:"not null" json:"-"`
	RedirectURIs []string  `gorm:"type:text;serializer:json" json:"redirect_uris"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (OAuthClient) TableName() string {
	return "oauth_clients"
}

// AllowsRedirect reports whether uri was registered for the client.
func (c *OAuthClient) AllowsRedirect(uri string) bool {
	for _, registered := range c.RedirectURIs {
		if registered == uri {
			return true
		}
	}
	return false
}
