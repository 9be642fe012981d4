package models

import (
	"time"
)

// User is the account record persisted by the gorm user collection.
type User struct {
	ID             int       `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	Username       string    `gorm:"uniqueIndex;not null" json:"username"`
	HashedPassword string    `gorm:"not null" json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) GetUserID() int {
	return u.ID
}

func (u *User) GetUsername() string {
	return u.Username
}

func (u *User) GetHashedPassword() string {
	return u.HashedPassword
}
