package models

// Identity is the minimal account shape the token lifecycle works with.
// Applications with a richer user type implement it on their own model.
type Identity interface {
	GetUserID() int
	GetUsername() string
	GetHashedPassword() string
}
