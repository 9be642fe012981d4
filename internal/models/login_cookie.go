package models

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// LoginCookie is the session value kept in the browser after login.
type LoginCookie struct {
	UserID       int    `json:"user_id"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Encode returns the cookie-safe representation of the session.
func (c LoginCookie) Encode() (string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode login cookie: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// DecodeLoginCookie parses a value produced by Encode.
func DecodeLoginCookie(value string) (LoginCookie, error) {
	var cookie LoginCookie
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return cookie, fmt.Errorf("decode login cookie: %w", err)
	}
	if err := json.Unmarshal(raw, &cookie); err != nil {
		return cookie, fmt.Errorf("decode login cookie: %w", err)
	}
	return cookie, nil
}
