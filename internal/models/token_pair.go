package models

// TokenPair is returned once per issuance and never persisted.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// APIClient carries the plaintext client secret back to the registering
// user. The secret cannot be retrieved again afterwards.
type APIClient struct {
	ClientID     string   `json:"client_id"`
	UserID       int      `json:"user_id"`
	ClientSecret string   `json:"client_secret"`
	RedirectURIs []string `json:"redirect_uris"`
}

// APICode is the plaintext authorization code handed to the redirect URI.
type APICode struct {
	Code     string   `json:"code"`
	ClientID string   `json:"client_id"`
	UserID   int      `json:"user_id"`
	State    *string  `json:"state,omitempty"`
	Scope    []string `json:"scope"`
}
