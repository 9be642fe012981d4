package models

// TokenRequest is the body of the OAuth2 token endpoint. It binds from
// either a form or JSON.
type TokenRequest struct {
	GrantType    string  `form:"grant_type" json:"grant_type" binding:"required"`
	ClientID     string  `form:"client_id" json:"client_id" binding:"required"`
	Code         string  `form:"code" json:"code"`
	RefreshToken string  `form:"refresh_token" json:"refresh_token"`
	ClientSecret string  `form:"client_secret" json:"client_secret"`
	State        *string `form:"state" json:"state"`
}
