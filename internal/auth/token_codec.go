package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessClaims is the claim set carried by an access token.
type AccessClaims struct {
	UserID   int    `json:"user-id"`
	ClientID string `json:"client_id,omitempty"` // set when issued to an OAuth client
	Scope    string `json:"scope,omitempty"`     // space separated
	jwt.RegisteredClaims
}

// Scopes splits the scope claim back into its parts.
func (c *AccessClaims) Scopes() []string {
	return strings.Fields(c.Scope)
}

// TokenCodec signs and verifies access tokens with a symmetric key.
// It holds no state beyond its configuration.
type TokenCodec struct {
	secret   []byte
	issuer   string
	audience string
	now      func() time.Time
}

// NewTokenCodec creates a codec signing with HS256.
func NewTokenCodec(secret, issuer, audience string) *TokenCodec {
	return &TokenCodec{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		now:      time.Now,
	}
}

// ClientBound reports whether the token was issued to an OAuth client
// rather than to the user's own session.
func (c *AccessClaims) ClientBound() bool {
	return c.ClientID != ""
}

// Issue signs a first-party access token for userID that expires at
// expiresAt. A nil scope leaves the scope claim out.
func (c *TokenCodec) Issue(userID int, expiresAt time.Time, scope []string) (string, error) {
	return c.IssueForClient(userID, "", expiresAt, scope)
}

// IssueForClient signs an access token carrying clientID in the client_id
// claim. An empty clientID produces a first-party token.
func (c *TokenCodec) IssueForClient(userID int, clientID string, expiresAt time.Time, scope []string) (string, error) {
	claims := AccessClaims{
		UserID:   userID,
		ClientID: clientID,
		Scope:    strings.Join(scope, " "),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Audience:  jwt.ClaimStrings{c.audience},
			IssuedAt:  jwt.NewNumericDate(c.now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// Parse verifies signature, issuer, audience and expiry and returns the
// claims. Every failure is reported as ErrInvalidToken.
func (c *TokenCodec) Parse(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithAudience(c.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil || !token.Valid {
		log.WithError(err).Debug("Access token rejected")
		return nil, ErrInvalidToken
	}
	if claims.UserID <= 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Verify returns the user ID embedded in a valid access token.
func (c *TokenCodec) Verify(tokenString string) (int, error) {
	claims, err := c.Parse(tokenString)
	if err != nil {
		return 0, err
	}
	return claims.UserID, nil
}
