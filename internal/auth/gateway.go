package auth

import (
	"context"
	"errors"

	"github.com/franciscosanchezn/gin-account-api/internal/models"
	"github.com/franciscosanchezn/gin-account-api/internal/store"
)

// Gateway resolves a presented access token to the user it was issued for.
// Bearer headers and session cookies both end up here.
type Gateway[T models.Identity] struct {
	codec       *TokenCodec
	credentials *store.CredentialStore[T]
}

func NewGateway[T models.Identity](codec *TokenCodec, credentials *store.CredentialStore[T]) *Gateway[T] {
	return &Gateway[T]{codec: codec, credentials: credentials}
}

// Authenticate verifies accessToken and loads its user. An invalid token
// and a deleted user both yield ErrDeclined.
func (g *Gateway[T]) Authenticate(ctx context.Context, accessToken string) (T, *AccessClaims, error) {
	var zero T
	claims, err := g.codec.Parse(accessToken)
	if err != nil {
		return zero, nil, ErrDeclined
	}

	user, err := g.credentials.UserByID(ctx, claims.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return zero, nil, ErrDeclined
	}
	if err != nil {
		return zero, nil, err
	}
	return user, claims, nil
}
