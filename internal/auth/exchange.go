package auth

import (
	"context"
	"time"

	"github.com/go-oauth2/oauth2/v4"
	oautherrors "github.com/go-oauth2/oauth2/v4/errors"

	"github.com/franciscosanchezn/gin-account-api/internal/models"
)

// Exchange serves the token endpoint's grant types. Missing parameters
// yield oautherrors.ErrInvalidRequest, unknown grants
// oautherrors.ErrUnsupportedGrantType; credential failures ErrDeclined.
func (m *Manager[T]) Exchange(ctx context.Context, req models.TokenRequest) (*models.TokenPair, error) {
	switch oauth2.GrantType(req.GrantType) {
	case oauth2.AuthorizationCode:
		if req.Code == "" || req.ClientSecret == "" {
			return nil, oautherrors.ErrInvalidRequest
		}
		return m.ExchangeCode(ctx, req.ClientID, req.ClientSecret, req.Code, req.State)

	case oauth2.Refreshing:
		if req.RefreshToken == "" {
			return nil, oautherrors.ErrInvalidRequest
		}
		return m.RefreshByClient(ctx, req.ClientID, req.RefreshToken, time.Time{})

	default:
		return nil, oautherrors.ErrUnsupportedGrantType
	}
}
