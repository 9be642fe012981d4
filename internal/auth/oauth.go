package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/franciscosanchezn/gin-account-api/internal/models"
	"github.com/franciscosanchezn/gin-account-api/internal/store"
)

// CreateOAuthClient registers a client owned by user. The returned secret
// is the only copy of the plaintext; only its hash is stored.
func (m *Manager[T]) CreateOAuthClient(ctx context.Context, user T, redirectURIs ...string) (*models.APIClient, error) {
	clientID, err := m.credentials.NewClientID(ctx)
	if err != nil {
		return nil, fmt.Errorf("allocate client id: %w", err)
	}

	secret, err := m.secrets.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate client secret: %w", err)
	}
	hashed, err := m.hasher.Hash(secret)
	if err != nil {
		return nil, fmt.Errorf("hash client secret: %w", err)
	}

	uris := append([]string{}, redirectURIs...)
	client := &models.OAuthClient{
		ID:           clientID,
		UserID:       user.GetUserID(),
		HashedSecret: hashed,
		RedirectURIs: uris,
	}
	if err := m.credentials.SaveClient(ctx, client); err != nil {
		return nil, fmt.Errorf("save client: %w", err)
	}

	log.WithFields(logrus.Fields{
		"client_id": clientID,
		"user_id":   client.UserID,
	}).Info("OAuth client registered")

	return &models.APIClient{
		ClientID:     clientID,
		UserID:       client.UserID,
		ClientSecret: secret,
		RedirectURIs: uris,
	}, nil
}

// NewClientCode issues an authorization code binding user's consent to
// clientID with the given state and scope.
func (m *Manager[T]) NewClientCode(ctx context.Context, user T, clientID string, state *string, scope []string) (*models.APICode, error) {
	code, err := m.secrets.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate code: %w", err)
	}
	hashed, err := m.hasher.Hash(code)
	if err != nil {
		return nil, fmt.Errorf("hash code: %w", err)
	}
	if scope == nil {
		scope = []string{}
	}

	record := &models.OAuthCode{
		HashedCode: hashed,
		ClientID:   clientID,
		UserID:     user.GetUserID(),
		State:      state,
		Scope:      scope,
	}
	if err := m.credentials.SaveCode(ctx, record); err != nil {
		return nil, fmt.Errorf("save code: %w", err)
	}

	return &models.APICode{
		Code:     code,
		ClientID: clientID,
		UserID:   record.UserID,
		State:    state,
		Scope:    scope,
	}, nil
}

// VerifyCode checks that code belongs to clientID, that clientSecret is
// the client's secret and that state matches exactly, absent included.
// The code is left in place; call ConsumeCode right after a successful
// exchange.
func (m *Manager[T]) VerifyCode(ctx context.Context, clientID, clientSecret, code string, state *string) (*models.OAuthCode, error) {
	codes, err := m.credentials.ClientCodes(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("load client codes: %w", err)
	}

	var stored *models.OAuthCode
	for i := range codes {
		if m.hasher.Verify(code, codes[i].HashedCode) {
			stored = &codes[i]
			break
		}
	}
	if stored == nil {
		return nil, ErrDeclined
	}

	client, err := m.credentials.ClientByID(ctx, clientID)
	if err != nil {
		return nil, declineMissing(err)
	}
	if !m.hasher.Verify(clientSecret, client.HashedSecret) {
		log.WithField("client_id", clientID).Debug("Client secret mismatch during code exchange")
		return nil, ErrDeclined
	}

	if !sameState(stored.State, state) {
		log.WithField("client_id", clientID).Debug("State mismatch during code exchange")
		return nil, ErrDeclined
	}

	return stored, nil
}

func sameState(stored, presented *string) bool {
	if stored == nil || presented == nil {
		return stored == nil && presented == nil
	}
	return *stored == *presented
}

// ConsumeCode deletes a verified code so it cannot be exchanged again. If
// the code is already gone another exchange won the race and ErrDeclined
// is returned.
func (m *Manager[T]) ConsumeCode(ctx context.Context, code *models.OAuthCode) error {
	if err := m.credentials.DeleteCode(ctx, code.HashedCode); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.WithField("client_id", code.ClientID).Warn("Authorization code consumed concurrently")
			return ErrDeclined
		}
		return fmt.Errorf("consume code: %w", err)
	}
	return nil
}

// ExchangeCode runs the authorization_code grant: verify, consume, then
// issue a pair bound to the client and the consented scope.
func (m *Manager[T]) ExchangeCode(ctx context.Context, clientID, clientSecret, code string, state *string) (*models.TokenPair, error) {
	stored, err := m.VerifyCode(ctx, clientID, clientSecret, code, state)
	if err != nil {
		return nil, err
	}
	if err := m.ConsumeCode(ctx, stored); err != nil {
		return nil, err
	}

	user, err := m.credentials.UserByID(ctx, stored.UserID)
	if err != nil {
		return nil, declineMissing(err)
	}

	return m.CreateTokenPair(ctx, user, PairOptions{
		ClientID: stored.ClientID,
		Scope:    stored.Scope,
	})
}
