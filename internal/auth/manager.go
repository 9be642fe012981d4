package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/franciscosanchezn/gin-account-api/internal/models"
	"github.com/franciscosanchezn/gin-account-api/internal/store"
)

const (
	DefaultAccessTokenTTL  = time.Hour
	DefaultRefreshTokenTTL = 30 * 24 * time.Hour

	maxIssueAttempts = 5
)

// Lifetimes configures default token expiry.
type Lifetimes struct {
	AccessToken  time.Duration
	RefreshToken time.Duration
}

// Manager creates, verifies, rotates and revokes credentials. It is safe
// for concurrent use; no lock is held across calls, so uniqueness checks
// are best effort and the store's primary keys are the final guard.
type Manager[T models.Identity] struct {
	credentials *store.CredentialStore[T]
	codec       *TokenCodec
	hasher      Hasher
	secrets     SecretGenerator
	accessTTL   time.Duration
	refreshTTL  time.Duration
	now         func() time.Time
}

// NewManager wires a Manager. Zero lifetimes fall back to one hour for
// access tokens and thirty days for refresh tokens.
func NewManager[T models.Identity](credentials *store.CredentialStore[T], codec *TokenCodec, hasher Hasher, lifetimes Lifetimes) *Manager[T] {
	if lifetimes.AccessToken <= 0 {
		lifetimes.AccessToken = DefaultAccessTokenTTL
	}
	if lifetimes.RefreshToken <= 0 {
		lifetimes.RefreshToken = DefaultRefreshTokenTTL
	}
	return &Manager[T]{
		credentials: credentials,
		codec:       codec,
		hasher:      hasher,
		secrets:     LetterSecrets{Length: SecretLength},
		accessTTL:   lifetimes.AccessToken,
		refreshTTL:  lifetimes.RefreshToken,
		now:         time.Now,
	}
}

// AccessTokenTTL is the lifetime applied when no access expiry is given.
func (m *Manager[T]) AccessTokenTTL() time.Duration {
	return m.accessTTL
}

// PairOptions tunes a token pair. Zero values mean "absent" or "default".
type PairOptions struct {
	ClientID         string
	Scope            []string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// CreateTokenPair mints an access token and a refresh token for user and
// stores the refresh token's hash.
//
// A refresh token that verifies against a live token of the same client or
// user is thrown away together with its access token and the whole pair is
// generated again.
func (m *Manager[T]) CreateTokenPair(ctx context.Context, user T, opts PairOptions) (*models.TokenPair, error) {
	now := m.now()
	accessExpiresAt := opts.AccessExpiresAt
	if accessExpiresAt.IsZero() {
		accessExpiresAt = now.Add(m.accessTTL)
	}
	refreshExpiresAt := opts.RefreshExpiresAt
	if refreshExpiresAt.IsZero() {
		refreshExpiresAt = now.Add(m.refreshTTL)
	}
	userID := user.GetUserID()

	for attempt := 1; attempt <= maxIssueAttempts; attempt++ {
		accessToken, err := m.codec.IssueForClient(userID, opts.ClientID, accessExpiresAt, opts.Scope)
		if err != nil {
			return nil, fmt.Errorf("sign access token: %w", err)
		}

		refreshToken, err := m.secrets.Generate()
		if err != nil {
			return nil, fmt.Errorf("generate refresh token: %w", err)
		}

		collides, err := m.collides(ctx, userID, opts.ClientID, refreshToken)
		if err != nil {
			return nil, err
		}
		if collides {
			log.WithFields(logrus.Fields{
				"user_id": userID,
				"attempt": attempt,
			}).Warn("Refresh token collided with a live token, regenerating pair")
			continue
		}

		hashed, err := m.hasher.Hash(refreshToken)
		if err != nil {
			return nil, fmt.Errorf("hash refresh token: %w", err)
		}

		record := &models.RefreshToken{
			HashedRefreshToken: hashed,
			UserID:             userID,
			ExpiresAt:          refreshExpiresAt,
			Scope:              opts.Scope,
		}
		if opts.ClientID != "" {
			clientID := opts.ClientID
			record.ClientID = &clientID
		}
		if err := m.credentials.SaveToken(ctx, record); err != nil {
			return nil, fmt.Errorf("save refresh token: %w", err)
		}

		return &models.TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
	}

	return nil, ErrSecretCollision
}

func (m *Manager[T]) collides(ctx context.Context, userID int, clientID, secret string) (bool, error) {
	if clientID != "" {
		tokens, err := m.credentials.ClientTokens(ctx, clientID)
		if err != nil {
			return false, fmt.Errorf("load client tokens: %w", err)
		}
		if _, ok := m.matchToken(tokens, secret); ok {
			return true, nil
		}
	}

	tokens, err := m.credentials.UserTokens(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("load user tokens: %w", err)
	}
	_, ok := m.matchToken(tokens, secret)
	return ok, nil
}

// matchToken returns the first record whose hash verifies against plaintext.
func (m *Manager[T]) matchToken(tokens []models.RefreshToken, plaintext string) (*models.RefreshToken, bool) {
	for i := range tokens {
		if m.hasher.Verify(plaintext, tokens[i].HashedRefreshToken) {
			return &tokens[i], true
		}
	}
	return nil, false
}

// RefreshByUser rotates a first-party refresh token. A zero
// accessExpiresAt uses the default access token lifetime.
func (m *Manager[T]) RefreshByUser(ctx context.Context, userID int, refreshToken string, accessExpiresAt time.Time) (*models.TokenPair, error) {
	user, err := m.credentials.UserByID(ctx, userID)
	if err != nil {
		return nil, declineMissing(err)
	}

	tokens, err := m.credentials.UserTokens(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user tokens: %w", err)
	}
	token, ok := m.matchToken(tokens, refreshToken)
	if !ok {
		return nil, ErrDeclined
	}

	return m.rotate(ctx, user, token, accessExpiresAt)
}

// RefreshByClient rotates a refresh token issued to an OAuth client.
func (m *Manager[T]) RefreshByClient(ctx context.Context, clientID, refreshToken string, accessExpiresAt time.Time) (*models.TokenPair, error) {
	tokens, err := m.credentials.ClientTokens(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("load client tokens: %w", err)
	}
	token, ok := m.matchToken(tokens, refreshToken)
	if !ok {
		return nil, ErrDeclined
	}

	user, err := m.credentials.UserByID(ctx, token.UserID)
	if err != nil {
		return nil, declineMissing(err)
	}

	return m.rotate(ctx, user, token, accessExpiresAt)
}

// rotate consumes token before looking at its expiry: an expired token is
// still deleted, it just does not earn a replacement. Only the caller whose
// delete removed the record may continue; a concurrent loser is declined.
func (m *Manager[T]) rotate(ctx context.Context, user T, token *models.RefreshToken, accessExpiresAt time.Time) (*models.TokenPair, error) {
	if err := m.credentials.DeleteToken(ctx, token.HashedRefreshToken); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.WithField("user_id", token.UserID).Warn("Refresh token consumed concurrently")
			return nil, ErrDeclined
		}
		return nil, fmt.Errorf("consume refresh token: %w", err)
	}

	if token.Expired(m.now()) {
		log.WithField("user_id", token.UserID).Debug("Expired refresh token consumed without replacement")
		return nil, ErrDeclined
	}

	opts := PairOptions{
		Scope:           token.Scope,
		AccessExpiresAt: accessExpiresAt,
	}
	if token.ClientID != nil {
		opts.ClientID = *token.ClientID
	}
	return m.CreateTokenPair(ctx, user, opts)
}

// Revoke deletes the live refresh token of userID matching refreshToken.
func (m *Manager[T]) Revoke(ctx context.Context, userID int, refreshToken string) error {
	tokens, err := m.credentials.UserTokens(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user tokens: %w", err)
	}
	token, ok := m.matchToken(tokens, refreshToken)
	if !ok {
		return ErrDeclined
	}
	if err := m.credentials.DeleteToken(ctx, token.HashedRefreshToken); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrDeclined
		}
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// VerifyLogin returns the user owning username if password matches.
// Unknown users and wrong passwords both yield ErrDeclined.
func (m *Manager[T]) VerifyLogin(ctx context.Context, username, password string) (T, error) {
	var zero T
	user, err := m.credentials.UserByUsername(ctx, username)
	if err != nil {
		return zero, declineMissing(err)
	}
	if !m.hasher.Verify(password, user.GetHashedPassword()) {
		return zero, ErrDeclined
	}
	return user, nil
}

// declineMissing folds store misses into ErrDeclined and lets
// configuration and storage errors through.
func declineMissing(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrDeclined
	}
	return err
}
