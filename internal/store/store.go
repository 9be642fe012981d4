// Package store holds the CredentialStore: a configuration-gated accessor
// over the four record families the token lifecycle persists (users,
// refresh tokens, OAuth clients and authorization codes).
//
// Every family is optional. Using one that was not provided at startup
// fails with a *ConfigurationError instead of a retryable error.
package store

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/franciscosanchezn/gin-account-api/internal/models"
)

var log = logrus.New()

func init() {
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.InfoLevel)
}

// Collection names reported by ConfigurationError.
const (
	CollectionUsers   = "user"
	CollectionTokens  = "refresh token"
	CollectionClients = "api client"
	CollectionCodes   = "api code"
)

const (
	// user IDs are drawn from [minUserID, maxUserID)
	minUserID = 11111111
	maxUserID = 99999999

	maxAllocAttempts = 5
)

var (
	// ErrNotFound is returned by collections when no record matches.
	ErrNotFound = errors.New("record not found")

	// ErrNotConfigured matches every *ConfigurationError.
	ErrNotConfigured = errors.New("collection not configured")

	// ErrIDSpaceExhausted is returned when an allocator keeps colliding.
	ErrIDSpaceExhausted = errors.New("could not allocate an unused id")
)

// ConfigurationError reports use of a collection that was never provided.
// It is a startup-contract violation and must not be retried.
type ConfigurationError struct {
	Collection string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s collection is not provided", e.Collection)
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrNotConfigured
}

// UserCollection persists accounts of the application's own user type.
type UserCollection[T models.Identity] interface {
	Save(ctx context.Context, user T) error
	FindByID(ctx context.Context, userID int) (T, error)
	FindByUsername(ctx context.Context, username string) (T, error)
}

// TokenCollection persists hashed refresh tokens.
type TokenCollection interface {
	Save(ctx context.Context, token *models.RefreshToken) error
	FindByUserID(ctx context.Context, userID int) ([]models.RefreshToken, error)
	FindByClientID(ctx context.Context, clientID string) ([]models.RefreshToken, error)
	DeleteByHash(ctx context.Context, hashedToken string) error
}

// ClientCollection persists registered OAuth clients.
type ClientCollection interface {
	Save(ctx context.Context, client *models.OAuthClient) error
	FindByID(ctx context.Context, clientID string) (*models.OAuthClient, error)
	FindByOwner(ctx context.Context, userID int) ([]models.OAuthClient, error)
}

// CodeCollection persists hashed authorization codes.
type CodeCollection interface {
	Save(ctx context.Context, code *models.OAuthCode) error
	FindByClientID(ctx context.Context, clientID string) ([]models.OAuthCode, error)
	DeleteByHash(ctx context.Context, hashedCode string) error
}

// Collections lists the backing collections. Leave a field nil to disable
// that family.
type Collections[T models.Identity] struct {
	Users   UserCollection[T]
	Tokens  TokenCollection
	Clients ClientCollection
	Codes   CodeCollection
}

// CredentialStore is built once during startup and is immutable afterwards,
// so it is safe to share between concurrent requests.
type CredentialStore[T models.Identity] struct {
	users   UserCollection[T]
	tokens  TokenCollection
	clients ClientCollection
	codes   CodeCollection

	randomUserID   func() int
	randomClientID func() string
}

// New creates a CredentialStore over the given collections.
func New[T models.Identity](c Collections[T]) *CredentialStore[T] {
	return &CredentialStore[T]{
		users:          c.Users,
		tokens:         c.Tokens,
		clients:        c.Clients,
		codes:          c.Codes,
		randomUserID:   randomUserID,
		randomClientID: randomClientID,
	}
}

func randomUserID() int {
	return minUserID + rand.Intn(maxUserID-minUserID)
}

func randomClientID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Users

func (s *CredentialStore[T]) SaveUser(ctx context.Context, user T) error {
	if s.users == nil {
		return &ConfigurationError{Collection: CollectionUsers}
	}
	return s.users.Save(ctx, user)
}

func (s *CredentialStore[T]) UserByID(ctx context.Context, userID int) (T, error) {
	if s.users == nil {
		var zero T
		return zero, &ConfigurationError{Collection: CollectionUsers}
	}
	return s.users.FindByID(ctx, userID)
}

func (s *CredentialStore[T]) UserByUsername(ctx context.Context, username string) (T, error) {
	if s.users == nil {
		var zero T
		return zero, &ConfigurationError{Collection: CollectionUsers}
	}
	return s.users.FindByUsername(ctx, username)
}

// NewUserID returns a random 8-digit user ID that is not taken at the time
// of the check. Two concurrent callers can still receive the same ID; the
// user collection's primary key is the authoritative guard.
func (s *CredentialStore[T]) NewUserID(ctx context.Context) (int, error) {
	for attempt := 1; attempt <= maxAllocAttempts; attempt++ {
		userID := s.randomUserID()
		_, err := s.UserByID(ctx, userID)
		if errors.Is(err, ErrNotFound) {
			return userID, nil
		}
		if err != nil {
			return 0, err
		}
		log.WithField("attempt", attempt).Debug("User ID already taken, drawing another")
	}
	return 0, fmt.Errorf("user id: %w", ErrIDSpaceExhausted)
}

// Refresh tokens

func (s *CredentialStore[T]) SaveToken(ctx context.Context, token *models.RefreshToken) error {
	if s.tokens == nil {
		return &ConfigurationError{Collection: CollectionTokens}
	}
	return s.tokens.Save(ctx, token)
}

func (s *CredentialStore[T]) UserTokens(ctx context.Context, userID int) ([]models.RefreshToken, error) {
	if s.tokens == nil {
		return nil, &ConfigurationError{Collection: CollectionTokens}
	}
	return s.tokens.FindByUserID(ctx, userID)
}

func (s *CredentialStore[T]) ClientTokens(ctx context.Context, clientID string) ([]models.RefreshToken, error) {
	if s.tokens == nil {
		return nil, &ConfigurationError{Collection: CollectionTokens}
	}
	return s.tokens.FindByClientID(ctx, clientID)
}

func (s *CredentialStore[T]) DeleteToken(ctx context.Context, hashedToken string) error {
	if s.tokens == nil {
		return &ConfigurationError{Collection: CollectionTokens}
	}
	return s.tokens.DeleteByHash(ctx, hashedToken)
}

// OAuth clients

func (s *CredentialStore[T]) SaveClient(ctx context.Context, client *models.OAuthClient) error {
	if s.clients == nil {
		return &ConfigurationError{Collection: CollectionClients}
	}
	return s.clients.Save(ctx, client)
}

func (s *CredentialStore[T]) ClientByID(ctx context.Context, clientID string) (*models.OAuthClient, error) {
	if s.clients == nil {
		return nil, &ConfigurationError{Collection: CollectionClients}
	}
	return s.clients.FindByID(ctx, clientID)
}

func (s *CredentialStore[T]) ClientsByOwner(ctx context.Context, userID int) ([]models.OAuthClient, error) {
	if s.clients == nil {
		return nil, &ConfigurationError{Collection: CollectionClients}
	}
	return s.clients.FindByOwner(ctx, userID)
}

// NewClientID returns an unused dash-less UUID. Same best-effort caveat as
// NewUserID.
func (s *CredentialStore[T]) NewClientID(ctx context.Context) (string, error) {
	for attempt := 1; attempt <= maxAllocAttempts; attempt++ {
		clientID := s.randomClientID()
		_, err := s.ClientByID(ctx, clientID)
		if errors.Is(err, ErrNotFound) {
			return clientID, nil
		}
		if err != nil {
			return "", err
		}
		log.WithField("attempt", attempt).Debug("Client ID already taken, drawing another")
	}
	return "", fmt.Errorf("client id: %w", ErrIDSpaceExhausted)
}

// Authorization codes

func (s *CredentialStore[T]) SaveCode(ctx context.Context, code *models.OAuthCode) error {
	if s.codes == nil {
		return &ConfigurationError{Collection: CollectionCodes}
	}
	return s.codes.Save(ctx, code)
}

func (s *CredentialStore[T]) ClientCodes(ctx context.Context, clientID string) ([]models.OAuthCode, error) {
	if s.codes == nil {
		return nil, &ConfigurationError{Collection: CollectionCodes}
	}
	return s.codes.FindByClientID(ctx, clientID)
}

func (s *CredentialStore[T]) DeleteCode(ctx context.Context, hashedCode string) error {
	if s.codes == nil {
		return &ConfigurationError{Collection: CollectionCodes}
	}
	return s.codes.DeleteByHash(ctx, hashedCode)
}
