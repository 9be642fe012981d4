package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/franciscosanchezn/gin-account-api/internal/auth"
	"github.com/franciscosanchezn/gin-account-api/internal/models"
	"github.com/franciscosanchezn/gin-account-api/internal/store"
)

var log = logrus.New()

func init() {
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.InfoLevel)
}

var (
	ErrUserAlreadyExists = errors.New("user_already_exists")
	ErrInvalidUsername   = errors.New("invalid_username")
	ErrWeakPassword      = errors.New("weak_password")
)

const minPasswordLength = 8

type UserService interface {
	Register(ctx context.Context, username, password string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, id int) (*models.User, error)
}

type userService struct {
	credentials *store.CredentialStore[*models.User]
	hasher      auth.Hasher
}

func NewUserService(credentials *store.CredentialStore[*models.User], hasher auth.Hasher) UserService {
	return &userService{credentials: credentials, hasher: hasher}
}

// Register creates an account under a fresh random user ID. The username
// check is best effort; the unique index on username settles races.
func (s *userService) Register(ctx context.Context, username, password string) (*models.User, error) {
	if username == "" {
		return nil, ErrInvalidUsername
	}
	if len(password) < minPasswordLength {
		return nil, ErrWeakPassword
	}

	_, err := s.credentials.UserByUsername(ctx, username)
	if err == nil {
		return nil, ErrUserAlreadyExists
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	userID, err := s.credentials.NewUserID(ctx)
	if err != nil {
		return nil, err
	}
	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{ID: userID, Username: username, HashedPassword: hashed}
	if err := s.credentials.SaveUser(ctx, user); err != nil {
		return nil, fmt.Errorf("save user: %w", err)
	}

	log.WithField("user_id", userID).Info("User registered")
	return user, nil
}

func (s *userService) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.credentials.UserByUsername(ctx, username)
}

func (s *userService) GetUserByID(ctx context.Context, id int) (*models.User, error) {
	return s.credentials.UserByID(ctx, id)
}
