package services

import (
	"context"
	"errors"

	"github.com/franciscosanchezn/gin-account-api/internal/auth"
	"github.com/franciscosanchezn/gin-account-api/internal/models"
	"github.com/franciscosanchezn/gin-account-api/internal/store"
)

var ErrClientNotFound = errors.New("client_not_found")

type ClientService interface {
	CreateClient(ctx context.Context, owner *models.User, redirectURIs []string) (*models.APIClient, error)
	GetClientsByUserID(ctx context.Context, userID int) ([]models.OAuthClient, error)
	GetClientByID(ctx context.Context, id string) (*models.OAuthClient, error)
}

type clientService struct {
	credentials *store.CredentialStore[*models.User]
	manager     *auth.Manager[*models.User]
}

func NewClientService(credentials *store.CredentialStore[*models.User], manager *auth.Manager[*models.User]) ClientService {
	return &clientService{credentials: credentials, manager: manager}
}

func (s *clientService) CreateClient(ctx context.Context, owner *models.User, redirectURIs []string) (*models.APIClient, error) {
	return s.manager.CreateOAuthClient(ctx, owner, redirectURIs...)
}

func (s *clientService) GetClientsByUserID(ctx context.Context, userID int) ([]models.OAuthClient, error) {
	clients, err := s.credentials.ClientsByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}
	if clients == nil {
		clients = []models.OAuthClient{}
	}
	return clients, nil
}

func (s *clientService) GetClientByID(ctx context.Context, id string) (*models.OAuthClient, error) {
	client, err := s.credentials.ClientByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrClientNotFound
	}
	return client, err
}
