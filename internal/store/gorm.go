package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/franciscosanchezn/gin-account-api/internal/models"
)

// notFound maps gorm's miss onto ErrNotFound and wraps everything else.
func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", what, err)
}

// findOne loads a single row. Misses are an expected outcome for the ID
// allocators, so they are reported as gorm.ErrRecordNotFound without going
// through First, which logs every miss.
func findOne(query *gorm.DB, dest interface{}) error {
	result := query.Limit(1).Find(dest)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// AutoMigrate creates or updates the tables backing the gorm collections.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.User{}, &models.RefreshToken{}, &models.OAuthClient{}, &models.OAuthCode{})
}

// GormUserCollection stores models.User rows.
type GormUserCollection struct {
	db *gorm.DB
}

var _ UserCollection[*models.User] = (*GormUserCollection)(nil)

func NewGormUserCollection(db *gorm.DB) *GormUserCollection {
	return &GormUserCollection{db: db}
}

func (c *GormUserCollection) Save(ctx context.Context, user *models.User) error {
	return c.db.WithContext(ctx).Create(user).Error
}

func (c *GormUserCollection) FindByID(ctx context.Context, userID int) (*models.User, error) {
	var user models.User
	if err := findOne(c.db.WithContext(ctx).Where("id = ?", userID), &user); err != nil {
		return nil, notFound(err, "find user by id")
	}
	return &user, nil
}

func (c *GormUserCollection) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := findOne(c.db.WithContext(ctx).Where("username = ?", username), &user); err != nil {
		return nil, notFound(err, "find user by username")
	}
	return &user, nil
}

// GormTokenCollection stores hashed refresh tokens.
type GormTokenCollection struct {
	db *gorm.DB
}

var _ TokenCollection = (*GormTokenCollection)(nil)

func NewGormTokenCollection(db *gorm.DB) *GormTokenCollection {
	return &GormTokenCollection{db: db}
}

func (c *GormTokenCollection) Save(ctx context.Context, token *models.RefreshToken) error {
	return c.db.WithContext(ctx).Create(token).Error
}

func (c *GormTokenCollection) FindByUserID(ctx context.Context, userID int) ([]models.RefreshToken, error) {
	var tokens []models.RefreshToken
	if err := c.db.WithContext(ctx).Where("user_id = ?", userID).Find(&tokens).Error; err != nil {
		return nil, fmt.Errorf("find user tokens: %w", err)
	}
	return tokens, nil
}

func (c *GormTokenCollection) FindByClientID(ctx context.Context, clientID string) ([]models.RefreshToken, error) {
	var tokens []models.RefreshToken
	if err := c.db.WithContext(ctx).Where("client_id = ?", clientID).Find(&tokens).Error; err != nil {
		return nil, fmt.Errorf("find client tokens: %w", err)
	}
	return tokens, nil
}

// DeleteByHash returns ErrNotFound when no row was removed, so of two
// concurrent deletes of the same token exactly one succeeds.
func (c *GormTokenCollection) DeleteByHash(ctx context.Context, hashedToken string) error {
	result := c.db.WithContext(ctx).Where("hashed_refresh_token = ?", hashedToken).Delete(&models.RefreshToken{})
	if result.Error != nil {
		return fmt.Errorf("delete token: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GormClientCollection stores registered OAuth clients.
type GormClientCollection struct {
	db *gorm.DB
}

var _ ClientCollection = (*GormClientCollection)(nil)

func NewGormClientCollection(db *gorm.DB) *GormClientCollection {
	return &GormClientCollection{db: db}
}

func (c *GormClientCollection) Save(ctx context.Context, client *models.OAuthClient) error {
	return c.db.WithContext(ctx).Create(client).Error
}

func (c *GormClientCollection) FindByID(ctx context.Context, clientID string) (*models.OAuthClient, error) {
	var client models.OAuthClient
	if err := findOne(c.db.WithContext(ctx).Where("id = ?", clientID), &client); err != nil {
		return nil, notFound(err, "find client")
	}
	return &client, nil
}

func (c *GormClientCollection) FindByOwner(ctx context.Context, userID int) ([]models.OAuthClient, error) {
	var clients []models.OAuthClient
	if err := c.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at").Find(&clients).Error; err != nil {
		return nil, fmt.Errorf("find clients by owner: %w", err)
	}
	return clients, nil
}

// GormCodeCollection stores hashed authorization codes.
type GormCodeCollection struct {
	db *gorm.DB
}

var _ CodeCollection = (*GormCodeCollection)(nil)

func NewGormCodeCollection(db *gorm.DB) *GormCodeCollection {
	return &GormCodeCollection{db: db}
}

func (c *GormCodeCollection) Save(ctx context.Context, code *models.OAuthCode) error {
	return c.db.WithContext(ctx).Create(code).Error
}

func (c *GormCodeCollection) FindByClientID(ctx context.Context, clientID string) ([]models.OAuthCode, error) {
	var codes []models.OAuthCode
	if err := c.db.WithContext(ctx).Where("client_id = ?", clientID).Find(&codes).Error; err != nil {
		return nil, fmt.Errorf("find client codes: %w", err)
	}
	return codes, nil
}

// DeleteByHash returns ErrNotFound when the code was already gone.
func (c *GormCodeCollection) DeleteByHash(ctx context.Context, hashedCode string) error {
	result := c.db.WithContext(ctx).Where("hashed_code = ?", hashedCode).Delete(&models.OAuthCode{})
	if result.Error != nil {
		return fmt.Errorf("delete code: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// NewGormCollections wires all four families to the same database.
func NewGormCollections(db *gorm.DB) Collections[*models.User] {
	return Collections[*models.User]{
		Users:   NewGormUserCollection(db),
		Tokens:  NewGormTokenCollection(db),
		Clients: NewGormClientCollection(db),
		Codes:   NewGormCodeCollection(db),
	}
}
