package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/franciscosanchezn/gin-account-api/internal/models"
	"github.com/franciscosanchezn/gin-account-api/internal/store"
)

const (
	testSecret   = "test-jwt-secret-key-32-characters"
	testIssuer   = "http://localhost:8080"
	testAudience = "http://localhost:8080/hello"
)

type testEnv struct {
	manager     *Manager[*models.User]
	credentials *store.CredentialStore[*models.User]
	codec       *TokenCodec
	hasher      *BcryptHasher
	alice       *models.User
}

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, store.AutoMigrate(db))
	return db
}

// setupTestEnv builds a manager over sqlite with alice (42 / pw1) seeded.
func setupTestEnv(t *testing.T) *testEnv {
	db := setupTestDB(t)
	credentials := store.New(store.NewGormCollections(db))
	hasher := NewBcryptHasher(bcrypt.MinCost)
	codec := NewTokenCodec(testSecret, testIssuer, testAudience)

	hashed, err := hasher.Hash("pw1")
	require.NoError(t, err)
	alice := &models.User{ID: 42, Username: "alice", HashedPassword: hashed}
	require.NoError(t, credentials.SaveUser(context.Background(), alice))

	return &testEnv{
		manager:     NewManager(credentials, codec, hasher, Lifetimes{}),
		credentials: credentials,
		codec:       codec,
		hasher:      hasher,
		alice:       alice,
	}
}

// sequenceSecrets hands out a fixed list of secrets, then repeats the last.
type sequenceSecrets struct {
	values []string
	calls  int
}

func (s *sequenceSecrets) Generate() (string, error) {
	s.calls++
	if len(s.values) == 1 {
		return s.values[0], nil
	}
	next := s.values[0]
	s.values = s.values[1:]
	return next, nil
}

func strPtr(s string) *string {
	return &s
}
