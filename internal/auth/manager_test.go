package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franciscosanchezn/gin-account-api/internal/models"
	"github.com/franciscosanchezn/gin-account-api/internal/store"
)

func TestVerifyLogin(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	user, err := env.manager.VerifyLogin(ctx, "alice", "pw1")
	require.NoError(t, err)
	assert.Equal(t, 42, user.GetUserID())

	_, err = env.manager.VerifyLogin(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrDeclined)

	// unknown users look exactly like wrong passwords
	_, err = env.manager.VerifyLogin(ctx, "bob", "pw1")
	assert.ErrorIs(t, err, ErrDeclined)
}

func TestCreateTokenPair(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	pair, err := env.manager.CreateTokenPair(ctx, env.alice, PairOptions{})
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.Len(t, pair.RefreshToken, SecretLength)

	userID, err := env.codec.Verify(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, 42, userID)

	tokens, err := env.credentials.UserTokens(ctx, 42)
	require.NoError(t, err)
	require.Len(t, tokens, 1)

	stored := tokens[0]
	assert.NotEqual(t, pair.RefreshToken, stored.HashedRefreshToken)
	assert.True(t, env.hasher.Verify(pair.RefreshToken, stored.HashedRefreshToken))
	assert.Equal(t, 42, stored.UserID)
	assert.Nil(t, stored.ClientID)
	assert.WithinDuration(t, time.Now().Add(DefaultRefreshTokenTTL), stored.ExpiresAt, time.Minute)
}

func TestCreateTokenPairWithClientAndScope(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	pair, err := env.manager.CreateTokenPair(ctx, env.alice, PairOptions{
		ClientID: "client-1",
		Scope:    []string{"read", "write"},
	})
	require.NoError(t, err)

	claims, err := env.codec.Parse(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "read write", claims.Scope)
	assert.Equal(t, "client-1", claims.ClientID)
	assert.True(t, claims.ClientBound())

	tokens, err := env.credentials.ClientTokens(ctx, "client-1")
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, []string{"read", "write"}, tokens[0].Scope)
}

func TestCreateTokenPairRegeneratesOnCollision(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	existing, err := env.hasher.Hash("duplicate")
	require.NoError(t, err)
	require.NoError(t, env.credentials.SaveToken(ctx, &models.RefreshToken{
		HashedRefreshToken: existing,
		UserID:             42,
		ExpiresAt:          time.Now().Add(time.Hour),
	}))

	secrets := &sequenceSecrets{values: []string{"duplicate", "fresh"}}
	env.manager.secrets = secrets

	pair, err := env.manager.CreateTokenPair(ctx, env.alice, PairOptions{})
	require.NoError(t, err)
	assert.Equal(t, "fresh", pair.RefreshToken)
	assert.Equal(t, 2, secrets.calls)

	tokens, err := env.credentials.UserTokens(ctx, 42)
	require.NoError(t, err)
	assert.Len(t, tokens, 2)
}

func TestCreateTokenPairChecksClientScope(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	clientID := "client-1"

	// owned by another user but issued to the same client
	existing, err := env.hasher.Hash("duplicate")
	require.NoError(t, err)
	require.NoError(t, env.credentials.SaveToken(ctx, &models.RefreshToken{
		HashedRefreshToken: existing,
		UserID:             7,
		ClientID:           &clientID,
		ExpiresAt:          time.Now().Add(time.Hour),
	}))

	env.manager.secrets = &sequenceSecrets{values: []string{"duplicate", "fresh"}}

	pair, err := env.manager.CreateTokenPair(ctx, env.alice, PairOptions{ClientID: clientID})
	require.NoError(t, err)
	assert.Equal(t, "fresh", pair.RefreshToken)
}

func TestCreateTokenPairGivesUpAfterRetries(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	existing, err := env.hasher.Hash("stuck")
	require.NoError(t, err)
	require.NoError(t, env.credentials.SaveToken(ctx, &models.RefreshToken{
		HashedRefreshToken: existing,
		UserID:             42,
		ExpiresAt:          time.Now().Add(time.Hour),
	}))

	secrets := &sequenceSecrets{values: []string{"stuck"}}
	env.manager.secrets = secrets

	_, err = env.manager.CreateTokenPair(ctx, env.alice, PairOptions{})
	assert.ErrorIs(t, err, ErrSecretCollision)
	assert.Equal(t, maxIssueAttempts, secrets.calls)
}

func TestRefreshByUserRoundTrip(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	pair, err := env.manager.CreateTokenPair(ctx, env.alice, PairOptions{})
	require.NoError(t, err)

	rotated, err := env.manager.RefreshByUser(ctx, 42, pair.RefreshToken, time.Time{})
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	tokens, err := env.credentials.UserTokens(ctx, 42)
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.False(t, env.hasher.Verify(pair.RefreshToken, tokens[0].HashedRefreshToken))
	assert.True(t, env.hasher.Verify(rotated.RefreshToken, tokens[0].HashedRefreshToken))

	// single use: the consumed token cannot rotate again
	_, err = env.manager.RefreshByUser(ctx, 42, pair.RefreshToken, time.Time{})
	assert.ErrorIs(t, err, ErrDeclined)
}

func TestRefreshByUserDeclines(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	pair, err := env.manager.CreateTokenPair(ctx, env.alice, PairOptions{})
	require.NoError(t, err)

	t.Run("should decline unknown user without side effects", func(t *testing.T) {
		_, err := env.manager.RefreshByUser(ctx, 99, pair.RefreshToken, time.Time{})
		assert.ErrorIs(t, err, ErrDeclined)

		tokens, err := env.credentials.UserTokens(ctx, 42)
		require.NoError(t, err)
		assert.Len(t, tokens, 1)
	})

	t.Run("should decline unknown token without side effects", func(t *testing.T) {
		_, err := env.manager.RefreshByUser(ctx, 42, "not-a-real-token", time.Time{})
		assert.ErrorIs(t, err, ErrDeclined)

		tokens, err := env.credentials.UserTokens(ctx, 42)
		require.NoError(t, err)
		assert.Len(t, tokens, 1)
	})
}

func TestRefreshConsumesExpiredToken(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	pair, err := env.manager.CreateTokenPair(ctx, env.alice, PairOptions{
		RefreshExpiresAt: time.Now().Add(-time.Minute),
	})
	require.NoError(t, err)

	_, err = env.manager.RefreshByUser(ctx, 42, pair.RefreshToken, time.Time{})
	assert.ErrorIs(t, err, ErrDeclined)

	tokens, err := env.credentials.UserTokens(ctx, 42)
	require.NoError(t, err)
	assert.Empty(t, tokens, "expired token must be consumed even though no pair is issued")
}

func TestRefreshByClientKeepsClientAndScope(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	pair, err := env.manager.CreateTokenPair(ctx, env.alice, PairOptions{
		ClientID: "client-1",
		Scope:    []string{"read"},
	})
	require.NoError(t, err)

	rotated, err := env.manager.RefreshByClient(ctx, "client-1", pair.RefreshToken, time.Time{})
	require.NoError(t, err)

	claims, err := env.codec.Parse(rotated.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, 42, claims.UserID)
	assert.Equal(t, "read", claims.Scope)
	assert.Equal(t, "client-1", claims.ClientID)

	// the replacement is still client-scoped, so it rotates through the client path again
	again, err := env.manager.RefreshByClient(ctx, "client-1", rotated.RefreshToken, time.Time{})
	require.NoError(t, err)
	assert.NotEmpty(t, again.RefreshToken)

	_, err = env.manager.RefreshByClient(ctx, "client-1", pair.RefreshToken, time.Time{})
	assert.ErrorIs(t, err, ErrDeclined)

	_, err = env.manager.RefreshByClient(ctx, "client-2", again.RefreshToken, time.Time{})
	assert.ErrorIs(t, err, ErrDeclined)
}

func TestRefreshByClientWithDeletedUser(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	clientID := "client-1"

	hashed, err := env.hasher.Hash("orphan")
	require.NoError(t, err)
	require.NoError(t, env.credentials.SaveToken(ctx, &models.RefreshToken{
		HashedRefreshToken: hashed,
		UserID:             7,
		ClientID:           &clientID,
		ExpiresAt:          time.Now().Add(time.Hour),
	}))

	_, err = env.manager.RefreshByClient(ctx, clientID, "orphan", time.Time{})
	assert.ErrorIs(t, err, ErrDeclined)

	tokens, err := env.credentials.ClientTokens(ctx, clientID)
	require.NoError(t, err)
	assert.Len(t, tokens, 1, "lookup failure must not consume the token")
}

func TestRefreshHonoursAccessExpiry(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	pair, err := env.manager.CreateTokenPair(ctx, env.alice, PairOptions{})
	require.NoError(t, err)

	expiresAt := time.Now().Add(5 * time.Minute).Truncate(time.Second)
	rotated, err := env.manager.RefreshByUser(ctx, 42, pair.RefreshToken, expiresAt)
	require.NoError(t, err)

	claims, err := env.codec.Parse(rotated.AccessToken)
	require.NoError(t, err)
	assert.True(t, claims.ExpiresAt.Time.Equal(expiresAt))
}

func TestRevoke(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	pair, err := env.manager.CreateTokenPair(ctx, env.alice, PairOptions{})
	require.NoError(t, err)

	require.NoError(t, env.manager.Revoke(ctx, 42, pair.RefreshToken))
	assert.ErrorIs(t, env.manager.Revoke(ctx, 42, pair.RefreshToken), ErrDeclined)

	_, err = env.manager.RefreshByUser(ctx, 42, pair.RefreshToken, time.Time{})
	assert.ErrorIs(t, err, ErrDeclined)
}

func TestManagerSurfacesConfigurationErrors(t *testing.T) {
	hasher := NewBcryptHasher(4)
	credentials := store.New(store.Collections[*models.User]{})
	manager := NewManager(credentials, NewTokenCodec(testSecret, testIssuer, testAudience), hasher, Lifetimes{})
	ctx := context.Background()
	user := &models.User{ID: 42, Username: "alice"}

	_, err := manager.CreateTokenPair(ctx, user, PairOptions{})
	assert.ErrorIs(t, err, store.ErrNotConfigured)

	_, err = manager.VerifyLogin(ctx, "alice", "pw1")
	assert.ErrorIs(t, err, store.ErrNotConfigured)
	assert.NotErrorIs(t, err, ErrDeclined)

	_, err = manager.CreateOAuthClient(ctx, user)
	assert.ErrorIs(t, err, store.ErrNotConfigured)

	_, err = manager.NewClientCode(ctx, user, "client-1", nil, nil)
	assert.ErrorIs(t, err, store.ErrNotConfigured)
}

func TestNewManagerDefaults(t *testing.T) {
	m := NewManager[*models.User](nil, nil, nil, Lifetimes{})
	assert.Equal(t, DefaultAccessTokenTTL, m.accessTTL)
	assert.Equal(t, DefaultRefreshTokenTTL, m.refreshTTL)

	m = NewManager[*models.User](nil, nil, nil, Lifetimes{AccessToken: time.Minute, RefreshToken: time.Hour})
	assert.Equal(t, time.Minute, m.accessTTL)
	assert.Equal(t, time.Hour, m.refreshTTL)
}
