package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/franciscosanchezn/gin-account-api/internal/models"
)

const (
	codePrefix        = "oauth:code:"
	clientCodesPrefix = "oauth:client-codes:"
)

// RedisCodeCollection keeps authorization codes in Redis. Codes expire on
// their own after ttl, so abandoned authorizations do not pile up.
type RedisCodeCollection struct {
	client redis.UniversalClient
	ttl    time.Duration
}

var _ CodeCollection = (*RedisCodeCollection)(nil)

// NewRedisCodeCollection creates a Redis-backed code collection. A ttl of
// zero keeps codes until they are deleted.
func NewRedisCodeCollection(client redis.UniversalClient, ttl time.Duration) *RedisCodeCollection {
	return &RedisCodeCollection{client: client, ttl: ttl}
}

func (c *RedisCodeCollection) Save(ctx context.Context, code *models.OAuthCode) error {
	if code.CreatedAt.IsZero() {
		code.CreatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(code)
	if err != nil {
		return fmt.Errorf("marshal code: %w", err)
	}

	pipe := c.client.TxPipeline()
	pipe.Set(ctx, codePrefix+code.HashedCode, payload, c.ttl)
	pipe.SAdd(ctx, clientCodesPrefix+code.ClientID, code.HashedCode)
	if c.ttl > 0 {
		pipe.Expire(ctx, clientCodesPrefix+code.ClientID, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("persist code: %w", err)
	}
	return nil
}

func (c *RedisCodeCollection) FindByClientID(ctx context.Context, clientID string) ([]models.OAuthCode, error) {
	hashes, err := c.client.SMembers(ctx, clientCodesPrefix+clientID).Result()
	if err != nil {
		return nil, fmt.Errorf("load client codes: %w", err)
	}

	codes := make([]models.OAuthCode, 0, len(hashes))
	var expired []interface{}
	for _, hash := range hashes {
		code, err := c.get(ctx, hash)
		if errors.Is(err, ErrNotFound) {
			expired = append(expired, hash)
			continue
		}
		if err != nil {
			return nil, err
		}
		codes = append(codes, *code)
	}

	if len(expired) > 0 {
		if err := c.client.SRem(ctx, clientCodesPrefix+clientID, expired...).Err(); err != nil {
			log.WithError(err).WithField("client_id", clientID).Warn("Failed to prune expired codes from index")
		}
	}
	return codes, nil
}

// DeleteByHash removes a code. The DEL count decides the winner when two
// callers consume the same code; the loser gets ErrNotFound.
func (c *RedisCodeCollection) DeleteByHash(ctx context.Context, hashedCode string) error {
	code, err := c.get(ctx, hashedCode)
	if err != nil {
		return err
	}

	pipe := c.client.TxPipeline()
	deleted := pipe.Del(ctx, codePrefix+hashedCode)
	pipe.SRem(ctx, clientCodesPrefix+code.ClientID, hashedCode)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete code: %w", err)
	}
	if deleted.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

func (c *RedisCodeCollection) get(ctx context.Context, hashedCode string) (*models.OAuthCode, error) {
	payload, err := c.client.Get(ctx, codePrefix+hashedCode).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load code: %w", err)
	}
	var code models.OAuthCode
	if err := json.Unmarshal(payload, &code); err != nil {
		return nil, fmt.Errorf("decode code: %w", err)
	}
	return &code, nil
}
