package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/redis/go-redis/v9"
)

// Key layout:
//
//	session:owner:<ownerID> -> refresh token
//	session:token:<token>   -> ownerID
//
// Both keys carry the refresh lifetime as TTL.
const (
	ownerKeyPrefix = "session:owner:"
	tokenKeyPrefix = "session:token:"
)

// KEYS[1]=owner key, ARGV[1]=token, ARGV[2]=owner id, ARGV[3]=ttl ms, ARGV[4]=token key prefix
var upsertScript = redis.NewScript(`
local prev = redis.call('GET', KEYS[1])
if prev then
  redis.call('DEL', ARGV[4] .. prev)
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
redis.call('SET', ARGV[4] .. ARGV[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

// KEYS[1]=token key, ARGV[1]=token, ARGV[2]=owner key prefix
var deleteScript = redis.NewScript(`
local owner = redis.call('GET', KEYS[1])
if not owner then
  return 0
end
redis.call('DEL', KEYS[1])
local ownerKey = ARGV[2] .. owner
if redis.call('GET', ownerKey) == ARGV[1] then
  redis.call('DEL', ownerKey)
end
return 1
`)

// RedisRepository keeps sessions in Redis. Multi-key updates run as Lua
// scripts, so the one-token-per-owner rule holds under concurrent logins.
type RedisRepository struct {
	client redis.UniversalClient
}

func NewRedisRepository(client redis.UniversalClient) *RedisRepository {
	return &RedisRepository{client: client}
}

// NewRedisClient returns a go-redis client from a URL such as
// redis://localhost:6379/0 after a successful ping.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	if redisURL == "" {
		return nil, errors.New("empty redis url")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func (r *RedisRepository) Upsert(ctx context.Context, ownerID string, token string, validity time.Duration) error {
	if validity <= 0 {
		return fmt.Errorf("redis error: non-positive session validity %v", validity)
	}
	err := upsertScript.Run(ctx, r.client,
		[]string{ownerKeyPrefix + ownerID},
		token, ownerID, validity.Milliseconds(), tokenKeyPrefix,
	).Err()
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

func (r *RedisRepository) FindByToken(ctx context.Context, token string) (*models.Session, error) {
	key := tokenKeyPrefix + token

	owner, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("redis error: %w", err)
	}

	s := &models.Session{OwnerID: owner, RefreshToken: token}
	ttl, err := r.client.PTTL(ctx, key).Result()
	if err == nil && ttl > 0 {
		s.ExpiresAt = time.Now().Add(ttl)
	}
	return s, nil
}

func (r *RedisRepository) DeleteByToken(ctx context.Context, token string) (int64, error) {
	n, err := deleteScript.Run(ctx, r.client,
		[]string{tokenKeyPrefix + token},
		token, ownerKeyPrefix,
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("redis error: %w", err)
	}
	return n, nil
}
