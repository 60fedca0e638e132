package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"petregistry/internal/auth"
)

// Redis stores identity snapshots as JSON values with a server-side TTL, so
// multiple instances share one cache and invalidation is visible everywhere.
type Redis struct {
	rdb       *goredis.Client
	keyPrefix string
}

func NewRedis(addr, password string, db int) (*Redis, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Redis{rdb: rdb, keyPrefix: "identity"}, nil
}

func (r *Redis) key(accountID string) string {
	return r.keyPrefix + ":" + accountID
}

func (r *Redis) Get(ctx context.Context, accountID string) (auth.Identity, bool, error) {
	raw, err := r.rdb.Get(ctx, r.key(accountID)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return auth.Identity{}, false, nil
		}
		return auth.Identity{}, false, fmt.Errorf("redis get identity: %w", err)
	}

	var identity auth.Identity
	if err := json.Unmarshal([]byte(raw), &identity); err != nil {
		return auth.Identity{}, false, fmt.Errorf("decode cached identity: %w", err)
	}

	return identity, true, nil
}

func (r *Redis) Put(ctx context.Context, accountID string, identity auth.Identity, ttl time.Duration) error {
	data, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("encode identity: %w", err)
	}

	if err := r.rdb.Set(ctx, r.key(accountID), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set identity: %w", err)
	}

	return nil
}

func (r *Redis) Invalidate(ctx context.Context, accountID string) error {
	if err := r.rdb.Del(ctx, r.key(accountID)).Err(); err != nil {
		return fmt.Errorf("redis delete identity: %w", err)
	}

	return nil
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}

var _ auth.IdentityCache = (*Redis)(nil)
